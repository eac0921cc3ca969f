package domain

import "testing"

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to LeadStatus
		ok       bool
	}{
		{StatusNew, StatusContacted, true},
		{StatusContacted, StatusQualified, true},
		{StatusQualified, StatusConverted, true},
		{StatusNew, StatusQualified, false},
		{StatusNew, StatusLost, true},
		{StatusQualified, StatusLost, true},
		{StatusConverted, StatusLost, false},
		{StatusLost, StatusNew, false},
		{StatusContacted, StatusNew, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.ok {
			t.Errorf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.ok, got)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if _, err := ParseStatus("archived"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
	if st, err := ParseStatus("qualified"); err != nil || st != StatusQualified {
		t.Fatalf("expected qualified, got %q (%v)", st, err)
	}
}
