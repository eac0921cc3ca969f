package alerts

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusNew, StatusAcknowledged, true},
		{StatusAcknowledged, StatusResolved, true},
		{StatusNew, StatusResolved, false},
		{StatusResolved, StatusNew, false},
		{StatusAcknowledged, StatusNew, false},
		{StatusResolved, StatusAcknowledged, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.ok {
			t.Errorf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.ok, got)
		}
	}
}

func TestDedupKeyIsPerDay(t *testing.T) {
	morning := time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC)
	next := time.Date(2026, 3, 3, 0, 0, 1, 0, time.UTC)
	if DedupKey(KindLeadVolumeSpike, "All leads", morning) != DedupKey(KindLeadVolumeSpike, " all leads ", evening) {
		t.Fatalf("expected same key within a day")
	}
	if DedupKey(KindLeadVolumeSpike, "all leads", morning) == DedupKey(KindLeadVolumeSpike, "all leads", next) {
		t.Fatalf("expected different key on the next day")
	}
	if DedupKey(KindLeadVolumeSpike, "x", morning) == DedupKey(KindRoutingFallbackSpike, "x", morning) {
		t.Fatalf("expected kind to be part of the key")
	}
}

func TestEvaluateVolume(t *testing.T) {
	th := DefaultThresholds()
	cases := []struct {
		name     string
		today    int
		baseline float64
		fire     bool
	}{
		{"doubling", 20, 10, true},
		{"below ratio", 19, 10, false},
		{"below minimum", 8, 2, false},
		{"no baseline", 50, 0, false},
		{"exact minimum", 10, 5, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := EvaluateVolume(tc.today, tc.baseline, th)
			if v.Fire != tc.fire {
				t.Fatalf("expected fire=%v, got %+v", tc.fire, v)
			}
		})
	}
}

func TestEvaluateFallbacks(t *testing.T) {
	th := DefaultThresholds()
	if v := EvaluateFallbacks(20, 30, 10, th); !v.Fire || v.Limit != 20 {
		t.Fatalf("expected fire at limit 20, got %+v", v)
	}
	if v := EvaluateFallbacks(20, 15, 10, th); v.Fire {
		t.Fatalf("expected no fire below limit, got %+v", v)
	}
	if v := EvaluateFallbacks(5, 100, 10, th); v.Fire {
		t.Fatalf("expected no fire below lead minimum, got %+v", v)
	}
	if v := EvaluateFallbacks(12, 60, 0, th); !v.Fire {
		t.Fatalf("expected fire with no history and a majority falling back, got %+v", v)
	}
	if v := EvaluateFallbacks(12, 0, 0, th); v.Fire {
		t.Fatalf("expected no fire with no fallbacks, got %+v", v)
	}
}

func TestParseStatus(t *testing.T) {
	if s, ok := ParseStatus(" Acknowledged "); !ok || s != StatusAcknowledged {
		t.Fatalf("expected acknowledged, got %q %v", s, ok)
	}
	if _, ok := ParseStatus("closed"); ok {
		t.Fatalf("expected closed to be rejected")
	}
}
