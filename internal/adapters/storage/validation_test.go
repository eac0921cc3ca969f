package storage

import "testing"

func TestValidateContentType(t *testing.T) {
	for _, ct := range []string{"application/json", "application/json; charset=utf-8", "TEXT/CSV"} {
		if err := ValidateContentType(ct); err != nil {
			t.Fatalf("expected %q allowed, got %v", ct, err)
		}
	}
	if err := ValidateContentType("image/png"); err == nil {
		t.Fatalf("expected image/png rejected")
	}
}

func TestValidateObjectKey(t *testing.T) {
	if err := ValidateObjectKey("snapshots/2026/03/2026-03-02.json"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, key := range []string{"", "/abs.json", "snapshots/../secret"} {
		if err := ValidateObjectKey(key); err == nil {
			t.Fatalf("expected %q rejected", key)
		}
	}
}

func TestSnapshotKey(t *testing.T) {
	if got := SnapshotKey("2026-03-02"); got != "snapshots/2026/03/2026-03-02.json" {
		t.Fatalf("unexpected key %q", got)
	}
}
