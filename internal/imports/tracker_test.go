package imports

import (
	"context"
	"sync"
	"testing"
	"time"

	"realty_leads_backend/platform/apperr"
	"realty_leads_backend/platform/logger"

	"github.com/google/uuid"
)

type memStore struct {
	mu       sync.Mutex
	attempts map[uuid.UUID]Attempt
}

func newMemStore() *memStore {
	return &memStore{attempts: map[uuid.UUID]Attempt{}}
}

func (m *memStore) Insert(_ context.Context, a Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[a.ID] = a
	return nil
}

func (m *memStore) Get(_ context.Context, id uuid.UUID) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	return a, nil
}

func (m *memStore) SaveFinal(_ context.Context, a Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attempts[a.ID].Finalized() {
		return ErrAlreadyFinalized
	}
	m.attempts[a.ID] = a
	return nil
}

func (m *memStore) ListStartedSince(_ context.Context, since time.Time) ([]Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Attempt, 0)
	for _, a := range m.attempts {
		if !a.StartedAt.Before(since) {
			out = append(out, a)
		}
	}
	return out, nil
}

func newTestTracker(clock *time.Time) (*Tracker, *memStore) {
	store := newMemStore()
	tr := NewTracker(store, logger.Discard())
	tr.now = func() time.Time { return *clock }
	return tr, store
}

func TestFinalizeSetsCompletionOnce(t *testing.T) {
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tr, _ := newTestTracker(&clock)

	a, err := tr.Start(context.Background(), "buyer", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != StatusStarted || a.CRMSyncStatus != SyncPending || a.Finalized() {
		t.Fatalf("unexpected started attempt %+v", a)
	}

	clock = clock.Add(1500 * time.Millisecond)
	final, err := tr.Finalize(context.Background(), a.ID, Outcome{Imported: 10, CRMSynced: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final.Status != StatusCompleted || final.CRMSyncStatus != SyncSynced {
		t.Fatalf("unexpected final attempt %+v", final)
	}
	if final.DurationMs == nil || *final.DurationMs != 1500 {
		t.Fatalf("expected 1500ms duration, got %v", final.DurationMs)
	}
	if final.SuccessRate != 100 {
		t.Fatalf("expected 100%% success, got %v", final.SuccessRate)
	}

	clock = clock.Add(time.Hour)
	_, err = tr.Finalize(context.Background(), a.ID, Outcome{Imported: 1})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict on second finalize, got %v", err)
	}
}

func TestFinalizeStatuses(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name      string
		requested int
		outcome   Outcome
		status    Status
		sync      SyncStatus
		rate      float64
	}{
		{"all imported", 4, Outcome{Imported: 4, CRMSynced: true}, StatusCompleted, SyncSynced, 100},
		{"some failed", 4, Outcome{Imported: 3, Failed: 1, CRMSynced: true}, StatusPartial, SyncSynced, 75},
		{"none imported", 4, Outcome{Failed: 4}, StatusFailed, SyncFailed, 0},
		{"fallbacks", 2, Outcome{Imported: 2}, StatusCompleted, SyncFailed, 100},
		{"nothing requested", 0, Outcome{}, StatusFailed, SyncFailed, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := NewAttempt("agent", tc.requested, now)
			got, err := Finalize(a, tc.outcome, now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Status != tc.status || got.CRMSyncStatus != tc.sync || got.SuccessRate != tc.rate {
				t.Fatalf("expected %s/%s/%v, got %s/%s/%v", tc.status, tc.sync, tc.rate, got.Status, got.CRMSyncStatus, got.SuccessRate)
			}
		})
	}
}

func TestFinalizeUnknownAttempt(t *testing.T) {
	clock := time.Now()
	tr, _ := newTestTracker(&clock)
	_, err := tr.Finalize(context.Background(), uuid.New(), Outcome{})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
