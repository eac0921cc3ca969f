package imports

import (
	"context"
	"errors"
	"time"

	"realty_leads_backend/platform/apperr"
	"realty_leads_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence the tracker needs.
type Store interface {
	Insert(ctx context.Context, a Attempt) error
	Get(ctx context.Context, id uuid.UUID) (Attempt, error)
	SaveFinal(ctx context.Context, a Attempt) error
	ListStartedSince(ctx context.Context, since time.Time) ([]Attempt, error)
}

type Tracker struct {
	store Store
	now   func() time.Time
	log   *logger.Logger
}

func NewTracker(store Store, log *logger.Logger) *Tracker {
	return &Tracker{store: store, now: time.Now, log: log}
}

// Start records a new attempt with status started and CRM sync pending.
func (t *Tracker) Start(ctx context.Context, target string, requested int) (Attempt, error) {
	if requested < 0 {
		return Attempt{}, apperr.Validation("requested must not be negative")
	}
	a := NewAttempt(target, requested, t.now())
	if err := t.store.Insert(ctx, a); err != nil {
		return Attempt{}, err
	}
	return a, nil
}

// Finalize completes an attempt exactly once; a second call returns a Conflict.
func (t *Tracker) Finalize(ctx context.Context, id uuid.UUID, o Outcome) (Attempt, error) {
	current, err := t.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Attempt{}, apperr.NotFound("import attempt not found")
	}
	if err != nil {
		return Attempt{}, err
	}

	final, err := Finalize(current, o, t.now())
	if err != nil {
		return Attempt{}, err
	}
	if err := t.store.SaveFinal(ctx, final); err != nil {
		if errors.Is(err, ErrAlreadyFinalized) {
			return Attempt{}, apperr.Conflict("import attempt already finalized")
		}
		return Attempt{}, err
	}

	t.log.Info("import attempt finalized",
		"attemptId", final.ID, "target", final.TargetPipeline, "status", final.Status,
		"imported", final.Imported, "failed", final.Failed)
	return final, nil
}

// List returns attempts started within the last days days.
func (t *Tracker) List(ctx context.Context, days int) ([]Attempt, error) {
	if days <= 0 {
		days = 30
	}
	return t.store.ListStartedSince(ctx, t.now().UTC().AddDate(0, 0, -days))
}
