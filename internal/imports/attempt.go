// Package imports tracks bulk lead deliveries and CRM reconciliation runs.
package imports

import (
	"math"
	"time"

	"realty_leads_backend/internal/leads/scoring"
	"realty_leads_backend/platform/apperr"

	"github.com/google/uuid"
)

type Status string

const (
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
)

type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

// Attempt is one ingestion or delivery run.
type Attempt struct {
	ID             uuid.UUID  `json:"id"`
	TargetPipeline string     `json:"targetPipeline"`
	Requested      int        `json:"requested"`
	Imported       int        `json:"imported"`
	Failed         int        `json:"failed"`
	SuccessRate    float64    `json:"successRate"`
	Status         Status     `json:"status"`
	CRMSyncStatus  SyncStatus `json:"crmSyncStatus"`
	StartedAt      time.Time  `json:"startedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	DurationMs     *int64     `json:"durationMs,omitempty"`
}

// Finalized reports whether completion fields are set.
func (a Attempt) Finalized() bool {
	return a.CompletedAt != nil
}

// Outcome is what a run achieved.
type Outcome struct {
	Imported  int
	Failed    int
	CRMSynced bool
}

// NewAttempt starts an attempt at now.
func NewAttempt(target string, requested int, now time.Time) Attempt {
	return Attempt{
		ID:             uuid.New(),
		TargetPipeline: target,
		Requested:      requested,
		Status:         StatusStarted,
		CRMSyncStatus:  SyncPending,
		StartedAt:      now.UTC(),
	}
}

// Finalize sets the counts, status and completion time. It fails on an attempt
// that is already finalized so completedAt and duration are written once.
func Finalize(a Attempt, o Outcome, now time.Time) (Attempt, error) {
	if a.Finalized() {
		return Attempt{}, apperr.Conflict("import attempt already finalized")
	}
	if o.Imported < 0 || o.Failed < 0 {
		return Attempt{}, apperr.Validation("counts must not be negative")
	}

	a.Imported = o.Imported
	a.Failed = o.Failed
	a.SuccessRate = math.Round(scoring.Rate(float64(o.Imported), float64(a.Requested))*100) / 100

	switch {
	case o.Imported == 0:
		a.Status = StatusFailed
	case o.Failed == 0 && o.Imported >= a.Requested:
		a.Status = StatusCompleted
	default:
		a.Status = StatusPartial
	}

	a.CRMSyncStatus = SyncFailed
	if o.CRMSynced && o.Imported > 0 {
		a.CRMSyncStatus = SyncSynced
	}

	completed := now.UTC()
	if completed.Before(a.StartedAt) {
		completed = a.StartedAt
	}
	duration := completed.Sub(a.StartedAt).Milliseconds()
	a.CompletedAt = &completed
	a.DurationMs = &duration
	return a, nil
}
