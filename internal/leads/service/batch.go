package service

import (
	"context"
	"errors"

	"realty_leads_backend/internal/imports"
	"realty_leads_backend/internal/leads/domain"
	"realty_leads_backend/platform/apperr"

	"github.com/google/uuid"
)

const (
	reconcileTarget     = "crm_reconcile"
	defaultReconcileMax = 200
)

// AttemptTracker records bulk deliveries.
type AttemptTracker interface {
	Start(ctx context.Context, target string, requested int) (imports.Attempt, error)
	Finalize(ctx context.Context, id uuid.UUID, outcome imports.Outcome) (imports.Attempt, error)
}

// BatchResult reports one bulk run.
type BatchResult struct {
	Attempt imports.Attempt `json:"attempt"`
	Results []SubmitResult  `json:"results"`
}

// ImportBatch routes each submission through Submit and records one attempt.
// A lead counts as imported once stored; fallbacks mark the attempt's CRM sync as failed.
func (s *Service) ImportBatch(ctx context.Context, target string, subs []domain.LeadSubmission) (BatchResult, error) {
	if s.attempts == nil {
		return BatchResult{}, apperr.Internal("import tracking is not configured")
	}
	if len(subs) == 0 {
		return BatchResult{}, apperr.Validation("batch is empty")
	}

	attempt, err := s.attempts.Start(ctx, target, len(subs))
	if err != nil {
		return BatchResult{}, apperr.Wrap(apperr.KindInternal, "failed to start import", err)
	}

	outcome := imports.Outcome{CRMSynced: true}
	results := make([]SubmitResult, 0, len(subs))
	for _, sub := range subs {
		res, err := s.Submit(ctx, sub)
		if err != nil {
			outcome.Failed++
			s.log.Warn("batch lead rejected", "error", err, "attemptId", attempt.ID)
			continue
		}
		outcome.Imported++
		if res.Fallback {
			outcome.CRMSynced = false
		}
		results = append(results, res)
	}

	final, err := s.attempts.Finalize(ctx, attempt.ID, outcome)
	if err != nil {
		return BatchResult{}, apperr.Wrap(apperr.KindInternal, "failed to finalize import", err)
	}
	return BatchResult{Attempt: final, Results: results}, nil
}

// Reconcile redelivers leads whose CRM sync failed and records the run as an attempt.
func (s *Service) Reconcile(ctx context.Context, limit int) (imports.Attempt, error) {
	if limit <= 0 {
		limit = defaultReconcileMax
	}
	leads, err := s.repo.ListFailedSync(ctx, limit)
	if err != nil {
		return imports.Attempt{}, apperr.Wrap(apperr.KindInternal, "failed to list unsynced leads", err)
	}
	if len(leads) == 0 || s.attempts == nil {
		return imports.Attempt{}, nil
	}

	attempt, err := s.attempts.Start(ctx, reconcileTarget, len(leads))
	if err != nil {
		return imports.Attempt{}, apperr.Wrap(apperr.KindInternal, "failed to start reconcile", err)
	}

	var outcome imports.Outcome
	for i := range leads {
		lead := &leads[i]
		res, err := s.router.Redeliver(ctx, lead)
		if err != nil || res.Fallback {
			outcome.Failed++
			if err != nil && !errors.Is(err, context.Canceled) {
				s.log.Warn("reconcile redelivery failed", "error", err, "leadId", lead.ID)
			}
			continue
		}
		outcome.Imported++
	}
	outcome.CRMSynced = outcome.Failed == 0

	final, err := s.attempts.Finalize(ctx, attempt.ID, outcome)
	if err != nil {
		return imports.Attempt{}, apperr.Wrap(apperr.KindInternal, "failed to finalize reconcile", err)
	}
	s.log.Info("reconcile finished", "imported", outcome.Imported, "failed", outcome.Failed)
	return final, nil
}
