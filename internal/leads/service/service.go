// Package service implements the lead lifecycle: submission, status changes,
// marketplace purchase, rescoring and CRM reconciliation.
package service

import (
	"context"
	"errors"
	"strings"

	"realty_leads_backend/internal/events"
	"realty_leads_backend/internal/leads/domain"
	"realty_leads_backend/internal/leads/repository"
	"realty_leads_backend/internal/leads/routing"
	"realty_leads_backend/internal/leads/scoring"
	"realty_leads_backend/platform/apperr"
	"realty_leads_backend/platform/logger"
	"realty_leads_backend/platform/metrics"

	"github.com/google/uuid"
)

// Property event kinds forwarded to the markets module.
const (
	PropertyEventLead       = "lead"
	PropertyEventConversion = "conversion"
)

// Repository is the lead storage the service needs beyond the router's writes.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.LeadStatus) (domain.Lead, error)
	MarkPurchased(ctx context.Context, id, purchaser uuid.UUID, priceCents int64) (domain.Lead, error)
	UpdateScore(ctx context.Context, id uuid.UUID, score float64, label domain.QualityLabel, breakdown domain.ScoreBreakdown) error
	ListFailedSync(ctx context.Context, limit int) ([]domain.Lead, error)
}

// Router delivers leads downstream.
type Router interface {
	Route(ctx context.Context, lead *domain.Lead) (routing.RoutingResult, error)
	Redeliver(ctx context.Context, lead *domain.Lead) (routing.RoutingResult, error)
}

// PropertyMetrics is the markets module as seen from leads.
type PropertyMetrics interface {
	PropertyContext(ctx context.Context, propertyID uuid.UUID) (scoring.PropertyContext, bool, error)
	RecordPropertyEvent(ctx context.Context, propertyID uuid.UUID, kind string) error
}

// SubmitResult is the routing result plus what scoring decided.
type SubmitResult struct {
	routing.RoutingResult
	QualityScore float64             `json:"qualityScore"`
	QualityLabel domain.QualityLabel `json:"qualityLabel"`
	NeedsReview  bool                `json:"needsReview"`
}

type Service struct {
	repo       Repository
	router     Router
	classifier domain.Classifier
	weights    scoring.Weights
	properties PropertyMetrics
	guard      DuplicateGuard
	attempts   AttemptTracker
	eventBus   events.Bus
	metrics    *metrics.Registry
	log        *logger.Logger
}

// Deps groups the collaborators. Properties, Guard, Attempts and Metrics may be nil.
type Deps struct {
	Repo       Repository
	Router     Router
	Classifier domain.Classifier
	Weights    scoring.Weights
	Properties PropertyMetrics
	Guard      DuplicateGuard
	Attempts   AttemptTracker
	EventBus   events.Bus
	Metrics    *metrics.Registry
	Log        *logger.Logger
}

func New(d Deps) *Service {
	return &Service{
		repo:       d.Repo,
		router:     d.Router,
		classifier: d.Classifier,
		weights:    d.Weights,
		properties: d.Properties,
		guard:      d.Guard,
		attempts:   d.Attempts,
		eventBus:   d.EventBus,
		metrics:    d.Metrics,
		log:        d.Log,
	}
}

// Submit classifies, scores and routes one submission. Only a failed local
// write surfaces as an error; degraded delivery is reported in the result.
func (s *Service) Submit(ctx context.Context, sub domain.LeadSubmission) (SubmitResult, error) {
	decision, sig := s.classifier.ClassifySubmission(sub)
	s.metrics.ObserveClassification(string(decision.Category), string(decision.Rule))

	dupKey, err := s.checkDuplicate(ctx, sub, decision.Category)
	if err != nil {
		return SubmitResult{}, err
	}

	if decision.Ambiguous {
		s.log.Info("lead classified by default rule", "category", decision.Category, "email", sub.Contact.Email)
	}

	propertyID, pc := s.resolveProperty(ctx, sub)
	score := scoring.ScoreLead(scoring.DeriveLeadInputs(sub, decision.Category, pc), s.weights.Lead)

	lead := &domain.Lead{
		ID:             uuid.New(),
		Category:       decision.Category,
		Rule:           decision.Rule,
		Contact:        sub.Contact,
		Source:         sub.Source,
		SourceDomain:   sig.SourceDomain,
		Message:        sub.Message,
		Status:         domain.StatusNew,
		QualityLabel:   score.Label,
		QualityScore:   score.Composite,
		Breakdown:      score.Breakdown,
		PropertyID:     propertyID,
		PropertyFields: sub.Property,
		AgentFields:    sub.Agent,
		MortgageFields: sub.Mortgage,
		NeedsReview:    decision.Ambiguous,
		CRMSyncStatus:  domain.SyncPending,
	}

	res, err := s.router.Route(ctx, lead)
	if err != nil {
		s.releaseDuplicate(ctx, dupKey)
		return SubmitResult{}, err
	}

	s.eventBus.Publish(ctx, events.LeadCaptured{
		BaseEvent:    events.NewBaseEvent(),
		LeadID:       lead.ID,
		Category:     string(lead.Category),
		QualityLabel: string(lead.QualityLabel),
		Score:        lead.QualityScore,
		PropertyID:   lead.PropertyID,
		NeedsReview:  lead.NeedsReview,
		Fallback:     res.Fallback,
	})
	if res.Fallback {
		s.eventBus.Publish(ctx, events.LeadFallbackUsed{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			Category:  string(lead.Category),
			Reason:    string(res.FallbackReason),
		})
	}

	if propertyID != nil && s.properties != nil {
		if err := s.properties.RecordPropertyEvent(ctx, *propertyID, PropertyEventLead); err != nil {
			s.log.Error("failed to record property lead event", "error", err, "propertyId", propertyID)
		}
	}

	return SubmitResult{
		RoutingResult: res,
		QualityScore:  lead.QualityScore,
		QualityLabel:  lead.QualityLabel,
		NeedsReview:   lead.NeedsReview,
	}, nil
}

// checkDuplicate returns the key it acquired, or "" when nothing was held.
func (s *Service) checkDuplicate(ctx context.Context, sub domain.LeadSubmission, category domain.LeadCategory) (string, error) {
	if s.guard == nil {
		return "", nil
	}
	key := dedupKey(sub, category)
	if key == "" {
		return "", nil
	}
	first, err := s.guard.Acquire(ctx, key)
	if err != nil {
		// the guard only suppresses double submits; never lose a lead over it
		s.log.Warn("duplicate guard unavailable", "error", err)
		return "", nil
	}
	if !first {
		return "", apperr.Conflict("this submission was already received")
	}
	return key, nil
}

func (s *Service) releaseDuplicate(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.guard.Release(context.WithoutCancel(ctx), key); err != nil {
		s.log.Warn("failed to release duplicate guard", "error", err)
	}
}

// resolveProperty links the lead to a known property. Unknown or malformed ids are dropped.
func (s *Service) resolveProperty(ctx context.Context, sub domain.LeadSubmission) (*uuid.UUID, scoring.PropertyContext) {
	if sub.Property == nil || s.properties == nil {
		return nil, scoring.PropertyContext{}
	}
	id, err := uuid.Parse(strings.TrimSpace(sub.Property.PropertyID))
	if err != nil {
		return nil, scoring.PropertyContext{}
	}
	pc, found, err := s.properties.PropertyContext(ctx, id)
	if err != nil {
		s.log.Warn("property context unavailable", "error", err, "propertyId", id)
		return nil, scoring.PropertyContext{}
	}
	if !found {
		return nil, scoring.PropertyContext{}
	}
	return &id, pc
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Lead{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return domain.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to load lead", err)
	}
	return lead, nil
}

// UpdateStatus applies one lifecycle transition.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (domain.Lead, error) {
	to, err := domain.ParseStatus(status)
	if err != nil {
		return domain.Lead{}, apperr.Validation(err.Error())
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.Lead{}, err
	}
	if !current.Status.CanTransition(to) {
		return domain.Lead{}, apperr.Conflict("cannot move lead from " + string(current.Status) + " to " + string(to))
	}

	updated, err := s.repo.UpdateStatus(ctx, id, current.Status, to)
	switch {
	case errors.Is(err, repository.ErrStaleStatus):
		return domain.Lead{}, apperr.Conflict("lead status changed, reload and retry")
	case errors.Is(err, repository.ErrNotFound):
		return domain.Lead{}, apperr.NotFound("lead not found")
	case err != nil:
		return domain.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to update lead status", err)
	}

	s.eventBus.Publish(ctx, events.LeadStatusChanged{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    id,
		OldStatus: string(current.Status),
		NewStatus: string(to),
	})

	if to == domain.StatusConverted && updated.PropertyID != nil && s.properties != nil {
		if err := s.properties.RecordPropertyEvent(ctx, *updated.PropertyID, PropertyEventConversion); err != nil {
			s.log.Error("failed to record property conversion", "error", err, "propertyId", updated.PropertyID)
		}
	}
	return updated, nil
}

// Purchase sells a lead on the marketplace.
func (s *Service) Purchase(ctx context.Context, id, purchaser uuid.UUID, priceCents int64) (domain.Lead, error) {
	if priceCents <= 0 {
		return domain.Lead{}, apperr.Validation("price must be positive")
	}
	lead, err := s.repo.MarkPurchased(ctx, id, purchaser, priceCents)
	switch {
	case errors.Is(err, repository.ErrAlreadyPurchased):
		return domain.Lead{}, apperr.Conflict("lead already purchased")
	case errors.Is(err, repository.ErrNotFound):
		return domain.Lead{}, apperr.NotFound("lead not found")
	case err != nil:
		return domain.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to purchase lead", err)
	}
	s.log.Info("lead purchased", "leadId", id, "purchaserId", purchaser, "priceCents", priceCents)
	return lead, nil
}

// Rescore recomputes a stored lead's score from its stored fields and current property data.
func (s *Service) Rescore(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	lead, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.Lead{}, err
	}

	sub := domain.LeadSubmission{
		Contact:  lead.Contact,
		Source:   lead.Source,
		Message:  lead.Message,
		Property: lead.PropertyFields,
		Agent:    lead.AgentFields,
		Mortgage: lead.MortgageFields,
	}
	var pc scoring.PropertyContext
	if lead.PropertyID != nil && s.properties != nil {
		if ctxVal, found, err := s.properties.PropertyContext(ctx, *lead.PropertyID); err == nil && found {
			pc = ctxVal
		}
	}

	score := scoring.ScoreLead(scoring.DeriveLeadInputs(sub, lead.Category, pc), s.weights.Lead)
	if err := s.repo.UpdateScore(ctx, id, score.Composite, score.Label, score.Breakdown); err != nil {
		return domain.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to store score", err)
	}
	lead.QualityScore = score.Composite
	lead.QualityLabel = score.Label
	lead.Breakdown = score.Breakdown
	return lead, nil
}
