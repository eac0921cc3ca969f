package routing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"realty_leads_backend/internal/leads/domain"
	"realty_leads_backend/internal/leads/ports"
	"realty_leads_backend/platform/apperr"
	"realty_leads_backend/platform/logger"
	"realty_leads_backend/platform/metrics"
)

const defaultRelayTimeout = 5 * time.Second

// FallbackReason names the delivery step that failed. Empty means delivered.
type FallbackReason string

const (
	FallbackNone            FallbackReason = ""
	FallbackCRMUnavailable  FallbackReason = "crm_not_configured"
	FallbackCreateContact   FallbackReason = "create_contact_failed"
	FallbackContactLookup   FallbackReason = "contact_lookup_failed"
	FallbackAddToPipeline   FallbackReason = "add_to_pipeline_failed"
	FallbackDeliveryTimeout FallbackReason = "delivery_timed_out"
)

// RoutingResult is what the submitter's caller sees. Success is true whenever
// the lead is durable; Fallback and WebhookSent disclose degraded delivery.
// WebhookSent means the relay was dispatched, its outcome is recorded on the lead later.
type RoutingResult struct {
	Success        bool           `json:"success"`
	Fallback       bool           `json:"fallback"`
	FallbackReason FallbackReason `json:"fallbackReason,omitempty"`
	WebhookSent    bool           `json:"webhookSent"`
	ContactID      string         `json:"contactId,omitempty"`
	LeadType       string         `json:"leadType"`
	Pipeline       string         `json:"pipeline"`
	LeadID         string         `json:"leadId"`
}

// Delivery is the outcome of the CRM attempt.
type Delivery struct {
	ContactID string
	Reason    FallbackReason
	Err       error
}

// Delivered reports whether every CRM step succeeded.
func (d Delivery) Delivered() bool {
	return d.Reason == FallbackNone
}

// Router runs the delivery state machine for one lead at a time. It holds no
// per-lead state; the WaitGroup only tracks detached relays.
type Router struct {
	cfg     Config
	crm     ports.CRM
	store   ports.LeadStore
	relayer ports.Relayer
	retries ports.RelayRetryQueue
	metrics *metrics.Registry
	log     *logger.Logger
	relays  sync.WaitGroup
}

// Option configures optional collaborators.
type Option func(*Router)

// WithRelayer enables the fallback webhook relay.
func WithRelayer(r ports.Relayer) Option {
	return func(rt *Router) { rt.relayer = r }
}

// WithRetryQueue re-enqueues relays that failed or timed out.
func WithRetryQueue(q ports.RelayRetryQueue) Option {
	return func(rt *Router) { rt.retries = q }
}

// WithMetrics records routing and relay outcomes.
func WithMetrics(m *metrics.Registry) Option {
	return func(rt *Router) { rt.metrics = m }
}

// New creates a router. crm may be nil, in which case every lead takes the fallback path.
func New(cfg Config, crm ports.CRM, store ports.LeadStore, log *logger.Logger, opts ...Option) *Router {
	if cfg.RelayTimeout <= 0 {
		cfg.RelayTimeout = defaultRelayTimeout
	}
	r := &Router{cfg: cfg, crm: crm, store: store, log: log}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the injected configuration.
func (r *Router) Config() Config {
	return r.cfg
}

// Route delivers a new lead and persists it exactly once. The only error is a
// failed local write: analytics, reconcile and the marketplace read the local row,
// so a lead the CRM accepted but the store did not is still reported as unstored.
func (r *Router) Route(ctx context.Context, lead *domain.Lead) (RoutingResult, error) {
	sel := r.cfg.SelectPipeline(lead.Category, *lead)
	lead.Pipeline = sel.Label

	d := r.deliver(ctx, lead, sel)
	lead.CRMContactID = d.ContactID

	if d.Delivered() {
		lead.CRMSyncStatus = domain.SyncSynced
		lead.Fallback = false
		lead.FallbackReason = ""
		if err := r.store.SaveLead(ctx, lead); err != nil {
			r.log.DatabaseError("save delivered lead", err)
			r.metrics.ObserveRouting(string(lead.Category), "unstored")
			return RoutingResult{}, apperr.Unavailable("lead could not be stored", err).WithOp("routing.Route")
		}
		r.metrics.ObserveRouting(string(lead.Category), "delivered")
		r.log.LeadRouted(lead.ID.String(), string(lead.Category), sel.Label, false, "")
		return r.result(lead, sel, d, false), nil
	}

	lead.CRMSyncStatus = domain.SyncFailed
	lead.Fallback = true
	lead.FallbackReason = string(d.Reason)
	lead.RelayStatus = domain.RelaySkipped
	if r.relayer != nil {
		lead.RelayStatus = domain.RelayPending
	}

	if err := r.store.SaveLead(ctx, lead); err != nil {
		r.log.DatabaseError("save fallback lead", err)
		return RoutingResult{}, apperr.Unavailable("lead could not be stored", err).WithOp("routing.Route")
	}

	r.metrics.ObserveRouting(string(lead.Category), "fallback")
	r.log.LeadRouted(lead.ID.String(), string(lead.Category), sel.Label, true, describe(d))

	dispatched := r.dispatchRelay(*lead)
	if !dispatched {
		r.metrics.ObserveRelay(string(domain.RelaySkipped))
	}
	return r.result(lead, sel, d, dispatched), nil
}

// Redeliver retries CRM delivery for a lead already stored by a fallback.
// It never relays again; the lead row is updated with the new sync state.
func (r *Router) Redeliver(ctx context.Context, lead *domain.Lead) (RoutingResult, error) {
	sel := r.cfg.SelectPipeline(lead.Category, *lead)
	lead.Pipeline = sel.Label

	d := r.deliver(ctx, lead, sel)
	if d.ContactID != "" {
		lead.CRMContactID = d.ContactID
	}
	if d.Delivered() {
		lead.CRMSyncStatus = domain.SyncSynced
		lead.Fallback = false
		lead.FallbackReason = ""
	} else {
		lead.CRMSyncStatus = domain.SyncFailed
		lead.FallbackReason = string(d.Reason)
	}

	if err := r.store.SaveLead(ctx, lead); err != nil {
		return RoutingResult{}, apperr.Unavailable("lead could not be stored", err).WithOp("routing.Redeliver")
	}
	outcome := "redelivered"
	if !d.Delivered() {
		outcome = "redelivery_failed"
	}
	r.metrics.ObserveRouting(string(lead.Category), outcome)
	return r.result(lead, sel, d, false), nil
}

func (r *Router) result(lead *domain.Lead, sel Selection, d Delivery, webhookSent bool) RoutingResult {
	return RoutingResult{
		Success:        true,
		Fallback:       !d.Delivered(),
		FallbackReason: d.Reason,
		WebhookSent:    webhookSent,
		ContactID:      d.ContactID,
		LeadType:       string(lead.Category),
		Pipeline:       sel.Label,
		LeadID:         lead.ID.String(),
	}
}

// deliver runs CreateContact (resolving duplicates) then AddToPipeline when configured.
// Every failure becomes a FallbackReason rather than an error.
func (r *Router) deliver(ctx context.Context, lead *domain.Lead, sel Selection) Delivery {
	if r.crm == nil {
		return Delivery{Reason: FallbackCRMUnavailable}
	}

	contactID, err := r.crm.CreateContact(ctx, ports.ContactInput{
		FirstName: lead.Contact.FirstName,
		LastName:  lead.Contact.LastName,
		Email:     lead.Contact.Email,
		Phone:     lead.Contact.Phone,
		Source:    lead.Source,
		Tags:      []string{strings.ToLower(string(lead.Category)), string(lead.QualityLabel)},
	})
	if errors.Is(err, ports.ErrDuplicateContact) {
		contactID, err = r.crm.FindContactByEmail(ctx, lead.Contact.Email)
		if err != nil {
			return Delivery{Reason: reasonFor(FallbackContactLookup, err), Err: err}
		}
	} else if err != nil {
		return Delivery{Reason: reasonFor(FallbackCreateContact, err), Err: err}
	}

	if !sel.Configured {
		return Delivery{ContactID: contactID}
	}

	err = r.crm.AddToPipeline(ctx, ports.Opportunity{
		ContactID:     contactID,
		PipelineID:    sel.PipelineID,
		StageID:       sel.StageID,
		MonetaryValue: sel.MonetaryValue,
		Name:          opportunityName(lead),
	})
	if err != nil {
		return Delivery{ContactID: contactID, Reason: reasonFor(FallbackAddToPipeline, err), Err: err}
	}
	return Delivery{ContactID: contactID}
}

func reasonFor(step FallbackReason, err error) FallbackReason {
	if errors.Is(err, context.DeadlineExceeded) {
		return FallbackDeliveryTimeout
	}
	return step
}

func describe(d Delivery) string {
	if d.Err == nil {
		return string(d.Reason)
	}
	return string(d.Reason) + ": " + d.Err.Error()
}

func opportunityName(lead *domain.Lead) string {
	name := lead.Contact.FullName()
	if name == "" {
		name = lead.Contact.Email
	}
	return name + " - " + string(lead.Category)
}
