// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler, InMemoryBus) is in platform/events.
package events

import (
	"time"

	"realty_leads_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

// Re-export platform functions
var (
	NewBaseEvent   = events.NewBaseEvent
	NewInMemoryBus = events.NewInMemoryBus
)

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadCaptured is published once a submission is durably stored.
type LeadCaptured struct {
	BaseEvent
	LeadID       uuid.UUID  `json:"leadId"`
	Category     string     `json:"category"`
	QualityLabel string     `json:"qualityLabel"`
	Score        float64    `json:"score"`
	PropertyID   *uuid.UUID `json:"propertyId,omitempty"`
	NeedsReview  bool       `json:"needsReview"`
	Fallback     bool       `json:"fallback"`
}

func (e LeadCaptured) EventName() string { return "leads.lead.captured" }

// LeadFallbackUsed is published when CRM delivery failed and the local record is the only copy.
type LeadFallbackUsed struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	Category string    `json:"category"`
	Reason   string    `json:"reason"`
}

func (e LeadFallbackUsed) EventName() string { return "leads.lead.fallback_used" }

// LeadStatusChanged is published after a lifecycle transition.
type LeadStatusChanged struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	OldStatus string    `json:"oldStatus"`
	NewStatus string    `json:"newStatus"`
}

func (e LeadStatusChanged) EventName() string { return "leads.lead.status_changed" }

// =============================================================================
// Markets Domain Events
// =============================================================================

// MarketHeatChanged is published when a market's heat label differs from the previous period.
type MarketHeatChanged struct {
	BaseEvent
	City        string    `json:"city"`
	State       string    `json:"state"`
	PeriodStart time.Time `json:"periodStart"`
	OldLabel    string    `json:"oldLabel"`
	NewLabel    string    `json:"newLabel"`
	HeatScore   float64   `json:"heatScore"`
}

func (e MarketHeatChanged) EventName() string { return "markets.heat.changed" }

// =============================================================================
// Alerts Domain Events
// =============================================================================

// AlertRaised is published after a new alert row is stored.
type AlertRaised struct {
	BaseEvent
	AlertID uuid.UUID `json:"alertId"`
	Kind    string    `json:"kind"`
	Subject string    `json:"subject"`
	Message string    `json:"message"`
}

func (e AlertRaised) EventName() string { return "alerts.alert.raised" }
