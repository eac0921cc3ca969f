package ports

import (
	"context"
	"time"

	"realty_leads_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// LeadStore persists routed leads. SaveLead is an upsert keyed on lead ID.
type LeadStore interface {
	SaveLead(ctx context.Context, lead *domain.Lead) error
	UpdateRelayStatus(ctx context.Context, id uuid.UUID, status domain.RelayStatus) error
}

// RelayPayload is the body posted to the fallback webhook.
type RelayPayload struct {
	LeadID         uuid.UUID `json:"leadId"`
	Category       string    `json:"category"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	Source         string    `json:"source,omitempty"`
	QualityScore   float64   `json:"qualityScore"`
	QualityLabel   string    `json:"qualityLabel"`
	Pipeline       string    `json:"pipeline"`
	FallbackReason string    `json:"fallbackReason"`
	CreatedAt      time.Time `json:"createdAt"`
}

// NewRelayPayload flattens a lead for the webhook.
func NewRelayPayload(lead domain.Lead) RelayPayload {
	return RelayPayload{
		LeadID:         lead.ID,
		Category:       string(lead.Category),
		FirstName:      lead.Contact.FirstName,
		LastName:       lead.Contact.LastName,
		Email:          lead.Contact.Email,
		Phone:          lead.Contact.Phone,
		Source:         lead.Source,
		QualityScore:   lead.QualityScore,
		QualityLabel:   string(lead.QualityLabel),
		Pipeline:       lead.Pipeline,
		FallbackReason: lead.FallbackReason,
		CreatedAt:      lead.CreatedAt,
	}
}

// Relayer posts a lead to the secondary webhook.
type Relayer interface {
	Relay(ctx context.Context, payload RelayPayload) error
}

// RelayRetryQueue schedules another relay attempt for a lead.
type RelayRetryQueue interface {
	EnqueueRelayRetry(ctx context.Context, leadID uuid.UUID) error
}
