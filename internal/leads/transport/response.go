package transport

import (
	"time"

	"realty_leads_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// Response DTOs

type ContactResponse struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type PurchaseResponse struct {
	PurchaserID uuid.UUID `json:"purchaserId"`
	PriceCents  int64     `json:"priceCents"`
	PurchasedAt time.Time `json:"purchasedAt"`
}

type LeadResponse struct {
	ID             uuid.UUID              `json:"id"`
	Category       string                 `json:"category"`
	Rule           string                 `json:"rule"`
	Contact        ContactResponse        `json:"contact"`
	Source         string                 `json:"source,omitempty"`
	Message        string                 `json:"message,omitempty"`
	Status         string                 `json:"status"`
	QualityScore   float64                `json:"qualityScore"`
	QualityLabel   string                 `json:"qualityLabel"`
	Breakdown      domain.ScoreBreakdown  `json:"breakdown"`
	PropertyID     *uuid.UUID             `json:"propertyId,omitempty"`
	Property       *domain.PropertyFields `json:"property,omitempty"`
	Agent          *domain.AgentFields    `json:"agent,omitempty"`
	Mortgage       *domain.MortgageFields `json:"mortgage,omitempty"`
	NeedsReview    bool                   `json:"needsReview"`
	Pipeline       string                 `json:"pipeline,omitempty"`
	CRMSyncStatus  string                 `json:"crmSyncStatus"`
	Fallback       bool                   `json:"fallback"`
	FallbackReason string                 `json:"fallbackReason,omitempty"`
	RelayStatus    string                 `json:"relayStatus,omitempty"`
	Purchase       *PurchaseResponse      `json:"purchase,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

func ToLeadResponse(lead domain.Lead) LeadResponse {
	resp := LeadResponse{
		ID:       lead.ID,
		Category: string(lead.Category),
		Rule:     string(lead.Rule),
		Contact: ContactResponse{
			FirstName: lead.Contact.FirstName,
			LastName:  lead.Contact.LastName,
			Email:     lead.Contact.Email,
			Phone:     lead.Contact.Phone,
		},
		Source:         lead.Source,
		Message:        lead.Message,
		Status:         string(lead.Status),
		QualityScore:   lead.QualityScore,
		QualityLabel:   string(lead.QualityLabel),
		Breakdown:      lead.Breakdown,
		PropertyID:     lead.PropertyID,
		Property:       lead.PropertyFields,
		Agent:          lead.AgentFields,
		Mortgage:       lead.MortgageFields,
		NeedsReview:    lead.NeedsReview,
		Pipeline:       lead.Pipeline,
		CRMSyncStatus:  string(lead.CRMSyncStatus),
		Fallback:       lead.Fallback,
		FallbackReason: lead.FallbackReason,
		RelayStatus:    string(lead.RelayStatus),
		CreatedAt:      lead.CreatedAt,
		UpdatedAt:      lead.UpdatedAt,
	}
	if lead.Purchase != nil {
		resp.Purchase = &PurchaseResponse{
			PurchaserID: lead.Purchase.PurchaserID,
			PriceCents:  lead.Purchase.PriceCents,
			PurchasedAt: lead.Purchase.PurchasedAt,
		}
	}
	return resp
}
