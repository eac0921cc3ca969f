package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LeadStatus is the lifecycle position of a lead.
type LeadStatus string

const (
	StatusNew       LeadStatus = "new"
	StatusContacted LeadStatus = "contacted"
	StatusQualified LeadStatus = "qualified"
	StatusConverted LeadStatus = "converted"
	StatusLost      LeadStatus = "lost"
)

var forwardTransitions = map[LeadStatus]LeadStatus{
	StatusNew:       StatusContacted,
	StatusContacted: StatusQualified,
	StatusQualified: StatusConverted,
}

// ParseStatus validates a status string.
func ParseStatus(s string) (LeadStatus, error) {
	switch st := LeadStatus(s); st {
	case StatusNew, StatusContacted, StatusQualified, StatusConverted, StatusLost:
		return st, nil
	}
	return "", fmt.Errorf("unknown lead status %q", s)
}

// Terminal reports whether no further transitions are allowed.
func (s LeadStatus) Terminal() bool {
	return s == StatusConverted || s == StatusLost
}

// CanTransition allows one step forward along the funnel, or lost from any
// non-terminal status.
func (s LeadStatus) CanTransition(to LeadStatus) bool {
	if s.Terminal() {
		return false
	}
	if to == StatusLost {
		return true
	}
	return forwardTransitions[s] == to
}

// QualityLabel is the lead-level label set. Heat labels are a separate type.
type QualityLabel string

const (
	QualityHot         QualityLabel = "hot"
	QualityWarm        QualityLabel = "warm"
	QualityCold        QualityLabel = "cold"
	QualityUnqualified QualityLabel = "unqualified"
)

// SyncStatus tracks downstream CRM delivery of a lead or import.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

// RelayStatus is the recorded outcome of the fallback webhook relay.
type RelayStatus string

const (
	RelayNone     RelayStatus = ""
	RelayPending  RelayStatus = "pending"
	RelaySent     RelayStatus = "sent"
	RelayFailed   RelayStatus = "failed"
	RelayTimedOut RelayStatus = "timed_out"
	RelaySkipped  RelayStatus = "skipped"
)

// ScoreBreakdown holds the clamped sub-scores behind a composite.
type ScoreBreakdown struct {
	View       float64 `json:"view"`
	Engagement float64 `json:"engagement"`
	Conversion float64 `json:"conversion"`
	Market     float64 `json:"market"`
}

// Purchase records a marketplace sale of a lead. Nil means unpurchased.
type Purchase struct {
	PurchaserID uuid.UUID
	PriceCents  int64
	PurchasedAt time.Time
}

// Lead is the persisted record of a captured prospect.
type Lead struct {
	ID             uuid.UUID
	Category       LeadCategory
	Rule           Rule
	Contact        Contact
	Source         string
	SourceDomain   string
	Message        string
	Status         LeadStatus
	QualityLabel   QualityLabel
	QualityScore   float64
	Breakdown      ScoreBreakdown
	PropertyID     *uuid.UUID
	PropertyFields *PropertyFields
	AgentFields    *AgentFields
	MortgageFields *MortgageFields
	NeedsReview    bool

	CRMContactID   string
	CRMSyncStatus  SyncStatus
	Pipeline       string
	Fallback       bool
	FallbackReason string
	RelayStatus    RelayStatus

	Purchase  *Purchase
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Purchased reports whether the lead has been sold.
func (l Lead) Purchased() bool {
	return l.Purchase != nil
}
