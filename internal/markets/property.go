package markets

import (
	"sort"
	"time"

	"realty_leads_backend/internal/leads/scoring"

	"github.com/google/uuid"
)

// Property event kinds.
const (
	EventView       = "view"
	EventLead       = "lead"
	EventConversion = "conversion"
)

// ValidEventKind reports whether kind is a known property event.
func ValidEventKind(kind string) bool {
	switch kind {
	case EventView, EventLead, EventConversion:
		return true
	}
	return false
}

// PropertyMetrics is the running state of one property.
type PropertyMetrics struct {
	PropertyID           uuid.UUID          `json:"propertyId"`
	Views                int64              `json:"views"`
	Leads                int64              `json:"leads"`
	Conversions          int64              `json:"conversions"`
	ViewToLeadRate       float64            `json:"viewToLeadRate"`
	LeadToConversionRate float64            `json:"leadToConversionRate"`
	LeadScore            float64            `json:"leadScore"`
	ScoreLabel           scoring.HeatLabel  `json:"scoreLabel"`
	Factors              map[string]float64 `json:"factors"`
	MarketRank           int                `json:"marketRank"`
	LeadsPerDay          float64            `json:"leadsPerDay"`
	LeadsPerWeek         float64            `json:"leadsPerWeek"`
	UpdatedAt            time.Time          `json:"updatedAt"`
}

// Rescore derives rates, score and rolling averages from the counters.
// leads7d and leads28d are lead events in the trailing 7 and 28 days.
func Rescore(pm PropertyMetrics, leads7d, leads28d int64, w scoring.Weights) PropertyMetrics {
	s := scoring.ScoreProperty(scoring.PropertyInputs{Views: pm.Views, Leads: pm.Leads, Conversions: pm.Conversions}, w)
	pm.ViewToLeadRate = s.ViewToLeadRate
	pm.LeadToConversionRate = s.LeadToConversionRate
	pm.LeadScore = s.Composite
	pm.ScoreLabel = s.Label
	pm.Factors = s.Factors
	pm.LeadsPerDay = round3(float64(leads7d) / 7)
	pm.LeadsPerWeek = round3(float64(leads28d) / 4)
	return pm
}

// RankProperties orders by lead score desc, leads desc, property id asc and
// assigns MarketRank from 1. The input slice is not modified.
func RankProperties(ps []PropertyMetrics) []PropertyMetrics {
	out := make([]PropertyMetrics, len(ps))
	copy(out, ps)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.LeadScore != b.LeadScore {
			return a.LeadScore > b.LeadScore
		}
		if a.Leads != b.Leads {
			return a.Leads > b.Leads
		}
		return a.PropertyID.String() < b.PropertyID.String()
	})
	for i := range out {
		out[i].MarketRank = i + 1
	}
	return out
}
