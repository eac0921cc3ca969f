package adapters

import (
	"context"
	"time"

	"realty_leads_backend/internal/alerts"
	leadsrepo "realty_leads_backend/internal/leads/repository"
)

// LeadDailyCounter is the slice of the leads repository the alert rules read.
type LeadDailyCounter interface {
	DailyCounts(ctx context.Context, from, to time.Time) ([]leadsrepo.DailyCount, error)
}

// LeadVolumeSource adapts lead daily counts for the alert rules.
type LeadVolumeSource struct {
	leads LeadDailyCounter
}

// NewLeadVolumeSource creates a new lead volume adapter.
func NewLeadVolumeSource(leads LeadDailyCounter) *LeadVolumeSource {
	return &LeadVolumeSource{leads: leads}
}

// DailyCounts converts per-day lead counts into alert day counts.
func (a *LeadVolumeSource) DailyCounts(ctx context.Context, from, to time.Time) ([]alerts.DayCount, error) {
	counts, err := a.leads.DailyCounts(ctx, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]alerts.DayCount, 0, len(counts))
	for _, c := range counts {
		out = append(out, alerts.DayCount{Day: c.Day.UTC(), Leads: c.Leads, Fallbacks: c.Fallbacks})
	}
	return out, nil
}

// Compile-time check.
var _ alerts.VolumeSource = (*LeadVolumeSource)(nil)
