// Package alerts raises threshold alerts for lead volume, routing fallbacks
// and market heat shifts, and tracks their acknowledgement.
package alerts

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindLeadVolumeSpike      Kind = "lead_volume_spike"
	KindHeatCategoryChange   Kind = "heat_category_change"
	KindRoutingFallbackSpike Kind = "routing_fallback_spike"
)

type Status string

const (
	StatusNew          Status = "new"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
)

// ParseStatus accepts the three lifecycle states.
func ParseStatus(raw string) (Status, bool) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusNew, StatusAcknowledged, StatusResolved:
		return s, true
	}
	return "", false
}

// CanTransition allows new -> acknowledged -> resolved only.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusNew:
		return to == StatusAcknowledged
	case StatusAcknowledged:
		return to == StatusResolved
	}
	return false
}

// Alert is one stored alert.
type Alert struct {
	ID             uuid.UUID  `json:"id"`
	Kind           Kind       `json:"kind"`
	Subject        string     `json:"subject"`
	Message        string     `json:"message"`
	PropertyID     *uuid.UUID `json:"propertyId,omitempty"`
	City           string     `json:"city,omitempty"`
	State          string     `json:"state,omitempty"`
	Observed       float64    `json:"observed"`
	Threshold      float64    `json:"threshold"`
	Status         Status     `json:"status"`
	DedupKey       string     `json:"-"`
	CreatedAt      time.Time  `json:"createdAt"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
}

// Candidate is an alert about to be raised.
type Candidate struct {
	Kind       Kind
	Subject    string
	Message    string
	PropertyID *uuid.UUID
	City       string
	State      string
	Observed   float64
	Threshold  float64
}

// DedupKey collapses repeats of the same kind and subject within one UTC day.
func DedupKey(kind Kind, subject string, at time.Time) string {
	return fmt.Sprintf("%s|%s|%s", kind, strings.ToLower(strings.TrimSpace(subject)), at.UTC().Format("2006-01-02"))
}

// Thresholds configure the spike rules.
type Thresholds struct {
	VolumeSpikeRatio   float64
	VolumeMinLeads     int
	FallbackSpikeRatio float64
}

// DefaultThresholds fire on a doubling of volume over at least 10 leads.
func DefaultThresholds() Thresholds {
	return Thresholds{VolumeSpikeRatio: 2, VolumeMinLeads: 10, FallbackSpikeRatio: 2}
}

// Verdict is the outcome of a threshold check.
type Verdict struct {
	Fire     bool
	Observed float64
	Limit    float64
}

// EvaluateVolume fires when today's count reaches the minimum and is at least
// VolumeSpikeRatio times the baseline daily average. No baseline, no alert.
func EvaluateVolume(today int, baselineAvg float64, th Thresholds) Verdict {
	v := Verdict{Limit: th.VolumeSpikeRatio}
	if baselineAvg <= 0 {
		return v
	}
	v.Observed = float64(today) / baselineAvg
	v.Fire = today >= th.VolumeMinLeads && v.Observed >= th.VolumeSpikeRatio
	return v
}

// EvaluateFallbacks compares today's fallback share with the baseline share.
// Both rates are percentages. The lead minimum applies to today's volume.
func EvaluateFallbacks(todayLeads int, todayRate, baselineRate float64, th Thresholds) Verdict {
	v := Verdict{Observed: todayRate, Limit: baselineRate * th.FallbackSpikeRatio}
	if todayLeads < th.VolumeMinLeads || todayRate <= 0 {
		return v
	}
	if baselineRate <= 0 {
		// every lead falling back with no history is still worth a look
		v.Fire = todayRate >= 50
		v.Limit = 50
		return v
	}
	v.Fire = todayRate >= v.Limit
	return v
}
