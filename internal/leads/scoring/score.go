// Package scoring computes lead quality and property lead scores.
// Every function here is pure: identical inputs give identical results.
package scoring

import (
	"math"

	"realty_leads_backend/internal/leads/domain"
)

// Label band lower bounds, inclusive.
const (
	warmThreshold    = 40.0
	hotThreshold     = 70.0
	veryHotThreshold = 90.0
)

// HeatLabel is the property and market label set.
type HeatLabel string

const (
	HeatCold    HeatLabel = "cold"
	HeatWarm    HeatLabel = "warm"
	HeatHot     HeatLabel = "hot"
	HeatVeryHot HeatLabel = "very_hot"
)

// LeadInputs are raw sub-scores; anything outside [0,100] is clamped.
type LeadInputs struct {
	ViewScore       float64
	EngagementScore float64
	ConversionScore float64
	MarketScore     float64
	HasContact      bool
}

// LeadScore is the scored result for a lead.
type LeadScore struct {
	Composite float64
	Label     domain.QualityLabel
	Breakdown domain.ScoreBreakdown
}

// ScoreLead weights the clamped sub-scores into a composite in [0,100].
func ScoreLead(in LeadInputs, w LeadWeights) LeadScore {
	b := domain.ScoreBreakdown{
		View:       Clamp(in.ViewScore),
		Engagement: Clamp(in.EngagementScore),
		Conversion: Clamp(in.ConversionScore),
		Market:     Clamp(in.MarketScore),
	}
	composite := b.View*w.View + b.Engagement*w.Engagement + b.Conversion*w.Conversion + b.Market*w.Market
	composite = Settle(Clamp(composite))

	label := LeadLabel(composite)
	if !in.HasContact {
		label = domain.QualityUnqualified
	}
	return LeadScore{Composite: RoundScore(composite), Label: label, Breakdown: b}
}

// LeadLabel maps a composite to cold, warm or hot. Boundaries belong to the higher band.
func LeadLabel(composite float64) domain.QualityLabel {
	switch {
	case composite >= hotThreshold:
		return domain.QualityHot
	case composite >= warmThreshold:
		return domain.QualityWarm
	default:
		return domain.QualityCold
	}
}

// HeatLabelFor maps a composite to the property/market label set.
func HeatLabelFor(composite float64) HeatLabel {
	switch {
	case composite >= veryHotThreshold:
		return HeatVeryHot
	case composite >= hotThreshold:
		return HeatHot
	case composite >= warmThreshold:
		return HeatWarm
	default:
		return HeatCold
	}
}

// Clamp bounds v to [0,100]. NaN counts as zero contribution.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// Normalize scales raw against ceiling into [0,100].
func Normalize(raw, ceiling float64) float64 {
	if ceiling <= 0 {
		return 0
	}
	return Clamp(raw / ceiling * 100)
}

// Rate returns num/den as a percentage, or 0 when den is 0.
func Rate(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den * 100
}

// Settle drops float noise below 1e-6 so an exact boundary sum stays on its boundary.
func Settle(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// RoundScore rounds a composite to two decimals without carrying it across a
// label band: 39.999 stays cold as 39.99 rather than becoming 40.
func RoundScore(v float64) float64 {
	r := round2(v)
	for _, t := range [...]float64{warmThreshold, hotThreshold, veryHotThreshold} {
		if v < t && r >= t {
			return (t*100 - 1) / 100
		}
	}
	return r
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
