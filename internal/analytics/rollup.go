// Package analytics summarizes leads, properties and import runs over time windows.
package analytics

import (
	"sort"
	"time"

	"realty_leads_backend/internal/imports"
	"realty_leads_backend/internal/leads/domain"
	"realty_leads_backend/internal/markets"

	"github.com/google/uuid"
)

const DefaultTopN = 10

// Window is the half-open range [From, To).
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// LastDays is the window of the given number of whole UTC days ending with today.
func LastDays(now time.Time, days int) Window {
	if days <= 0 {
		days = 1
	}
	end := now.UTC().Truncate(24*time.Hour).AddDate(0, 0, 1)
	return Window{From: end.AddDate(0, 0, -days), To: end}
}

// Day is the window covering one UTC day.
func Day(t time.Time) Window {
	start := t.UTC().Truncate(24 * time.Hour)
	return Window{From: start, To: start.AddDate(0, 0, 1)}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// Dataset is everything a rollup reads.
type Dataset struct {
	Leads      []domain.Lead
	Properties []markets.PropertyMetrics
	Imports    []imports.Attempt
}

// Funnel counts leads by lifecycle stage.
type Funnel struct {
	New       int `json:"new"`
	Contacted int `json:"contacted"`
	Qualified int `json:"qualified"`
	Converted int `json:"converted"`
	Lost      int `json:"lost"`
}

// ImportTotals sums import attempts in the window.
type ImportTotals struct {
	Attempts    int     `json:"attempts"`
	Requested   int     `json:"requested"`
	Imported    int     `json:"imported"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"successRate"`
}

type TopLead struct {
	LeadID       uuid.UUID           `json:"leadId"`
	Category     domain.LeadCategory `json:"category"`
	QualityScore float64             `json:"qualityScore"`
	QualityLabel domain.QualityLabel `json:"qualityLabel"`
}

type TopProperty struct {
	PropertyID uuid.UUID `json:"propertyId"`
	LeadScore  float64   `json:"leadScore"`
	Leads      int64     `json:"leads"`
	Views      int64     `json:"views"`
}

// DailyPoint is one UTC day in the series.
type DailyPoint struct {
	Day       time.Time `json:"day"`
	Leads     int       `json:"leads"`
	Fallbacks int       `json:"fallbacks"`
	Converted int       `json:"converted"`
}

// Summary is a rollup over one window.
type Summary struct {
	Window         Window         `json:"window"`
	TotalLeads     int            `json:"totalLeads"`
	ByCategory     map[string]int `json:"byCategory"`
	ByStatus       map[string]int `json:"byStatus"`
	ByLabel        map[string]int `json:"byLabel"`
	Funnel         Funnel         `json:"funnel"`
	ConversionRate float64        `json:"conversionRate"`
	FallbackRate   float64        `json:"fallbackRate"`
	NeedsReview    int            `json:"needsReview"`
	AverageScore   float64        `json:"averageScore"`
	Purchased      int            `json:"purchased"`
	RevenueCents   int64          `json:"revenueCents"`
	Imports        ImportTotals   `json:"imports"`
	TopLeads       []TopLead      `json:"topLeads"`
	TopProperties  []TopProperty  `json:"topProperties"`
	Daily          []DailyPoint   `json:"daily"`
}

// Rollup summarizes the records that fall in the window. Records outside it
// are ignored, so callers may over-fetch.
func Rollup(w Window, data Dataset, topN int) Summary {
	if topN <= 0 {
		topN = DefaultTopN
	}
	s := Summary{
		Window:     w,
		ByCategory: make(map[string]int),
		ByStatus:   make(map[string]int),
		ByLabel:    make(map[string]int),
		Daily:      emptySeries(w),
	}

	var scoreTotal float64
	var fallbacks int
	leads := make([]domain.Lead, 0, len(data.Leads))
	for _, l := range data.Leads {
		if !w.Contains(l.CreatedAt) {
			continue
		}
		leads = append(leads, l)
		s.TotalLeads++
		s.ByCategory[string(l.Category)]++
		s.ByStatus[string(l.Status)]++
		s.ByLabel[string(l.QualityLabel)]++
		scoreTotal += l.QualityScore
		countStage(&s.Funnel, l.Status)
		if l.Fallback {
			fallbacks++
		}
		if l.NeedsReview {
			s.NeedsReview++
		}
		if l.Purchased() {
			s.Purchased++
			s.RevenueCents += l.Purchase.PriceCents
		}
		if idx := dayIndex(w, l.CreatedAt); idx >= 0 && idx < len(s.Daily) {
			s.Daily[idx].Leads++
			if l.Fallback {
				s.Daily[idx].Fallbacks++
			}
			if l.Status == domain.StatusConverted {
				s.Daily[idx].Converted++
			}
		}
	}

	s.ConversionRate = round2(Rate(float64(s.Funnel.Converted), float64(s.TotalLeads)))
	s.FallbackRate = round2(Rate(float64(fallbacks), float64(s.TotalLeads)))
	if s.TotalLeads > 0 {
		s.AverageScore = round2(scoreTotal / float64(s.TotalLeads))
	}

	for _, a := range data.Imports {
		if !w.Contains(a.StartedAt) {
			continue
		}
		s.Imports.Attempts++
		s.Imports.Requested += a.Requested
		s.Imports.Imported += a.Imported
		s.Imports.Failed += a.Failed
	}
	s.Imports.SuccessRate = round2(Rate(float64(s.Imports.Imported), float64(s.Imports.Requested)))

	s.TopLeads = topLeads(leads, topN)
	s.TopProperties = topProperties(data.Properties, topN)
	return s
}

func countStage(f *Funnel, status domain.LeadStatus) {
	switch status {
	case domain.StatusNew:
		f.New++
	case domain.StatusContacted:
		f.Contacted++
	case domain.StatusQualified:
		f.Qualified++
	case domain.StatusConverted:
		f.Converted++
	case domain.StatusLost:
		f.Lost++
	}
}

func topLeads(leads []domain.Lead, n int) []TopLead {
	sorted := make([]domain.Lead, len(leads))
	copy(sorted, leads)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].QualityScore != sorted[j].QualityScore {
			return sorted[i].QualityScore > sorted[j].QualityScore
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	out := make([]TopLead, 0, len(sorted))
	for _, l := range sorted {
		out = append(out, TopLead{LeadID: l.ID, Category: l.Category, QualityScore: l.QualityScore, QualityLabel: l.QualityLabel})
	}
	return out
}

func topProperties(props []markets.PropertyMetrics, n int) []TopProperty {
	sorted := make([]markets.PropertyMetrics, len(props))
	copy(sorted, props)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].LeadScore != sorted[j].LeadScore {
			return sorted[i].LeadScore > sorted[j].LeadScore
		}
		return sorted[i].PropertyID.String() < sorted[j].PropertyID.String()
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	out := make([]TopProperty, 0, len(sorted))
	for _, p := range sorted {
		out = append(out, TopProperty{PropertyID: p.PropertyID, LeadScore: p.LeadScore, Leads: p.Leads, Views: p.Views})
	}
	return out
}

func emptySeries(w Window) []DailyPoint {
	var out []DailyPoint
	for d := w.From.UTC().Truncate(24 * time.Hour); d.Before(w.To); d = d.AddDate(0, 0, 1) {
		out = append(out, DailyPoint{Day: d})
	}
	return out
}

func dayIndex(w Window, t time.Time) int {
	start := w.From.UTC().Truncate(24 * time.Hour)
	return int(t.UTC().Sub(start) / (24 * time.Hour))
}
