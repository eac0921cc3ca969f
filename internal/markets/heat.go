// Package markets maintains per-property metrics and per-market heat.
package markets

import (
	"math"
	"sort"
	"strings"
	"time"

	"realty_leads_backend/internal/leads/scoring"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Trend states for MarketMetrics.
const (
	TrendNoBaseline = "no_baseline"
	TrendPartial    = "partial"
	TrendBaseline   = "baseline"
)

var cityCaser = cases.Title(language.English)

// MarketKey identifies a market. Use NewMarketKey so spellings fold together.
type MarketKey struct {
	City  string `json:"city"`
	State string `json:"state"`
}

// NewMarketKey title-cases the city and upper-cases the state.
func NewMarketKey(city, state string) MarketKey {
	c := strings.Join(strings.Fields(city), " ")
	return MarketKey{
		City:  cityCaser.String(strings.ToLower(c)),
		State: strings.ToUpper(strings.TrimSpace(state)),
	}
}

// Period is a half-open aggregation window [Start, End).
type Period struct {
	Start time.Time
	End   time.Time
}

// DailyPeriod returns the UTC day containing t.
func DailyPeriod(t time.Time) Period {
	start := t.UTC().Truncate(24 * time.Hour)
	return Period{Start: start, End: start.AddDate(0, 0, 1)}
}

// Previous returns the period of the same length just before p.
func (p Period) Previous() Period {
	d := p.End.Sub(p.Start)
	return Period{Start: p.Start.Add(-d), End: p.Start}
}

// PropertySnapshot is one property's state as seen by the aggregator.
type PropertySnapshot struct {
	PropertyID    uuid.UUID
	ListPrice     float64
	OriginalPrice float64
	DaysOnMarket  int
	Active        bool
	Leads         int64
	Conversions   int64
}

// MarketMetrics is one market's aggregate for one period.
type MarketMetrics struct {
	ID                 uuid.UUID         `json:"id"`
	Key                MarketKey         `json:"market"`
	PeriodStart        time.Time         `json:"periodStart"`
	PeriodEnd          time.Time         `json:"periodEnd"`
	PropertyCount      int               `json:"propertyCount"`
	ActiveListings     int               `json:"activeListings"`
	AvgPrice           float64           `json:"avgPrice"`
	MedianPrice        float64           `json:"medianPrice"`
	MinPrice           float64           `json:"minPrice"`
	MaxPrice           float64           `json:"maxPrice"`
	AvgDaysOnMarket    float64           `json:"avgDaysOnMarket"`
	PriceReductionRate float64           `json:"priceReductionRate"`
	TotalLeads         int64             `json:"totalLeads"`
	TotalConversions   int64             `json:"totalConversions"`
	LeadsPerProperty   float64           `json:"leadsPerProperty"`
	ConversionRate     float64           `json:"conversionRate"`
	HeatScore          float64           `json:"heatScore"`
	HeatLabel          scoring.HeatLabel `json:"heatLabel"`
	PriceChange        *float64          `json:"priceChange"`
	LeadsTrend         *float64          `json:"leadsTrend"`
	TrendState         string            `json:"trendState"`
	Rank               int               `json:"rank"`
	CreatedAt          time.Time         `json:"createdAt"`
}

// Aggregate rolls property snapshots into one market row. previous may be nil.
// It never divides by zero: empty denominators give 0 and missing baselines give nil trends.
func Aggregate(key MarketKey, period Period, props []PropertySnapshot, previous *MarketMetrics, w scoring.Weights) MarketMetrics {
	m := MarketMetrics{
		Key:           key,
		PeriodStart:   period.Start,
		PeriodEnd:     period.End,
		PropertyCount: len(props),
		HeatLabel:     scoring.HeatCold,
		TrendState:    TrendNoBaseline,
	}

	prices := make([]float64, 0, len(props))
	var domTotal float64
	var domKnown, reduced int
	for _, p := range props {
		if p.Active {
			m.ActiveListings++
		}
		if p.ListPrice > 0 {
			prices = append(prices, p.ListPrice)
		}
		if p.OriginalPrice > 0 && p.ListPrice > 0 && p.ListPrice < p.OriginalPrice {
			reduced++
		}
		if p.DaysOnMarket > 0 {
			domTotal += float64(p.DaysOnMarket)
			domKnown++
		}
		m.TotalLeads += p.Leads
		m.TotalConversions += p.Conversions
	}

	if len(prices) > 0 {
		sort.Float64s(prices)
		sum := 0.0
		for _, v := range prices {
			sum += v
		}
		m.AvgPrice = round2(sum / float64(len(prices)))
		m.MedianPrice = round2(median(prices))
		m.MinPrice = prices[0]
		m.MaxPrice = prices[len(prices)-1]
	}

	n := float64(len(props))
	if n > 0 {
		m.LeadsPerProperty = round3(float64(m.TotalLeads) / n)
	}
	if domKnown > 0 {
		m.AvgDaysOnMarket = round2(domTotal / float64(domKnown))
	}
	m.PriceReductionRate = round2(scoring.Rate(float64(reduced), n))
	m.ConversionRate = round2(scoring.Rate(float64(m.TotalConversions), float64(m.TotalLeads)))

	if n > 0 {
		m.HeatScore = heatScore(m, w)
		m.HeatLabel = scoring.HeatLabelFor(m.HeatScore)
	}

	applyTrends(&m, previous)
	return m
}

// heatScore weighs demand, conversion, turnover (inverse days on market) and
// price stability (inverse reduction rate). Unknown days on market add no turnover.
func heatScore(m MarketMetrics, w scoring.Weights) float64 {
	c := w.HeatCeilings
	demand := scoring.Normalize(m.LeadsPerProperty, c.LeadsPerProperty)
	conversion := scoring.Normalize(m.ConversionRate, c.ConversionPct)
	turnover := 0.0
	if m.AvgDaysOnMarket > 0 {
		turnover = 100 - scoring.Normalize(m.AvgDaysOnMarket, c.MaxDaysOnMarket)
	}
	stability := 100 - scoring.Clamp(m.PriceReductionRate)

	score := demand*w.Heat.Demand +
		conversion*w.Heat.Conversion +
		turnover*w.Heat.Turnover +
		stability*w.Heat.PriceStability
	return scoring.RoundScore(scoring.Settle(scoring.Clamp(score)))
}

func applyTrends(m *MarketMetrics, previous *MarketMetrics) {
	if previous == nil {
		return
	}
	m.PriceChange = pctDelta(previous.AvgPrice, m.AvgPrice)
	m.LeadsTrend = pctDelta(float64(previous.TotalLeads), float64(m.TotalLeads))

	switch {
	case m.PriceChange != nil && m.LeadsTrend != nil:
		m.TrendState = TrendBaseline
	case m.PriceChange != nil || m.LeadsTrend != nil:
		m.TrendState = TrendPartial
	default:
		m.TrendState = TrendNoBaseline
	}
}

// pctDelta is nil when there is no baseline to compare against.
func pctDelta(before, after float64) *float64 {
	if before == 0 {
		return nil
	}
	v := round2((after - before) / before * 100)
	return &v
}

// RankMarkets orders markets by heat desc, total leads desc, city asc, then
// state asc and assigns Rank from 1. The input slice is not modified.
func RankMarkets(ms []MarketMetrics) []MarketMetrics {
	out := make([]MarketMetrics, len(ms))
	copy(out, ms)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.HeatScore != b.HeatScore {
			return a.HeatScore > b.HeatScore
		}
		if a.TotalLeads != b.TotalLeads {
			return a.TotalLeads > b.TotalLeads
		}
		if a.Key.City != b.Key.City {
			return a.Key.City < b.Key.City
		}
		return a.Key.State < b.Key.State
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
