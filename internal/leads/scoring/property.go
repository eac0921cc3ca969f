package scoring

import "math"

// PropertyInputs are the cumulative counters of one property.
type PropertyInputs struct {
	Views       int64
	Leads       int64
	Conversions int64
}

// PropertyScore is the scored result for a property.
type PropertyScore struct {
	Composite            float64
	Label                HeatLabel
	ViewToLeadRate       float64
	LeadToConversionRate float64
	Factors              map[string]float64
}

// ScoreProperty normalizes each counter and rate against its ceiling and weights them.
func ScoreProperty(in PropertyInputs, w Weights) PropertyScore {
	v2l := Rate(float64(in.Leads), float64(in.Views))
	l2c := Rate(float64(in.Conversions), float64(in.Leads))
	c := w.PropertyCeilings
	pw := w.Property

	factors := make(map[string]float64, 5)
	score := 0.0
	score += addFactor(factors, "views", Normalize(float64(in.Views), c.Views)*pw.Views)
	score += addFactor(factors, "leads", Normalize(float64(in.Leads), c.Leads)*pw.Leads)
	score += addFactor(factors, "conversions", Normalize(float64(in.Conversions), c.Conversions)*pw.Conversions)
	score += addFactor(factors, "view_to_lead", Normalize(v2l, c.ViewToLeadPct)*pw.ViewToLead)
	score += addFactor(factors, "lead_to_conversion", Normalize(l2c, c.LeadToConversionPct)*pw.LeadToConversion)

	composite := Settle(Clamp(score))
	return PropertyScore{
		Composite:            RoundScore(composite),
		Label:                HeatLabelFor(composite),
		ViewToLeadRate:       round2(v2l),
		LeadToConversionRate: round2(l2c),
		Factors:              factors,
	}
}

func addFactor(factors map[string]float64, key string, value float64) float64 {
	if math.Abs(value) < 0.01 {
		return 0
	}
	// one decimal for display
	factors[key] = math.Round(value*10) / 10
	return value
}
