package scoring

import (
	"strconv"
	"strings"

	"realty_leads_backend/internal/leads/domain"
)

// PropertyContext is what the store knows about the property and market a lead refers to.
type PropertyContext struct {
	Views      int64
	MarketHeat float64
	HasMarket  bool
}

// DeriveLeadInputs maps a submission onto the four sub-scores.
// Missing or malformed values contribute nothing.
func DeriveLeadInputs(sub domain.LeadSubmission, category domain.LeadCategory, pc PropertyContext) LeadInputs {
	in := LeadInputs{
		ViewScore:       scoreViews(pc.Views),
		EngagementScore: scoreCompleteness(sub),
		HasContact:      sub.Contact.HasChannel(),
	}
	if pc.HasMarket {
		in.MarketScore = Clamp(pc.MarketHeat)
	}

	switch category {
	case domain.CategoryBuyer:
		in.ConversionScore = scoreBuyerIntent(sub)
	case domain.CategoryAgent:
		in.ConversionScore = scoreAgentIntent(sub)
	case domain.CategoryMortgage:
		in.ConversionScore = scoreMortgageIntent(sub)
	}
	return in
}

// scoreViews rewards leads on properties that already draw attention.
func scoreViews(views int64) float64 {
	switch {
	case views >= 500:
		return 100
	case views >= 200:
		return 80
	case views >= 100:
		return 60
	case views >= 25:
		return 40
	case views > 0:
		return 20
	default:
		return 0
	}
}

// scoreCompleteness is the share of offered fields the lead filled in.
func scoreCompleteness(sub domain.LeadSubmission) float64 {
	fields := []string{sub.Contact.FirstName, sub.Contact.LastName, sub.Contact.Email, sub.Contact.Phone, sub.Message}
	if p := sub.Property; p != nil {
		fields = append(fields, p.PropertyAddress, p.PropertyPrice, p.Timeline, p.Budget, p.Bedrooms)
	}
	if a := sub.Agent; a != nil {
		fields = append(fields, a.BrokerageName, a.YearsExperience, a.CurrentLeadSource, a.MonthlyLeadBudget, a.SelectedPlan)
	}
	if m := sub.Mortgage; m != nil {
		fields = append(fields, m.HomePrice, m.DownPayment, m.InterestRate, m.LoanTerm)
	}

	filled := 0
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			filled++
		}
	}
	return float64(filled) / float64(len(fields)) * 100
}

func scoreBuyerIntent(sub domain.LeadSubmission) float64 {
	p := sub.Property
	if p == nil {
		return 0
	}
	score := scoreTimeline(p.Timeline)
	if v, ok := domain.ParseAmount(p.Budget); ok && v > 0 {
		score += 20
	}
	if p.PreApproved {
		score += 30
	}
	if strings.TrimSpace(sub.Contact.Phone) != "" {
		score += 10
	}
	return Clamp(score)
}

// scoreTimeline reads the urgency buckets used by the buyer forms.
func scoreTimeline(timeline string) float64 {
	t := strings.ToLower(strings.TrimSpace(timeline))
	switch {
	case t == "":
		return 0
	case strings.Contains(t, "asap"), strings.Contains(t, "immediate"), strings.Contains(t, "0-3"), strings.Contains(t, "1-3"):
		return 40 // Buying this quarter
	case strings.Contains(t, "3-6"):
		return 25
	case strings.Contains(t, "6-12"):
		return 10
	default:
		return 5 // Browsing
	}
}

func scoreAgentIntent(sub domain.LeadSubmission) float64 {
	a := sub.Agent
	if a == nil {
		return 0
	}
	score := 0.0
	if strings.TrimSpace(a.SelectedPlan) != "" {
		score += 40 // Picked a plan on the pricing page
	}
	if v, ok := domain.ParseAmount(a.MonthlyLeadBudget); ok {
		switch {
		case v >= 1000:
			score += 30
		case v >= 500:
			score += 20
		case v > 0:
			score += 10
		}
	}
	if years, err := strconv.Atoi(strings.TrimSpace(a.YearsExperience)); err == nil {
		switch {
		case years >= 5:
			score += 20
		case years >= 2:
			score += 10
		}
	}
	if strings.TrimSpace(a.BrokerageName) != "" {
		score += 10
	}
	return Clamp(score)
}

func scoreMortgageIntent(sub domain.LeadSubmission) float64 {
	m := sub.Mortgage
	if m == nil {
		return 0
	}
	score := 0.0
	price, priceOK := domain.ParseAmount(m.HomePrice)
	if priceOK && price > 0 {
		score += 20
		if down, ok := domain.ParseAmount(m.DownPayment); ok {
			switch ratio := down / price; {
			case ratio >= 0.20:
				score += 40
			case ratio >= 0.10:
				score += 25
			case ratio > 0:
				score += 10
			}
		}
	}
	if _, ok := domain.ParsePercent(m.InterestRate); ok {
		score += 20
	}
	if strings.TrimSpace(m.LoanTerm) != "" {
		score += 10
	}
	if strings.TrimSpace(sub.Contact.Phone) != "" {
		score += 10
	}
	return Clamp(score)
}
