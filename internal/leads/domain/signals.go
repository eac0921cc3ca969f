package domain

import "realty_leads_backend/platform/sanitize"

// Signals is the classification input derived from a submission.
type Signals struct {
	SourceDomain       string
	HasPropertySignals bool
	HasAgentSignals    bool
}

// Empty reports that nothing in the submission pointed at a category.
func (s Signals) Empty() bool {
	return s.SourceDomain == "" && !s.HasPropertySignals && !s.HasAgentSignals
}

// ExtractSignals never fails; a fully sparse submission yields zero Signals.
func ExtractSignals(sub LeadSubmission) Signals {
	sig := Signals{SourceDomain: sanitize.Host(sub.Source)}

	if p := sub.Property; p != nil {
		sig.HasPropertySignals = anyPresent(p.PropertyAddress, p.PropertyPrice, p.PropertyID, p.Timeline, p.Budget)
	}
	if a := sub.Agent; a != nil {
		sig.HasAgentSignals = anyPresent(a.BrokerageName, a.YearsExperience, a.CurrentLeadSource, a.MonthlyLeadBudget, a.SelectedPlan)
	}

	return sig
}
