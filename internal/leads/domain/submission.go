package domain

import "strings"

// Contact is the person behind a submission.
type Contact struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// FullName joins first and last name, skipping blanks.
func (c Contact) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

// HasChannel reports whether the lead can be reached at all.
func (c Contact) HasChannel() bool {
	return strings.TrimSpace(c.Email) != "" || strings.TrimSpace(c.Phone) != ""
}

// PropertyFields are the buyer-intent fields of a form. Numbers stay as text
// until scoring because forms send ranges ("400000-500000") and free text.
type PropertyFields struct {
	PropertyID      string `json:"propertyId,omitempty"`
	PropertyAddress string `json:"propertyAddress,omitempty"`
	PropertyPrice   string `json:"propertyPrice,omitempty"`
	Timeline        string `json:"timeline,omitempty"`
	Budget          string `json:"budget,omitempty"`
	PreApproved     bool   `json:"preApproved,omitempty"`
	Bedrooms        string `json:"bedrooms,omitempty"`
}

// AgentFields are the fields only an agent signup form carries.
type AgentFields struct {
	BrokerageName     string `json:"brokerageName,omitempty"`
	YearsExperience   string `json:"yearsExperience,omitempty"`
	CurrentLeadSource string `json:"currentLeadSource,omitempty"`
	MonthlyLeadBudget string `json:"monthlyLeadBudget,omitempty"`
	SelectedPlan      string `json:"selectedPlan,omitempty"`
	PlanPrice         string `json:"planPrice,omitempty"`
}

// MortgageFields are the mortgage calculator fields.
type MortgageFields struct {
	HomePrice    string `json:"homePrice,omitempty"`
	DownPayment  string `json:"downPayment,omitempty"`
	InterestRate string `json:"interestRate,omitempty"`
	LoanTerm     string `json:"loanTerm,omitempty"`
}

// LeadSubmission is the validated, category-grouped form input.
// A nil group means the form did not carry any of its fields.
type LeadSubmission struct {
	Contact  Contact
	Source   string
	Message  string
	Property *PropertyFields
	Agent    *AgentFields
	Mortgage *MortgageFields
}

func anyPresent(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// IsMortgage reports whether the submission came from a mortgage form.
// Only homePrice, downPayment and interestRate count; a loan term alone does not.
func IsMortgage(sub LeadSubmission) bool {
	m := sub.Mortgage
	if m == nil {
		return false
	}
	return anyPresent(m.HomePrice, m.DownPayment, m.InterestRate)
}
