package transport

import (
	"strings"

	"realty_leads_backend/internal/leads/domain"
	"realty_leads_backend/platform/phone"
	"realty_leads_backend/platform/sanitize"
)

// Request DTOs

// SubmitLeadRequest is the flat public form body. Forms of every kind post to
// the same endpoint; the classifier decides the category from what is present.
type SubmitLeadRequest struct {
	FirstName string `json:"firstName" validate:"omitempty,max=100"`
	LastName  string `json:"lastName" validate:"omitempty,max=100"`
	Email     string `json:"email" validate:"required_without=Phone,omitempty,email,max=254"`
	Phone     string `json:"phone" validate:"required_without=Email,omitempty,min=7,max=30"`
	Source    string `json:"source" validate:"omitempty,max=500"`
	Message   string `json:"message" validate:"omitempty,max=5000"`

	PropertyID      string `json:"propertyId" validate:"omitempty,max=64"`
	PropertyAddress string `json:"propertyAddress" validate:"omitempty,max=300"`
	PropertyPrice   string `json:"propertyPrice" validate:"omitempty,max=64"`
	Timeline        string `json:"timeline" validate:"omitempty,max=100"`
	Budget          string `json:"budget" validate:"omitempty,max=64"`
	PreApproved     bool   `json:"preApproved"`
	Bedrooms        string `json:"bedrooms" validate:"omitempty,max=20"`

	BrokerageName     string `json:"brokerageName" validate:"omitempty,max=200"`
	YearsExperience   string `json:"yearsExperience" validate:"omitempty,max=20"`
	CurrentLeadSource string `json:"currentLeadSource" validate:"omitempty,max=200"`
	MonthlyLeadBudget string `json:"monthlyLeadBudget" validate:"omitempty,max=64"`
	SelectedPlan      string `json:"selectedPlan" validate:"omitempty,max=100"`
	PlanPrice         string `json:"planPrice" validate:"omitempty,max=64"`

	HomePrice    string `json:"homePrice" validate:"omitempty,max=64"`
	DownPayment  string `json:"downPayment" validate:"omitempty,max=64"`
	InterestRate string `json:"interestRate" validate:"omitempty,max=32"`
	LoanTerm     string `json:"loanTerm" validate:"omitempty,max=32"`
}

// ImportLeadsRequest routes a batch of submissions and records one import attempt.
type ImportLeadsRequest struct {
	Target string              `json:"target" validate:"required,min=1,max=100"`
	Leads  []SubmitLeadRequest `json:"leads" validate:"required,min=1,max=500,dive"`
}

type UpdateLeadStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=new contacted qualified converted lost"`
}

type PurchaseLeadRequest struct {
	PurchaserID string `json:"purchaserId" validate:"required,uuid"`
	PriceCents  int64  `json:"priceCents" validate:"required,gt=0"`
}

// ToSubmission cleans the request into the grouped domain shape.
// Groups whose fields are all blank stay nil.
func (r SubmitLeadRequest) ToSubmission() domain.LeadSubmission {
	sub := domain.LeadSubmission{
		Contact: domain.Contact{
			FirstName: sanitize.Text(r.FirstName),
			LastName:  sanitize.Text(r.LastName),
			Email:     sanitize.Email(r.Email),
			Phone:     phone.NormalizeE164(r.Phone),
		},
		Source:  strings.TrimSpace(r.Source),
		Message: sanitize.Text(r.Message),
	}

	property := domain.PropertyFields{
		PropertyID:      strings.TrimSpace(r.PropertyID),
		PropertyAddress: sanitize.Text(r.PropertyAddress),
		PropertyPrice:   strings.TrimSpace(r.PropertyPrice),
		Timeline:        sanitize.Text(r.Timeline),
		Budget:          strings.TrimSpace(r.Budget),
		PreApproved:     r.PreApproved,
		Bedrooms:        strings.TrimSpace(r.Bedrooms),
	}
	if property.PreApproved || present(property.PropertyID, property.PropertyAddress, property.PropertyPrice,
		property.Timeline, property.Budget, property.Bedrooms) {
		sub.Property = &property
	}

	agent := domain.AgentFields{
		BrokerageName:     sanitize.Text(r.BrokerageName),
		YearsExperience:   strings.TrimSpace(r.YearsExperience),
		CurrentLeadSource: sanitize.Text(r.CurrentLeadSource),
		MonthlyLeadBudget: strings.TrimSpace(r.MonthlyLeadBudget),
		SelectedPlan:      sanitize.Text(r.SelectedPlan),
		PlanPrice:         strings.TrimSpace(r.PlanPrice),
	}
	if present(agent.BrokerageName, agent.YearsExperience, agent.CurrentLeadSource,
		agent.MonthlyLeadBudget, agent.SelectedPlan, agent.PlanPrice) {
		sub.Agent = &agent
	}

	mortgage := domain.MortgageFields{
		HomePrice:    strings.TrimSpace(r.HomePrice),
		DownPayment:  strings.TrimSpace(r.DownPayment),
		InterestRate: strings.TrimSpace(r.InterestRate),
		LoanTerm:     strings.TrimSpace(r.LoanTerm),
	}
	if present(mortgage.HomePrice, mortgage.DownPayment, mortgage.InterestRate, mortgage.LoanTerm) {
		sub.Mortgage = &mortgage
	}

	return sub
}

func present(values ...string) bool {
	for _, v := range values {
		if v != "" {
			return true
		}
	}
	return false
}
