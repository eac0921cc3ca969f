// Package routing delivers classified leads to the CRM and falls back to local
// durability plus a webhook relay when delivery fails.
package routing

import (
	"math"
	"time"

	"realty_leads_backend/internal/leads/domain"
)

// Pipeline labels reported back to callers.
const (
	LabelAgentPipeline    = "Agent Pipeline"
	LabelBuyerPipeline    = "Buyer Pipeline"
	LabelPipelinePending  = "Contact Created (Pipeline Pending Setup)"
	LabelMortgagePipeline = "Buyer Pipeline (Mortgage)"
	LabelContactOnly      = "Contact Only"
)

// Config is injected at construction. Empty IDs mean the pipeline is not set up.
type Config struct {
	AgentPipelineID string
	AgentStageID    string
	BuyerPipelineID string
	BuyerStageID    string
	RelayTimeout    time.Duration
}

func (c Config) agentConfigured() bool {
	return c.AgentPipelineID != "" && c.AgentStageID != ""
}

func (c Config) buyerConfigured() bool {
	return c.BuyerPipelineID != "" && c.BuyerStageID != ""
}

// Selection is where a lead should land downstream.
type Selection struct {
	PipelineID    string
	StageID       string
	MonetaryValue float64
	Label         string
	Configured    bool
}

// SelectPipeline maps a category to pipeline, stage and deal value.
// An unconfigured pipeline is a normal outcome; the contact is still created.
func (c Config) SelectPipeline(category domain.LeadCategory, lead domain.Lead) Selection {
	value := MonetaryValue(category, lead)

	switch category {
	case domain.CategoryBuyer:
		if c.buyerConfigured() {
			return Selection{PipelineID: c.BuyerPipelineID, StageID: c.BuyerStageID, MonetaryValue: value, Label: LabelBuyerPipeline, Configured: true}
		}
		return Selection{MonetaryValue: value, Label: LabelPipelinePending}
	case domain.CategoryMortgage:
		if c.buyerConfigured() {
			return Selection{PipelineID: c.BuyerPipelineID, StageID: c.BuyerStageID, MonetaryValue: value, Label: LabelMortgagePipeline, Configured: true}
		}
		return Selection{MonetaryValue: value, Label: LabelContactOnly}
	default:
		if c.agentConfigured() {
			return Selection{PipelineID: c.AgentPipelineID, StageID: c.AgentStageID, MonetaryValue: value, Label: LabelAgentPipeline, Configured: true}
		}
		return Selection{MonetaryValue: value, Label: LabelPipelinePending}
	}
}

// MonetaryValue estimates the deal value attached to the opportunity.
//
//	AGENT: monthly lead budget, else plan price
//	BUYER: budget (midpoint of a range), else property price
//	MORTGAGE: home price minus down payment
func MonetaryValue(category domain.LeadCategory, lead domain.Lead) float64 {
	var v float64
	switch category {
	case domain.CategoryAgent:
		if a := lead.AgentFields; a != nil {
			v = firstAmount(a.MonthlyLeadBudget, a.PlanPrice)
		}
	case domain.CategoryBuyer:
		if p := lead.PropertyFields; p != nil {
			v = firstAmount(p.Budget, p.PropertyPrice)
		}
	case domain.CategoryMortgage:
		if m := lead.MortgageFields; m != nil {
			price, _ := domain.ParseAmount(m.HomePrice)
			down, _ := domain.ParseAmount(m.DownPayment)
			v = math.Max(price-down, 0)
		}
	}
	return math.Round(v*100) / 100
}

func firstAmount(values ...string) float64 {
	for _, s := range values {
		if v, ok := domain.ParseAmount(s); ok {
			return v
		}
	}
	return 0
}
