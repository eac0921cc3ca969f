package domain

import "strings"

// LeadCategory is the routing category assigned after classification.
type LeadCategory string

const (
	CategoryAgent    LeadCategory = "AGENT"
	CategoryBuyer    LeadCategory = "BUYER"
	CategoryMortgage LeadCategory = "MORTGAGE"
)

// Rule names the precedence step that decided a category.
type Rule string

const (
	RuleMortgageFields Rule = "mortgage_fields"
	RuleBuyerDomain    Rule = "buyer_domain"
	RuleAgentDomain    Rule = "agent_domain"
	RulePropertyFields Rule = "property_fields"
	RuleAgentFields    Rule = "agent_fields"
	RuleDefault        Rule = "default"
)

// Decision is a category plus why it was chosen.
// Ambiguous is set when nothing matched and the default applied.
type Decision struct {
	Category  LeadCategory
	Rule      Rule
	Ambiguous bool
}

// Classifier maps signals to a category. The zero value recognizes no domains.
type Classifier struct {
	BuyerSiteDomains []string
	AgentSiteDomain  string
}

// NewClassifier normalizes the configured domains once.
func NewClassifier(buyerSiteDomains []string, agentSiteDomain string) Classifier {
	buyers := make([]string, 0, len(buyerSiteDomains))
	for _, d := range buyerSiteDomains {
		if d = normalizeDomain(d); d != "" {
			buyers = append(buyers, d)
		}
	}
	return Classifier{BuyerSiteDomains: buyers, AgentSiteDomain: normalizeDomain(agentSiteDomain)}
}

// Classify returns the category for signals. It never fails.
func (c Classifier) Classify(sig Signals) LeadCategory {
	return c.Decide(sig).Category
}

// Decide runs the precedence chain; the first matching rule wins.
func (c Classifier) Decide(sig Signals) Decision {
	host := normalizeDomain(sig.SourceDomain)

	if host != "" {
		for _, d := range c.BuyerSiteDomains {
			if domainMatches(host, d) {
				return Decision{Category: CategoryBuyer, Rule: RuleBuyerDomain}
			}
		}
		if domainMatches(host, c.AgentSiteDomain) {
			return Decision{Category: CategoryAgent, Rule: RuleAgentDomain}
		}
	}

	switch {
	case sig.HasPropertySignals:
		return Decision{Category: CategoryBuyer, Rule: RulePropertyFields}
	case sig.HasAgentSignals:
		return Decision{Category: CategoryAgent, Rule: RuleAgentFields}
	default:
		return Decision{Category: CategoryAgent, Rule: RuleDefault, Ambiguous: true}
	}
}

// ClassifySubmission handles mortgage forms before the signal chain runs.
func (c Classifier) ClassifySubmission(sub LeadSubmission) (Decision, Signals) {
	sig := ExtractSignals(sub)
	if IsMortgage(sub) {
		return Decision{Category: CategoryMortgage, Rule: RuleMortgageFields}, sig
	}
	return c.Decide(sig), sig
}

func normalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	d = strings.TrimSuffix(d, ".")
	return strings.TrimPrefix(d, "www.")
}

// domainMatches accepts the domain itself or any subdomain of it.
func domainMatches(host, domain string) bool {
	if domain == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}
