package domain

import "testing"

func testClassifier() Classifier {
	return NewClassifier([]string{"HomeFinder.com", " www.openhouses.io "}, "agents.realtyleads.com")
}

func TestClassifyDefaultsToAgentAndFlagsAmbiguous(t *testing.T) {
	d := testClassifier().Decide(ExtractSignals(LeadSubmission{}))
	if d.Category != CategoryAgent {
		t.Fatalf("expected AGENT, got %s", d.Category)
	}
	if !d.Ambiguous || d.Rule != RuleDefault {
		t.Fatalf("expected ambiguous default decision, got %+v", d)
	}
}

func TestBuyerDomainBeatsAgentFields(t *testing.T) {
	sub := LeadSubmission{
		Source: "https://listings.homefinder.com/p/123",
		Agent:  &AgentFields{BrokerageName: "Acme Realty", SelectedPlan: "pro"},
	}
	d, _ := testClassifier().ClassifySubmission(sub)
	if d.Category != CategoryBuyer || d.Rule != RuleBuyerDomain {
		t.Fatalf("expected BUYER via buyer_domain, got %+v", d)
	}
}

func TestAgentDomainBeatsPropertyFields(t *testing.T) {
	sub := LeadSubmission{
		Source:   "agents.realtyleads.com/signup",
		Property: &PropertyFields{PropertyAddress: "1 Elm St"},
	}
	if got := testClassifier().Classify(ExtractSignals(sub)); got != CategoryAgent {
		t.Fatalf("expected AGENT, got %s", got)
	}
}

func TestDomainMatchIsSuffixOnLabelBoundary(t *testing.T) {
	c := testClassifier()
	sig := Signals{SourceDomain: "nothomefinder.com"}
	if d := c.Decide(sig); d.Rule == RuleBuyerDomain {
		t.Fatalf("expected no domain match for lookalike host, got %+v", d)
	}
	sig = Signals{SourceDomain: "openhouses.io"}
	if d := c.Decide(sig); d.Rule != RuleBuyerDomain {
		t.Fatalf("expected buyer_domain for configured www domain, got %+v", d)
	}
}

func TestPropertySignalsBeforeAgentSignals(t *testing.T) {
	sig := Signals{HasPropertySignals: true, HasAgentSignals: true}
	if got := testClassifier().Classify(sig); got != CategoryBuyer {
		t.Fatalf("expected BUYER, got %s", got)
	}
	sig = Signals{HasAgentSignals: true}
	if got := testClassifier().Classify(sig); got != CategoryAgent {
		t.Fatalf("expected AGENT, got %s", got)
	}
}

func TestMortgageCheckRunsFirst(t *testing.T) {
	sub := LeadSubmission{
		Source:   "homefinder.com",
		Mortgage: &MortgageFields{DownPayment: "60000"},
	}
	d, _ := testClassifier().ClassifySubmission(sub)
	if d.Category != CategoryMortgage {
		t.Fatalf("expected MORTGAGE, got %s", d.Category)
	}

	termOnly := LeadSubmission{Mortgage: &MortgageFields{LoanTerm: "30"}}
	if IsMortgage(termOnly) {
		t.Fatalf("expected loan term alone not to mark a mortgage lead")
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := testClassifier()
	inputs := []Signals{
		{},
		{SourceDomain: "homefinder.com"},
		{HasPropertySignals: true},
		{HasAgentSignals: true, SourceDomain: "example.org"},
	}
	for _, sig := range inputs {
		first := c.Decide(sig)
		for i := 0; i < 5; i++ {
			if got := c.Decide(sig); got != first {
				t.Fatalf("expected stable decision for %+v, got %+v then %+v", sig, first, got)
			}
		}
	}
}

func TestJaneDoeSubmissionIsBuyer(t *testing.T) {
	sub := LeadSubmission{
		Contact:  Contact{FirstName: "Jane", LastName: "Doe", Email: "jane@x.com", Phone: "5551234567"},
		Property: &PropertyFields{PropertyAddress: "123 Main St", Budget: "400000-500000"},
	}
	d, sig := testClassifier().ClassifySubmission(sub)
	if d.Category != CategoryBuyer || d.Rule != RulePropertyFields {
		t.Fatalf("expected BUYER via property_fields, got %+v", d)
	}
	if sig.SourceDomain != "" {
		t.Fatalf("expected empty source domain, got %q", sig.SourceDomain)
	}
}
