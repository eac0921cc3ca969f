package markets

import (
	"testing"

	"realty_leads_backend/internal/leads/scoring"

	"github.com/google/uuid"
)

func TestRescoreDerivesRatesAndAverages(t *testing.T) {
	pm := PropertyMetrics{PropertyID: uuid.New(), Views: 200, Leads: 10, Conversions: 2}
	got := Rescore(pm, 14, 20, scoring.DefaultWeights())

	if got.ViewToLeadRate != 5 || got.LeadToConversionRate != 20 {
		t.Fatalf("unexpected rates %v/%v", got.ViewToLeadRate, got.LeadToConversionRate)
	}
	if got.LeadsPerDay != 2 || got.LeadsPerWeek != 5 {
		t.Fatalf("unexpected rolling averages %v/%v", got.LeadsPerDay, got.LeadsPerWeek)
	}
	if got.LeadScore <= 0 || got.LeadScore > 100 {
		t.Fatalf("expected score in (0,100], got %v", got.LeadScore)
	}
	if got.ScoreLabel != scoring.HeatLabelFor(got.LeadScore) {
		t.Fatalf("label %s does not match score %v", got.ScoreLabel, got.LeadScore)
	}
}

func TestRescoreZeroViewsHasZeroRates(t *testing.T) {
	got := Rescore(PropertyMetrics{PropertyID: uuid.New()}, 0, 0, scoring.DefaultWeights())
	if got.ViewToLeadRate != 0 || got.LeadToConversionRate != 0 || got.LeadScore != 0 {
		t.Fatalf("expected zeros, got %+v", got)
	}
}

func TestRankPropertiesTieBreaks(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	b := uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	c := uuid.MustParse("00000000-0000-0000-0000-00000000000c")
	in := []PropertyMetrics{
		{PropertyID: b, LeadScore: 40, Leads: 3},
		{PropertyID: c, LeadScore: 90, Leads: 1},
		{PropertyID: a, LeadScore: 40, Leads: 3},
		{PropertyID: uuid.New(), LeadScore: 40, Leads: 9},
	}
	out := RankProperties(in)
	if out[0].PropertyID != c {
		t.Fatalf("expected highest score first, got %s", out[0].PropertyID)
	}
	if out[1].Leads != 9 {
		t.Fatalf("expected more leads second, got %d", out[1].Leads)
	}
	if out[2].PropertyID != a || out[3].PropertyID != b {
		t.Fatalf("expected id ascending on full tie, got %s then %s", out[2].PropertyID, out[3].PropertyID)
	}
	for i, p := range out {
		if p.MarketRank != i+1 {
			t.Fatalf("expected rank %d, got %d", i+1, p.MarketRank)
		}
	}
}

func TestValidEventKind(t *testing.T) {
	for _, k := range []string{EventView, EventLead, EventConversion} {
		if !ValidEventKind(k) {
			t.Fatalf("expected %s valid", k)
		}
	}
	if ValidEventKind("click") {
		t.Fatalf("expected click invalid")
	}
}
