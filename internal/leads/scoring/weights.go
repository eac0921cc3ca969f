package scoring

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const weightSumTolerance = 0.001

// LeadWeights weight the four lead sub-scores.
type LeadWeights struct {
	View       float64 `yaml:"view"`
	Engagement float64 `yaml:"engagement"`
	Conversion float64 `yaml:"conversion"`
	Market     float64 `yaml:"market"`
}

// PropertyWeights weight the normalized property factors.
type PropertyWeights struct {
	Views            float64 `yaml:"views"`
	Leads            float64 `yaml:"leads"`
	Conversions      float64 `yaml:"conversions"`
	ViewToLead       float64 `yaml:"view_to_lead"`
	LeadToConversion float64 `yaml:"lead_to_conversion"`
}

// PropertyCeilings are the raw values that normalize to 100.
type PropertyCeilings struct {
	Views               float64 `yaml:"views"`
	Leads               float64 `yaml:"leads"`
	Conversions         float64 `yaml:"conversions"`
	ViewToLeadPct       float64 `yaml:"view_to_lead_pct"`
	LeadToConversionPct float64 `yaml:"lead_to_conversion_pct"`
}

// HeatWeights weight the market heat components.
type HeatWeights struct {
	Demand         float64 `yaml:"demand"`
	Conversion     float64 `yaml:"conversion"`
	Turnover       float64 `yaml:"turnover"`
	PriceStability float64 `yaml:"price_stability"`
}

// HeatCeilings normalize the market heat components.
type HeatCeilings struct {
	LeadsPerProperty float64 `yaml:"leads_per_property"`
	ConversionPct    float64 `yaml:"conversion_pct"`
	MaxDaysOnMarket  float64 `yaml:"max_days_on_market"`
}

// Weights is the tunable scoring configuration.
type Weights struct {
	Lead             LeadWeights      `yaml:"lead"`
	Property         PropertyWeights  `yaml:"property"`
	PropertyCeilings PropertyCeilings `yaml:"property_ceilings"`
	Heat             HeatWeights      `yaml:"heat"`
	HeatCeilings     HeatCeilings     `yaml:"heat_ceilings"`
}

// DefaultWeights returns the calibrated defaults.
func DefaultWeights() Weights {
	return Weights{
		Lead: LeadWeights{View: 0.2, Engagement: 0.3, Conversion: 0.3, Market: 0.2},
		Property: PropertyWeights{
			Views:            0.15,
			Leads:            0.25,
			Conversions:      0.20,
			ViewToLead:       0.20,
			LeadToConversion: 0.20,
		},
		PropertyCeilings: PropertyCeilings{
			Views:               500,
			Leads:               20,
			Conversions:         5,
			ViewToLeadPct:       10,
			LeadToConversionPct: 20,
		},
		Heat: HeatWeights{Demand: 0.35, Conversion: 0.25, Turnover: 0.25, PriceStability: 0.15},
		HeatCeilings: HeatCeilings{
			LeadsPerProperty: 10,
			ConversionPct:    20,
			MaxDaysOnMarket:  180,
		},
	}
}

// LoadWeights reads a YAML weights file over the defaults. An empty path returns the defaults.
// Sections missing from the file keep their default values.
func LoadWeights(path string) (Weights, error) {
	w := DefaultWeights()
	if strings.TrimSpace(path) == "" {
		return w, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, fmt.Errorf("read weights file: %w", err)
	}
	return ParseWeights(raw)
}

// ParseWeights decodes YAML over the defaults and validates the result.
func ParseWeights(raw []byte) (Weights, error) {
	w := DefaultWeights()
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return Weights{}, fmt.Errorf("decode weights: %w", err)
	}
	if err := w.Validate(); err != nil {
		return Weights{}, err
	}
	return w, nil
}

// Validate checks that each weight set sums to 1 and every ceiling is positive.
func (w Weights) Validate() error {
	sums := map[string][]float64{
		"lead":     {w.Lead.View, w.Lead.Engagement, w.Lead.Conversion, w.Lead.Market},
		"property": {w.Property.Views, w.Property.Leads, w.Property.Conversions, w.Property.ViewToLead, w.Property.LeadToConversion},
		"heat":     {w.Heat.Demand, w.Heat.Conversion, w.Heat.Turnover, w.Heat.PriceStability},
	}
	for _, name := range []string{"lead", "property", "heat"} {
		total := 0.0
		for _, v := range sums[name] {
			if v < 0 {
				return fmt.Errorf("%s weights must not be negative", name)
			}
			total += v
		}
		if math.Abs(total-1) > weightSumTolerance {
			return fmt.Errorf("%s weights sum to %.4f, expected 1.0", name, total)
		}
	}

	ceilings := []float64{
		w.PropertyCeilings.Views, w.PropertyCeilings.Leads, w.PropertyCeilings.Conversions,
		w.PropertyCeilings.ViewToLeadPct, w.PropertyCeilings.LeadToConversionPct,
		w.HeatCeilings.LeadsPerProperty, w.HeatCeilings.ConversionPct, w.HeatCeilings.MaxDaysOnMarket,
	}
	for _, c := range ceilings {
		if c <= 0 {
			return fmt.Errorf("score ceilings must be positive")
		}
	}
	return nil
}
