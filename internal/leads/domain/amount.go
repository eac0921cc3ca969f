package domain

import (
	"strconv"
	"strings"
)

// ParseAmount reads a form amount such as "$450,000", "450k", "2.5m" or a
// range "400000-500000" (midpoint). ok is false for blank or malformed input.
func ParseAmount(s string) (float64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	if lo, hi, found := strings.Cut(s, "-"); found && strings.TrimSpace(lo) != "" {
		a, okA := parseSingle(lo)
		b, okB := parseSingle(hi)
		if !okA || !okB {
			return 0, false
		}
		return (a + b) / 2, true
	}
	return parseSingle(s)
}

// ParsePercent reads "6.5" or "6.5%".
func ParsePercent(s string) (float64, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

func parseSingle(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("$", "", ",", "", " ", "", "usd", "").Replace(s)
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "k"):
		mult, s = 1_000, strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		mult, s = 1_000_000, strings.TrimSuffix(s, "m")
	}
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v * mult, true
}
