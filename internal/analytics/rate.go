package analytics

import "math"

// Rate returns num/den as a percentage, or 0 when den is 0.
func Rate(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den * 100
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
