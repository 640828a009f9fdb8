package core

import (
	"math"
	"strings"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Percent returns part/total as a percentage rounded to 2 decimals, or 0 when total is 0.
func Percent(part, total float64) float64 {
	return Round(Ratio(part, total)*100, 2)
}

// Ratio returns part/total, or 0 when total is 0.
func Ratio(part, total float64) float64 {
	if total == 0 || math.IsNaN(total) || math.IsNaN(part) {
		return 0
	}
	return part / total
}

func Round(val float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(val*p) / p
}
