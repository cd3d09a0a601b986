package util

import (
	"math"
	"strconv"
	"strings"
)

// ParseInt parses a string to an integer, returning defaultValue if parsing fails.
// Decimal input such as "6000.0" is truncated rather than rejected.
func ParseInt(s string, defaultValue int) int {
	s = strings.TrimSpace(s)
	if val, err := strconv.Atoi(s); err == nil {
		return val
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) &&
		f >= math.MinInt32 && f <= math.MaxInt32 {
		return int(f)
	}
	return defaultValue
}

// ParseFloat parses a string to a float64, returning defaultValue if parsing
// fails or the value is not finite
func ParseFloat(s string, defaultValue float64) float64 {
	val, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(val) || math.IsInf(val, 0) {
		return defaultValue
	}
	return val
}

// ClampInt bounds v to [lo, hi]
func ClampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
