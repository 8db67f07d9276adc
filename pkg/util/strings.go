package util

import (
	"math"
	"strconv"
	"strings"
)

// ToFloat coerces a decoded JSON value to a finite float64.
// Strings are trimmed and parsed; anything else non-numeric, NaN or Inf
// reports false.
func ToFloat(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = p
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// NormalizeSymbol trims and upper-cases a ticker for use in keys and labels.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
