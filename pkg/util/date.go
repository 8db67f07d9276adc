package util

import (
	"strings"
	"time"
)

// DateLayout is the provider's trading-day key format.
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// ParseTradingDate parses a provider date key into a UTC calendar day.
// Intraday timestamps are truncated to their day.
func ParseTradingDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// ParseDateDefault parses a trading date or returns def if empty/invalid.
func ParseDateDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTradingDate(s); ok {
		return t
	}
	return def
}

// FormatTradingDate renders t in the provider's key format.
func FormatTradingDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
