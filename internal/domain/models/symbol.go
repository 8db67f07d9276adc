package models

import (
	"sort"
	"strconv"
	"strings"
)

// Provider column labels for SYMBOL_SEARCH rows.
const (
	SymbolColSymbol      = "1. symbol"
	SymbolColName        = "2. name"
	SymbolColType        = "3. type"
	SymbolColRegion      = "4. region"
	SymbolColMarketOpen  = "5. marketOpen"
	SymbolColMarketClose = "6. marketClose"
	SymbolColTimezone    = "7. timezone"
	SymbolColCurrency    = "8. currency"
	SymbolColMatchScore  = "9. matchScore"
)

// SymbolMatch is one "best match" row exactly as the provider returned it.
// The schema is not validated; accessors return "" for absent columns.
type SymbolMatch map[string]string

func (m SymbolMatch) Symbol() string   { return m[SymbolColSymbol] }
func (m SymbolMatch) Name() string     { return m[SymbolColName] }
func (m SymbolMatch) Type() string     { return m[SymbolColType] }
func (m SymbolMatch) Region() string   { return m[SymbolColRegion] }
func (m SymbolMatch) Currency() string { return m[SymbolColCurrency] }

// MatchScore parses the provider's relevance score; 0 when absent.
func (m SymbolMatch) MatchScore() float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(m[SymbolColMatchScore]), 64)
	if err != nil {
		return 0
	}
	return v
}

// SymbolMatches is the symbol-search table: one row per provider match.
type SymbolMatches struct {
	Keywords string        `json:"keywords"`
	Columns  []string      `json:"columns"`
	Rows     []SymbolMatch `json:"rows"`
}

// NewSymbolMatches builds the table, deriving Columns as the union of all
// row keys. Provider labels carry a numeric prefix ("1. ", "2. ", ...), so
// ordering by that prefix reproduces the provider's column order.
func NewSymbolMatches(keywords string, rows []SymbolMatch) *SymbolMatches {
	seen := make(map[string]struct{})
	cols := make([]string, 0)
	for _, r := range rows {
		for k := range r {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			cols = append(cols, k)
		}
	}
	sort.Slice(cols, func(i, j int) bool { return columnLess(cols[i], cols[j]) })

	if rows == nil {
		rows = []SymbolMatch{}
	}
	return &SymbolMatches{Keywords: keywords, Columns: cols, Rows: rows}
}

// Len returns the number of rows.
func (s *SymbolMatches) Len() int { return len(s.Rows) }

func columnLess(a, b string) bool {
	na, okA := labelIndex(a)
	nb, okB := labelIndex(b)
	switch {
	case okA && okB && na != nb:
		return na < nb
	case okA != okB:
		return okA
	default:
		return a < b
	}
}

// labelIndex extracts N from a "N. label" column name.
func labelIndex(label string) (int, bool) {
	prefix, _, found := strings.Cut(label, ".")
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, false
	}
	return n, true
}
