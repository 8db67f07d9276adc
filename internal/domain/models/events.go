package models

import "time"

// SeriesFetched is published whenever a populated daily series is pulled
// from the provider.
type SeriesFetched struct {
	Symbol    string    `json:"symbol"`
	FetchedAt time.Time `json:"fetched_at"`
	Count     int       `json:"count"`
	First     string    `json:"first"`
	Last      string    `json:"last"`
	LastBar   *PriceBar `json:"last_bar,omitempty"`
}

// NewSeriesFetched summarises s. It returns nil when s has no bars.
func NewSeriesFetched(s *PriceSeries, at time.Time) *SeriesFetched {
	if s.Empty() {
		return nil
	}
	last := s.Bars[len(s.Bars)-1]
	return &SeriesFetched{
		Symbol:    s.Symbol,
		FetchedAt: at.UTC(),
		Count:     len(s.Bars),
		First:     s.Bars[0].Date.Format("2006-01-02"),
		Last:      last.Date.Format("2006-01-02"),
		LastBar:   &last,
	}
}
