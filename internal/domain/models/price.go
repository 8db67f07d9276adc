package models

import "time"

// Provider column labels for TIME_SERIES_DAILY records.
const (
	PriceColOpen   = "1. open"
	PriceColHigh   = "2. high"
	PriceColLow    = "3. low"
	PriceColClose  = "4. close"
	PriceColVolume = "5. volume"
)

// PriceColumns lists the daily record labels in provider order.
var PriceColumns = []string{PriceColOpen, PriceColHigh, PriceColLow, PriceColClose, PriceColVolume}

// NoDataNotice is the user-facing message for a series the provider did not return.
const NoDataNotice = "Error: Could not retrieve data. Check your symbol or API limit."

// SeriesStatus tags a PriceSeries result.
type SeriesStatus string

const (
	SeriesOK     SeriesStatus = "ok"
	SeriesNoData SeriesStatus = "no_data"
)

// PriceBar is one cleaned trading day.
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// SeriesMeta mirrors the provider's "Meta Data" block.
type SeriesMeta struct {
	Information   string `json:"information,omitempty"`
	Symbol        string `json:"symbol,omitempty"`
	LastRefreshed string `json:"last_refreshed,omitempty"`
	OutputSize    string `json:"output_size,omitempty"`
	TimeZone      string `json:"time_zone,omitempty"`
}

// PriceSeries is a daily OHLCV series for one symbol. Bars are strictly
// ascending by date with no duplicates. Status is SeriesNoData when the
// provider response lacked the daily series; Notice then carries the
// message to show the user and Detail whatever the provider said instead
// (rate-limit note, invalid call message).
type PriceSeries struct {
	Symbol string       `json:"symbol"`
	Status SeriesStatus `json:"status"`
	Notice string       `json:"notice,omitempty"`
	Detail string       `json:"detail,omitempty"`
	Meta   *SeriesMeta  `json:"meta,omitempty"`
	Bars   []PriceBar   `json:"bars"`
}

// NewNoDataSeries builds the explicit "no data" result.
func NewNoDataSeries(symbol, detail string) *PriceSeries {
	return &PriceSeries{
		Symbol: symbol,
		Status: SeriesNoData,
		Notice: NoDataNotice,
		Detail: detail,
		Bars:   []PriceBar{},
	}
}

// NoData reports whether the provider returned no daily series at all.
func (s *PriceSeries) NoData() bool { return s == nil || s.Status == SeriesNoData }

// Empty reports whether there is nothing to plot. A populated response whose
// rows were all dropped during cleaning is Empty but not NoData.
func (s *PriceSeries) Empty() bool { return s == nil || len(s.Bars) == 0 }

// Len returns the number of bars.
func (s *PriceSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// Last returns the most recent bar.
func (s *PriceSeries) Last() (PriceBar, bool) {
	if s.Empty() {
		return PriceBar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Column returns the values of a provider-labelled column, for consumers
// that still address the series by "1. open" .. "5. volume".
func (s *PriceSeries) Column(label string) ([]float64, bool) {
	var pick func(PriceBar) float64
	switch label {
	case PriceColOpen:
		pick = func(b PriceBar) float64 { return b.Open }
	case PriceColHigh:
		pick = func(b PriceBar) float64 { return b.High }
	case PriceColLow:
		pick = func(b PriceBar) float64 { return b.Low }
	case PriceColClose:
		pick = func(b PriceBar) float64 { return b.Close }
	case PriceColVolume:
		pick = func(b PriceBar) float64 { return b.Volume }
	default:
		return nil, false
	}
	out := make([]float64, s.Len())
	for i := 0; i < s.Len(); i++ {
		out[i] = pick(s.Bars[i])
	}
	return out, true
}
