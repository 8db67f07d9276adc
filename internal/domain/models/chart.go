package models

// Candlestick chart layout constants.
const (
	ChartTitle       = "Stock Price Candlestick Chart"
	ChartXAxisTitle  = "Date"
	ChartYAxisTitle  = "Price (USD)"
	ChartWidth       = 1000
	ChartHeight      = 800
	ChartNoDataAlert = "No data available to plot."
)

// CandlestickTrace is one candlestick series keyed by date.
type CandlestickTrace struct {
	Type  string    `json:"type"`
	Name  string    `json:"name,omitempty"`
	X     []string  `json:"x"`
	Open  []float64 `json:"open"`
	High  []float64 `json:"high"`
	Low   []float64 `json:"low"`
	Close []float64 `json:"close"`
}

// ChartLayout holds the figure's fixed presentation settings.
type ChartLayout struct {
	Title      string `json:"title,omitempty"`
	XAxisTitle string `json:"xaxis_title,omitempty"`
	YAxisTitle string `json:"yaxis_title,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
}

// Chart is a read-only figure descriptor handed to a renderer. An Empty chart
// is the placeholder for a series with nothing to plot; Warning then holds
// the message to surface.
type Chart struct {
	Symbol  string             `json:"symbol,omitempty"`
	Empty   bool               `json:"empty"`
	Warning string             `json:"warning,omitempty"`
	Traces  []CandlestickTrace `json:"traces"`
	Layout  ChartLayout        `json:"layout"`
}
