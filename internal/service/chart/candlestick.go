// Package chart builds renderer-agnostic figure descriptors from price series.
package chart

import (
	"encoding/json"

	"StockDash/internal/domain/models"
	"StockDash/pkg/util"
)

// PlotChart builds the candlestick figure for s. An empty or no-data series
// yields the placeholder chart carrying the "no data" warning.
func PlotChart(s *models.PriceSeries) *models.Chart {
	ch := &models.Chart{
		Traces: []models.CandlestickTrace{},
		Layout: models.ChartLayout{},
	}
	if s != nil {
		ch.Symbol = s.Symbol
	}
	if s.Empty() {
		ch.Empty = true
		ch.Warning = models.ChartNoDataAlert
		return ch
	}

	open, _ := s.Column(models.PriceColOpen)
	high, _ := s.Column(models.PriceColHigh)
	low, _ := s.Column(models.PriceColLow)
	closes, _ := s.Column(models.PriceColClose)
	trace := models.CandlestickTrace{
		Type:  "candlestick",
		Name:  s.Symbol,
		X:     make([]string, s.Len()),
		Open:  open,
		High:  high,
		Low:   low,
		Close: closes,
	}
	for i, b := range s.Bars {
		trace.X[i] = util.FormatTradingDate(b.Date)
	}

	ch.Traces = append(ch.Traces, trace)
	ch.Layout = models.ChartLayout{
		Title:      models.ChartTitle,
		XAxisTitle: models.ChartXAxisTitle,
		YAxisTitle: models.ChartYAxisTitle,
		Width:      models.ChartWidth,
		Height:     models.ChartHeight,
	}
	return ch
}

type plotlyAxis struct {
	Title plotlyText `json:"title"`
}

type plotlyText struct {
	Text string `json:"text"`
}

type plotlyLayout struct {
	Title  *plotlyText `json:"title,omitempty"`
	XAxis  *plotlyAxis `json:"xaxis,omitempty"`
	YAxis  *plotlyAxis `json:"yaxis,omitempty"`
	Width  int         `json:"width,omitempty"`
	Height int         `json:"height,omitempty"`
}

// Figure is the plotly.js document ({data, layout}) for a chart.
type Figure struct {
	Data   []models.CandlestickTrace `json:"data"`
	Layout plotlyLayout              `json:"layout"`
}

// ToFigure converts ch into the plotly.js figure shape.
func ToFigure(ch *models.Chart) Figure {
	f := Figure{Data: ch.Traces}
	if f.Data == nil {
		f.Data = []models.CandlestickTrace{}
	}
	l := ch.Layout
	if l.Title != "" {
		f.Layout.Title = &plotlyText{Text: l.Title}
	}
	if l.XAxisTitle != "" {
		f.Layout.XAxis = &plotlyAxis{Title: plotlyText{Text: l.XAxisTitle}}
	}
	if l.YAxisTitle != "" {
		f.Layout.YAxis = &plotlyAxis{Title: plotlyText{Text: l.YAxisTitle}}
	}
	f.Layout.Width = l.Width
	f.Layout.Height = l.Height
	return f
}

// MarshalFigure renders ch as plotly.js JSON.
func MarshalFigure(ch *models.Chart) ([]byte, error) {
	return json.Marshal(ToFigure(ch))
}
