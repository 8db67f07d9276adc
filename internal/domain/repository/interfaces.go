package repository

import (
	"context"
	"time"

	"StockDash/internal/domain/models"
)

// MarketData is the third-party market data provider.
type MarketData interface {
	SymbolSearch(ctx context.Context, company string) (*models.SymbolMatches, error)
	StockData(ctx context.Context, symbol string) (*models.PriceSeries, error)
	PlotChart(s *models.PriceSeries) *models.Chart
}

// BarArchive persists fetched daily bars so history survives provider limits.
type BarArchive interface {
	StoreSeries(ctx context.Context, s *models.PriceSeries) error
	Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.PriceBar, error)
	Health(ctx context.Context) error
	Close() error
}

// Publisher announces freshly fetched series to downstream consumers.
type Publisher interface {
	PublishSeries(ctx context.Context, evt *models.SeriesFetched) error
	Close() error
}

// Metrics records service-level measurements.
type Metrics interface {
	RecordUpstream(function, result string)
	RecordError(kind string)
	RecordCache(kind, result string)
	RecordLastClose(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
