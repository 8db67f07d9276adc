package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"StockDash/internal/domain/models"
	domrepo "StockDash/internal/domain/repository"
	"StockDash/internal/service/ratelimit"
	"StockDash/pkg/cache"
	applogger "StockDash/pkg/logger"
	pkgmetrics "StockDash/pkg/metrics"
	"StockDash/pkg/util"
)

const (
	upstreamKey = "alphavantage"

	cacheKindSearch = "search"
	cacheKindSeries = "series"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrRateLimited     = errors.New("upstream quota exhausted")
	ErrArchiveDisabled = errors.New("bar archive is not enabled")
)

// RateLimitError reports a call refused by the local quota guard.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: retry after %s", ErrRateLimited, e.RetryAfter.Round(time.Second))
	}
	return ErrRateLimited.Error()
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// StocksUseCase serves symbol search, daily series and charts on top of the
// market data provider, with caching, a quota guard and optional archive
// and event fan-out.
type StocksUseCase struct {
	api       domrepo.MarketData
	cache     cache.Service
	limiter   *ratelimit.Limiter
	archive   domrepo.BarArchive
	pub       domrepo.Publisher
	metrics   domrepo.Metrics
	l         *applogger.Logger
	searchTTL time.Duration
	seriesTTL time.Duration
	now       func() time.Time
}

// Option configures StocksUseCase.
type Option func(*StocksUseCase)

func WithCache(c cache.Service, searchTTL, seriesTTL time.Duration) Option {
	return func(uc *StocksUseCase) {
		if c != nil {
			uc.cache = c
		}
		uc.searchTTL = searchTTL
		uc.seriesTTL = seriesTTL
	}
}

func WithLimiter(l *ratelimit.Limiter) Option {
	return func(uc *StocksUseCase) { uc.limiter = l }
}

func WithArchive(a domrepo.BarArchive) Option {
	return func(uc *StocksUseCase) { uc.archive = a }
}

func WithPublisher(p domrepo.Publisher) Option {
	return func(uc *StocksUseCase) { uc.pub = p }
}

func WithMetrics(m domrepo.Metrics) Option {
	return func(uc *StocksUseCase) {
		if m != nil {
			uc.metrics = m
		}
	}
}

func WithLogger(l *applogger.Logger) Option {
	return func(uc *StocksUseCase) {
		if l != nil {
			uc.l = l.With(applogger.String("component", "stocks"))
		}
	}
}

func NewStocksUseCase(api domrepo.MarketData, opts ...Option) *StocksUseCase {
	uc := &StocksUseCase{
		api:       api,
		cache:     cache.NopCache{},
		metrics:   pkgmetrics.Nop{},
		l:         applogger.Nop(),
		searchTTL: time.Hour,
		seriesTTL: 15 * time.Minute,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// ArchiveEnabled reports whether History can be served.
func (uc *StocksUseCase) ArchiveEnabled() bool { return uc.archive != nil }

// Search looks up ticker candidates for free-text keywords.
func (uc *StocksUseCase) Search(ctx context.Context, keywords string) (*models.SymbolMatches, error) {
	start := time.Now()
	defer func() { uc.metrics.RecordLatency("search", time.Since(start).Seconds()) }()

	keywords = strings.TrimSpace(keywords)
	if keywords == "" {
		return nil, fmt.Errorf("%w: keywords required", ErrInvalidInput)
	}

	key := cache.GenerateKeyWithParams(cacheKindSearch, strings.ToLower(keywords))
	var cached models.SymbolMatches
	if uc.lookup(ctx, cacheKindSearch, key, &cached) {
		cached.Keywords = keywords
		return &cached, nil
	}

	if err := uc.reserve(); err != nil {
		return nil, err
	}

	m, err := uc.api.SymbolSearch(ctx, keywords)
	if err != nil {
		uc.metrics.RecordUpstream("SYMBOL_SEARCH", "error")
		uc.metrics.RecordError("upstream")
		uc.l.Error("symbol search failed", applogger.String("keywords", keywords), applogger.Error(err))
		return nil, err
	}
	uc.metrics.RecordUpstream("SYMBOL_SEARCH", "ok")

	uc.store(ctx, key, m, uc.searchTTL)
	return m, nil
}

// Series returns the cleaned daily series for symbol. A SeriesNoData result
// is returned as a value, not an error, and is never cached.
func (uc *StocksUseCase) Series(ctx context.Context, symbol string) (*models.PriceSeries, error) {
	start := time.Now()
	defer func() { uc.metrics.RecordLatency("series", time.Since(start).Seconds()) }()

	symbol = util.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol required", ErrInvalidInput)
	}

	key := cache.GenerateKeyWithParams(cacheKindSeries, symbol)
	var cached models.PriceSeries
	if uc.lookup(ctx, cacheKindSeries, key, &cached) {
		return &cached, nil
	}

	if err := uc.reserve(); err != nil {
		return nil, err
	}

	s, err := uc.api.StockData(ctx, symbol)
	if err != nil {
		uc.metrics.RecordUpstream("TIME_SERIES_DAILY", "error")
		uc.metrics.RecordError("upstream")
		uc.l.Error("stock data failed", applogger.String("symbol", symbol), applogger.Error(err))
		return nil, err
	}

	if s.NoData() {
		uc.metrics.RecordUpstream("TIME_SERIES_DAILY", string(models.SeriesNoData))
		return s, nil
	}
	uc.metrics.RecordUpstream("TIME_SERIES_DAILY", string(models.SeriesOK))

	uc.store(ctx, key, s, uc.seriesTTL)
	if last, ok := s.Last(); ok {
		uc.metrics.RecordLastClose(symbol, last.Close)
	}
	uc.fanOut(ctx, s)
	return s, nil
}

// Chart fetches the series for symbol and builds its candlestick chart.
// The series is returned alongside so callers can surface its notice.
func (uc *StocksUseCase) Chart(ctx context.Context, symbol string) (*models.Chart, *models.PriceSeries, error) {
	s, err := uc.Series(ctx, symbol)
	if err != nil {
		return nil, nil, err
	}
	return uc.api.PlotChart(s), s, nil
}

type HistoryParams struct {
	Symbol string
	From   time.Time
	To     time.Time
	Limit  int
}

// History reads archived bars. It never calls the provider.
func (uc *StocksUseCase) History(ctx context.Context, p HistoryParams) ([]models.PriceBar, error) {
	if uc.archive == nil {
		return nil, ErrArchiveDisabled
	}
	p.Symbol = util.NormalizeSymbol(p.Symbol)
	if p.Symbol == "" {
		return nil, fmt.Errorf("%w: symbol required", ErrInvalidInput)
	}
	if !p.From.IsZero() && !p.To.IsZero() && p.From.After(p.To) {
		return nil, fmt.Errorf("%w: from must be <= to", ErrInvalidInput)
	}
	if p.Limit <= 0 {
		p.Limit = 500
	}
	if p.Limit > 10000 {
		p.Limit = 10000
	}

	start := time.Now()
	bars, err := uc.archive.Query(ctx, p.Symbol, p.From, p.To, p.Limit)
	uc.metrics.RecordLatency("history", time.Since(start).Seconds())
	if err != nil {
		uc.metrics.RecordError("archive")
		return nil, fmt.Errorf("history %s: %w", p.Symbol, err)
	}
	return bars, nil
}

func (uc *StocksUseCase) reserve() error {
	if uc.limiter == nil {
		return nil
	}
	if ok, wait := uc.limiter.Reserve(upstreamKey); !ok {
		uc.metrics.RecordError("rate_limited")
		return &RateLimitError{RetryAfter: wait}
	}
	return nil
}

func (uc *StocksUseCase) lookup(ctx context.Context, kind, key string, dest interface{}) bool {
	err := uc.cache.Get(ctx, key, dest)
	switch {
	case err == nil:
		uc.metrics.RecordCache(kind, "hit")
		return true
	case errors.Is(err, cache.ErrCacheMiss):
		uc.metrics.RecordCache(kind, "miss")
	default:
		uc.metrics.RecordCache(kind, "error")
		uc.l.Warn("cache read failed", applogger.String("key", key), applogger.Error(err))
	}
	return false
}

func (uc *StocksUseCase) store(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if err := uc.cache.Set(ctx, key, value, ttl); err != nil {
		uc.l.Warn("cache write failed", applogger.String("key", key), applogger.Error(err))
	}
}

// fanOut archives and announces a fresh series. Failures are logged only.
func (uc *StocksUseCase) fanOut(ctx context.Context, s *models.PriceSeries) {
	if uc.archive != nil {
		if err := uc.archive.StoreSeries(ctx, s); err != nil {
			uc.metrics.RecordError("archive")
			uc.l.Error("archive series failed", applogger.String("symbol", s.Symbol), applogger.Error(err))
		}
	}
	if uc.pub != nil {
		if err := uc.pub.PublishSeries(ctx, models.NewSeriesFetched(s, uc.now())); err != nil {
			uc.metrics.RecordError("publish")
			uc.l.Error("publish series failed", applogger.String("symbol", s.Symbol), applogger.Error(err))
		}
	}
}
