package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"StockDash/internal/domain/models"
	"StockDash/internal/service/chart"
	"StockDash/internal/service/ratelimit"
	"StockDash/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMarket struct {
	searchCalls int
	seriesCalls int
	matches     *models.SymbolMatches
	series      *models.PriceSeries
	err         error
}

func (f *fakeMarket) SymbolSearch(_ context.Context, company string) (*models.SymbolMatches, error) {
	f.searchCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

func (f *fakeMarket) StockData(_ context.Context, symbol string) (*models.PriceSeries, error) {
	f.seriesCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.series, nil
}

func (f *fakeMarket) PlotChart(s *models.PriceSeries) *models.Chart {
	return chart.PlotChart(s)
}

type fakeArchive struct {
	stored  []*models.PriceSeries
	bars    []models.PriceBar
	limit   int
	failErr error
}

func (a *fakeArchive) StoreSeries(_ context.Context, s *models.PriceSeries) error {
	a.stored = append(a.stored, s)
	return a.failErr
}

func (a *fakeArchive) Query(_ context.Context, _ string, _, _ time.Time, limit int) ([]models.PriceBar, error) {
	a.limit = limit
	return a.bars, a.failErr
}

func (a *fakeArchive) Health(context.Context) error { return nil }
func (a *fakeArchive) Close() error                 { return nil }

type fakePublisher struct {
	events []*models.SeriesFetched
	err    error
}

func (p *fakePublisher) PublishSeries(_ context.Context, evt *models.SeriesFetched) error {
	p.events = append(p.events, evt)
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

type countingMetrics struct {
	upstream map[string]int
	cache    map[string]int
	errors   map[string]int
	close    map[string]float64
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		upstream: map[string]int{},
		cache:    map[string]int{},
		errors:   map[string]int{},
		close:    map[string]float64{},
	}
}

func (m *countingMetrics) RecordUpstream(function, result string) { m.upstream[function+"/"+result]++ }
func (m *countingMetrics) RecordError(kind string)                { m.errors[kind]++ }
func (m *countingMetrics) RecordCache(kind, result string)        { m.cache[kind+"/"+result]++ }
func (m *countingMetrics) RecordLastClose(symbol string, p float64) {
	m.close[symbol] = p
}
func (m *countingMetrics) RecordLatency(string, float64) {}

func ibmSeries() *models.PriceSeries {
	return &models.PriceSeries{
		Symbol: "IBM",
		Status: models.SeriesOK,
		Bars: []models.PriceBar{
			{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 10, High: 12, Low: 9.5, Close: 11, Volume: 1000},
			{Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Open: 11, High: 13, Low: 10, Close: 12.5, Volume: 900},
		},
	}
}

func TestSearchCachesResult(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()
	m := newCountingMetrics()
	api := &fakeMarket{matches: models.NewSymbolMatches("IBM", []models.SymbolMatch{
		{models.SymbolColSymbol: "IBM", models.SymbolColName: "International Business Machines"},
	})}
	uc := NewStocksUseCase(api, WithCache(mem, time.Hour, time.Minute), WithMetrics(m))

	first, err := uc.Search(context.Background(), "IBM")
	require.NoError(t, err)
	second, err := uc.Search(context.Background(), " ibm ")
	require.NoError(t, err)

	assert.Equal(t, 1, api.searchCalls)
	assert.Equal(t, first.Columns, second.Columns)
	assert.Equal(t, "IBM", second.Rows[0].Symbol())
	assert.Equal(t, "IBM", first.Keywords)
	assert.Equal(t, "ibm", second.Keywords)
	assert.Equal(t, 1, m.cache["search/hit"])
	assert.Equal(t, 1, m.cache["search/miss"])
	assert.Equal(t, 1, m.upstream["SYMBOL_SEARCH/ok"])
}

func TestSearchRejectsBlankKeywords(t *testing.T) {
	uc := NewStocksUseCase(&fakeMarket{})
	_, err := uc.Search(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSearchPropagatesUpstreamError(t *testing.T) {
	boom := errors.New("boom")
	m := newCountingMetrics()
	uc := NewStocksUseCase(&fakeMarket{err: boom}, WithMetrics(m))

	_, err := uc.Search(context.Background(), "ibm")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, m.upstream["SYMBOL_SEARCH/error"])
	assert.Equal(t, 1, m.errors["upstream"])
}

func TestSeriesFansOutAndCaches(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()
	m := newCountingMetrics()
	arch := &fakeArchive{}
	pub := &fakePublisher{}
	api := &fakeMarket{series: ibmSeries()}
	uc := NewStocksUseCase(api,
		WithCache(mem, time.Hour, time.Minute),
		WithArchive(arch),
		WithPublisher(pub),
		WithMetrics(m),
	)

	s, err := uc.Series(context.Background(), " ibm")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	assert.Len(t, arch.stored, 1)
	require.Len(t, pub.events, 1)
	assert.Equal(t, "2024-01-03", pub.events[0].Last)
	assert.Equal(t, 12.5, m.close["IBM"])

	cached, err := uc.Series(context.Background(), "IBM")
	require.NoError(t, err)
	assert.Equal(t, 1, api.seriesCalls)
	assert.Len(t, arch.stored, 1)
	require.Equal(t, 2, cached.Len())
	assert.True(t, cached.Bars[0].Date.Equal(s.Bars[0].Date))
	assert.Equal(t, s.Bars[1].Close, cached.Bars[1].Close)
}

func TestSeriesNoDataIsNotCached(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()
	m := newCountingMetrics()
	arch := &fakeArchive{}
	api := &fakeMarket{series: models.NewNoDataSeries("NOPE", "Invalid API call.")}
	uc := NewStocksUseCase(api, WithCache(mem, time.Hour, time.Minute), WithArchive(arch), WithMetrics(m))

	for i := 0; i < 2; i++ {
		s, err := uc.Series(context.Background(), "nope")
		require.NoError(t, err)
		assert.True(t, s.NoData())
		assert.Equal(t, models.NoDataNotice, s.Notice)
	}
	assert.Equal(t, 2, api.seriesCalls)
	assert.Empty(t, arch.stored)
	assert.Equal(t, 2, m.upstream["TIME_SERIES_DAILY/no_data"])
}

func TestSeriesFanOutFailuresAreNotFatal(t *testing.T) {
	m := newCountingMetrics()
	uc := NewStocksUseCase(&fakeMarket{series: ibmSeries()},
		WithArchive(&fakeArchive{failErr: errors.New("clickhouse down")}),
		WithPublisher(&fakePublisher{err: errors.New("kafka down")}),
		WithMetrics(m),
	)

	s, err := uc.Series(context.Background(), "IBM")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 1, m.errors["archive"])
	assert.Equal(t, 1, m.errors["publish"])
}

func TestSeriesRateLimited(t *testing.T) {
	api := &fakeMarket{series: ibmSeries()}
	uc := NewStocksUseCase(api, WithLimiter(ratelimit.New(1, 0.5)))

	_, err := uc.Series(context.Background(), "IBM")
	require.NoError(t, err)

	_, err = uc.Series(context.Background(), "MSFT")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Greater(t, rle.RetryAfter, time.Duration(0))
	assert.Equal(t, 1, api.seriesCalls)
}

func TestChartBuildsCandlestick(t *testing.T) {
	uc := NewStocksUseCase(&fakeMarket{series: ibmSeries()})

	ch, s, err := uc.Chart(context.Background(), "IBM")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	assert.False(t, ch.Empty)
	require.Len(t, ch.Traces, 1)
	assert.Equal(t, []string{"2024-01-02", "2024-01-03"}, ch.Traces[0].X)
}

func TestChartNoData(t *testing.T) {
	uc := NewStocksUseCase(&fakeMarket{series: models.NewNoDataSeries("X", "")})

	ch, s, err := uc.Chart(context.Background(), "X")
	require.NoError(t, err)
	assert.True(t, s.NoData())
	assert.True(t, ch.Empty)
	assert.Equal(t, models.ChartNoDataAlert, ch.Warning)
}

func TestHistory(t *testing.T) {
	uc := NewStocksUseCase(&fakeMarket{})
	_, err := uc.History(context.Background(), HistoryParams{Symbol: "IBM"})
	assert.ErrorIs(t, err, ErrArchiveDisabled)
	assert.False(t, uc.ArchiveEnabled())

	arch := &fakeArchive{bars: ibmSeries().Bars}
	uc = NewStocksUseCase(&fakeMarket{}, WithArchive(arch))

	bars, err := uc.History(context.Background(), HistoryParams{Symbol: "ibm", Limit: 50000})
	require.NoError(t, err)
	assert.Len(t, bars, 2)
	assert.Equal(t, 10000, arch.limit)

	from := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err = uc.History(context.Background(), HistoryParams{Symbol: "IBM", From: from, To: from.AddDate(0, 0, -1)})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
