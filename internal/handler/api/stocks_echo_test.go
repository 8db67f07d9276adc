package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"StockDash/internal/domain/models"
	"StockDash/internal/service/alphavantage"
	"StockDash/internal/service/chart"
	"StockDash/internal/usecase"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStocks struct {
	matches *models.SymbolMatches
	series  *models.PriceSeries
	bars    []models.PriceBar
	err     error
	history usecase.HistoryParams
	symbols []string
}

func (f *fakeStocks) Search(_ context.Context, keywords string) (*models.SymbolMatches, error) {
	return f.matches, f.err
}

func (f *fakeStocks) Series(_ context.Context, symbol string) (*models.PriceSeries, error) {
	f.symbols = append(f.symbols, symbol)
	return f.series, f.err
}

func (f *fakeStocks) Chart(ctx context.Context, symbol string) (*models.Chart, *models.PriceSeries, error) {
	s, err := f.Series(ctx, symbol)
	if err != nil {
		return nil, nil, err
	}
	return chart.PlotChart(s), s, nil
}

func (f *fakeStocks) History(_ context.Context, p usecase.HistoryParams) ([]models.PriceBar, error) {
	f.history = p
	return f.bars, f.err
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestEcho(uc StocksUseCase) *echo.Echo {
	e := echo.New()
	NewStocksEchoHandler(nil, uc, 20*time.Millisecond).RegisterRoutes(e)
	return e
}

func do(t *testing.T, e *echo.Echo, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func sampleSeries() *models.PriceSeries {
	return &models.PriceSeries{
		Symbol: "IBM",
		Status: models.SeriesOK,
		Bars: []models.PriceBar{
			{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 10, High: 12, Low: 9.5, Close: 11, Volume: 1000},
		},
	}
}

func TestSearchSymbols(t *testing.T) {
	e := newTestEcho(&fakeStocks{matches: models.NewSymbolMatches("ibm", []models.SymbolMatch{
		{models.SymbolColSymbol: "IBM", models.SymbolColName: "International Business Machines"},
	})})

	rec, env := do(t, e, "/api/symbols?keywords=ibm")
	assert.Equal(t, http.StatusOK, rec.Code)

	var m models.SymbolMatches
	require.NoError(t, json.Unmarshal(env.Data, &m))
	assert.Equal(t, []string{"1. symbol", "2. name"}, m.Columns)
	assert.Equal(t, "IBM", m.Rows[0].Symbol())
}

func TestSearchSymbolsRequiresKeywords(t *testing.T) {
	e := newTestEcho(&fakeStocks{})

	rec, env := do(t, e, "/api/symbols")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, string(env.Data), "ERR_REQUIRED")
}

func TestStockData(t *testing.T) {
	e := newTestEcho(&fakeStocks{series: sampleSeries()})

	rec, env := do(t, e, "/api/stocks/IBM")
	assert.Equal(t, http.StatusOK, rec.Code)

	var s models.PriceSeries
	require.NoError(t, json.Unmarshal(env.Data, &s))
	assert.Equal(t, models.SeriesOK, s.Status)
	require.Len(t, s.Bars, 1)
	assert.Equal(t, 11.0, s.Bars[0].Close)
}

func TestStockDataNoDataIsOK(t *testing.T) {
	e := newTestEcho(&fakeStocks{series: models.NewNoDataSeries("NOPE", "Invalid API call.")})

	rec, env := do(t, e, "/api/stocks/NOPE")
	assert.Equal(t, http.StatusOK, rec.Code)

	var s models.PriceSeries
	require.NoError(t, json.Unmarshal(env.Data, &s))
	assert.Equal(t, models.SeriesNoData, s.Status)
	assert.Equal(t, models.NoDataNotice, s.Notice)
	assert.Empty(t, s.Bars)
}

func TestErrorMapping(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
		code   string
	}{
		"upstream":    {fmt.Errorf("stock data: %w", &alphavantage.UpstreamError{StatusCode: 403}), http.StatusBadGateway, "ERR_UPSTREAM"},
		"malformed":   {alphavantage.ErrMalformedResponse, http.StatusBadGateway, "ERR_UPSTREAM"},
		"unreachable": {alphavantage.ErrUnavailable, http.StatusBadGateway, "ERR_UPSTREAM"},
		"rate":        {&usecase.RateLimitError{RetryAfter: 12 * time.Second}, http.StatusTooManyRequests, "ERR_RATE_LIMITED"},
		"invalid":     {fmt.Errorf("%w: symbol required", usecase.ErrInvalidInput), http.StatusBadRequest, "ERR_BAD_REQUEST"},
		"archive":     {usecase.ErrArchiveDisabled, http.StatusNotFound, "ERR_NOT_FOUND"},
		"unknown":     {fmt.Errorf("boom"), http.StatusInternalServerError, ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			e := newTestEcho(&fakeStocks{err: tc.err})
			rec, env := do(t, e, "/api/stocks/IBM")
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.status, env.Status)
			if tc.code != "" {
				assert.Contains(t, string(env.Data), tc.code)
			}
		})
	}
}

func TestRateLimitSetsRetryAfter(t *testing.T) {
	e := newTestEcho(&fakeStocks{err: &usecase.RateLimitError{RetryAfter: 12 * time.Second}})
	rec, _ := do(t, e, "/api/stocks/IBM")
	assert.Equal(t, "12", rec.Header().Get("Retry-After"))
}

func TestChartEndpoint(t *testing.T) {
	e := newTestEcho(&fakeStocks{series: sampleSeries()})

	rec, env := do(t, e, "/api/stocks/IBM/chart")
	assert.Equal(t, http.StatusOK, rec.Code)

	var p ChartPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "IBM", p.Symbol)
	assert.Empty(t, p.Warning)
	require.Len(t, p.Figure.Data, 1)
	assert.Equal(t, "candlestick", p.Figure.Data[0].Type)
	assert.Equal(t, []string{"2024-01-02"}, p.Figure.Data[0].X)
	assert.Equal(t, models.ChartWidth, p.Figure.Layout.Width)
}

func TestChartEndpointNoData(t *testing.T) {
	e := newTestEcho(&fakeStocks{series: models.NewNoDataSeries("NOPE", "")})

	rec, env := do(t, e, "/api/stocks/NOPE/chart")
	assert.Equal(t, http.StatusOK, rec.Code)

	var p ChartPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, models.SeriesNoData, p.Status)
	assert.Equal(t, models.ChartNoDataAlert, p.Warning)
	assert.Empty(t, p.Figure.Data)
}

func TestHistoryEndpoint(t *testing.T) {
	uc := &fakeStocks{bars: sampleSeries().Bars}
	e := newTestEcho(uc)

	rec, env := do(t, e, "/api/stocks/IBM/history?from=2024-01-01&to=2024-01-31")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"total":1`)
	assert.Equal(t, "IBM", uc.history.Symbol)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), uc.history.From)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), uc.history.To)
	assert.Equal(t, 500, uc.history.Limit)
}

func TestHistoryEndpointRejectsBadDate(t *testing.T) {
	e := newTestEcho(&fakeStocks{})
	rec, env := do(t, e, "/api/stocks/IBM/history?from=01/02/2024")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, string(env.Data), "ERR_DATETIME")
}

func TestHealth(t *testing.T) {
	rec, env := do(t, newTestEcho(&fakeStocks{}), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, string(env.Data))
}

func TestStreamPushesCharts(t *testing.T) {
	uc := &fakeStocks{series: sampleSeries()}
	srv := httptest.NewServer(newTestEcho(uc))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/stocks/IBM"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for i := 0; i < 2; i++ {
		var p ChartPayload
		require.NoError(t, conn.ReadJSON(&p))
		assert.Equal(t, "IBM", p.Symbol)
		require.Len(t, p.Figure.Data, 1)
	}
}

func TestStreamSendsErrorFrames(t *testing.T) {
	uc := &fakeStocks{err: &usecase.RateLimitError{}}
	srv := httptest.NewServer(newTestEcho(uc))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/stocks/IBM"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame map[string]string
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Contains(t, frame["error"], "quota")
}
