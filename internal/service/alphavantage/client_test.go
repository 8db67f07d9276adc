package alphavantage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"StockDash/internal/domain/models"
	xhttp "StockDash/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Credentials{APIKey: "test-key", Host: DefaultHost, BaseURL: srv.URL}, opts...)
	require.NoError(t, err)
	return c, srv
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestNewRequiresAPIKey(t *testing.T) {
	for _, key := range []string{"", "   "} {
		c, err := New(Credentials{APIKey: key})
		assert.Nil(t, c)
		assert.ErrorIs(t, err, ErrMissingAPIKey)
	}
}

func TestNewDefaultsToRapidAPI(t *testing.T) {
	c, err := New(Credentials{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.creds.BaseURL)
	assert.Equal(t, DefaultHost, c.creds.Host)
}

func TestSymbolSearchSendsRapidAPIHeaders(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-rapidapi-key"))
		assert.Equal(t, DefaultHost, r.Header.Get("x-rapidapi-host"))
		q := r.URL.Query()
		assert.Equal(t, "SYMBOL_SEARCH", q.Get("function"))
		assert.Equal(t, "International Business", q.Get("keywords"))
		assert.Equal(t, "json", q.Get("datatype"))
		assert.Empty(t, q.Get("apikey"))
		writeJSON(w, http.StatusOK, `{"bestMatches":[]}`)
	})

	m, err := c.SymbolSearch(context.Background(), "International Business")
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.Columns)
}

func TestSymbolSearchSingleMatch(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"bestMatches":[{"1. symbol":"IBM","2. name":"International Business Machines"}]}`)
	})

	m, err := c.SymbolSearch(context.Background(), "IBM")
	require.NoError(t, err)
	require.Equal(t, 1, m.Len())
	assert.Equal(t, []string{"1. symbol", "2. name"}, m.Columns)
	assert.Equal(t, "IBM", m.Rows[0].Symbol())
	assert.Equal(t, "International Business Machines", m.Rows[0].Name())
}

func TestSymbolSearchColumnOrder(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"bestMatches":[
			{"9. matchScore":"0.8","1. symbol":"TSCO.LON","2. name":"Tesco PLC"},
			{"1. symbol":"TSCDF","8. currency":"USD","2. name":"Tesco plc","9. matchScore":0.7}
		]}`)
	})

	m, err := c.SymbolSearch(context.Background(), "tesco")
	require.NoError(t, err)
	assert.Equal(t, []string{"1. symbol", "2. name", "8. currency", "9. matchScore"}, m.Columns)
	assert.Equal(t, "0.7", m.Rows[1][models.SymbolColMatchScore])
	assert.Equal(t, "", m.Rows[0].Currency())
}

func TestSymbolSearchMissingBestMatches(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"Note":"Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`)
	})

	_, err := c.SymbolSearch(context.Background(), "IBM")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Contains(t, err.Error(), "call frequency")
}

func TestSymbolSearchNonJSON(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>gateway</html>"))
	})

	_, err := c.SymbolSearch(context.Background(), "IBM")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestSymbolSearchUpstreamStatus(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, `{"message":"You are not subscribed to this API."}`)
	})

	_, err := c.SymbolSearch(context.Background(), "IBM")
	require.Error(t, err)
	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusForbidden, ue.StatusCode)
	assert.Contains(t, ue.Body, "not subscribed")
	assert.True(t, IsUpstream(err))
}

func TestStockDataDropsInvalidRows(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "TIME_SERIES_DAILY", q.Get("function"))
		assert.Equal(t, "IBM", q.Get("symbol"))
		assert.Equal(t, "compact", q.Get("outputsize"))
		writeJSON(w, http.StatusOK, `{
			"Meta Data": {"1. Information": "Daily Prices", "2. Symbol": "IBM", "3. Last Refreshed": "2024-01-02"},
			"Time Series (Daily)": {
				"2024-01-02": {"1. open":"10","2. high":"12","3. low":"9.5","4. close":"11","5. volume":"1000"},
				"2024-01-01": {"1. open":"abc","2. high":"12","3. low":"9","4. close":"11","5. volume":"1"}
			}
		}`)
	})

	s, err := c.StockData(context.Background(), "IBM")
	require.NoError(t, err)
	assert.Equal(t, models.SeriesOK, s.Status)
	assert.False(t, s.NoData())
	require.Equal(t, 1, s.Len())

	bar := s.Bars[0]
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), bar.Date)
	assert.Equal(t, 10.0, bar.Open)
	assert.Equal(t, 12.0, bar.High)
	assert.Equal(t, 9.5, bar.Low)
	assert.Equal(t, 11.0, bar.Close)
	assert.Equal(t, 1000.0, bar.Volume)

	require.NotNil(t, s.Meta)
	assert.Equal(t, "IBM", s.Meta.Symbol)
	assert.Equal(t, "2024-01-02", s.Meta.LastRefreshed)
}

func TestStockDataMissingSeriesIsNoData(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"Error Message":"Invalid API call."}`)
	})

	s, err := c.StockData(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.True(t, s.NoData())
	assert.True(t, s.Empty())
	assert.Equal(t, models.NoDataNotice, s.Notice)
	assert.Equal(t, "Invalid API call.", s.Detail)
	assert.Equal(t, "NOPE", s.Symbol)
}

func TestStockDataEmptySeriesIsNotNoData(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"Time Series (Daily)":{"2024-01-01":{"1. open":"x"}}}`)
	})

	s, err := c.StockData(context.Background(), "IBM")
	require.NoError(t, err)
	assert.False(t, s.NoData())
	assert.True(t, s.Empty())
}

func TestStockDataSymbolPassedVerbatim(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, " brk.b ", r.URL.Query().Get("symbol"))
		writeJSON(w, http.StatusOK, `{"Time Series (Daily)":{}}`)
	})

	s, err := c.StockData(context.Background(), " brk.b ")
	require.NoError(t, err)
	assert.Equal(t, " brk.b ", s.Symbol)
}

func TestDirectModeSendsAPIKeyParam(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "direct-key", r.URL.Query().Get("apikey"))
		assert.Empty(t, r.Header.Get("x-rapidapi-key"))
		assert.Empty(t, r.Header.Get("x-rapidapi-host"))
		writeJSON(w, http.StatusOK, `{"bestMatches":[]}`)
	}))
	defer srv.Close()

	c, err := New(Credentials{APIKey: "direct-key", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.SymbolSearch(context.Background(), "IBM")
	require.NoError(t, err)
}

func TestOutputSizeOption(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "full", r.URL.Query().Get("outputsize"))
		writeJSON(w, http.StatusOK, `{"Time Series (Daily)":{}}`)
	}, WithOutputSize(OutputFull))

	_, err := c.StockData(context.Background(), "IBM")
	require.NoError(t, err)
}

func TestRetryOnServerError(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			writeJSON(w, http.StatusServiceUnavailable, `{}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"bestMatches":[]}`)
	}, WithRetry(RetryPolicy{MaxAttempts: 3, BackoffMin: time.Millisecond, BackoffMax: 2 * time.Millisecond}))

	_, err := c.SymbolSearch(context.Background(), "IBM")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusUnauthorized, `{}`)
	}, WithRetry(RetryPolicy{MaxAttempts: 3, BackoffMin: time.Millisecond, BackoffMax: 2 * time.Millisecond}))

	_, err := c.SymbolSearch(context.Background(), "IBM")
	assert.True(t, IsUpstream(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestNoRetryOnRateLimitStatus(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusTooManyRequests, `{"message":"You have exceeded the rate limit per minute"}`)
	}, WithRetry(RetryPolicy{MaxAttempts: 3, BackoffMin: time.Millisecond, BackoffMax: 2 * time.Millisecond}))

	_, err := c.StockData(context.Background(), "IBM")
	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusTooManyRequests, ue.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRetryGivesUp(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusBadGateway, `{}`)
	}, WithRetry(RetryPolicy{MaxAttempts: 2, BackoffMin: time.Millisecond, BackoffMax: 2 * time.Millisecond}))

	_, err := c.StockData(context.Background(), "IBM")
	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusBadGateway, ue.StatusCode)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestPlotChartMethod(t *testing.T) {
	c, err := New(Credentials{APIKey: "k"})
	require.NoError(t, err)

	ch := c.PlotChart(models.NewNoDataSeries("IBM", ""))
	assert.True(t, ch.Empty)
	assert.Equal(t, models.ChartNoDataAlert, ch.Warning)
}

type failingTransport struct{ err error }

func (f failingTransport) RoundTrip(*http.Request) (*http.Response, error) { return nil, f.err }

func TestTransportFailureIsUnavailable(t *testing.T) {
	hc := xhttp.NewClient(xhttp.WithTransport(failingTransport{err: errors.New("connection refused")}))
	c, err := New(Credentials{APIKey: "k", Host: DefaultHost, BaseURL: "http://alphavantage.invalid/query"}, WithHTTPClient(hc))
	require.NoError(t, err)

	_, err = c.StockData(context.Background(), "IBM")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.True(t, IsProviderFault(err))
}

func TestClientDefaultHeadersAreSent(t *testing.T) {
	hc := xhttp.NewClient(xhttp.WithHeader("User-Agent", "StockDash/1.0"))
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "StockDash/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "test-key", r.Header.Get("x-rapidapi-key"))
		writeJSON(w, http.StatusOK, `{"bestMatches":[]}`)
	}, WithHTTPClient(hc))

	_, err := c.SymbolSearch(context.Background(), "IBM")
	require.NoError(t, err)
}
