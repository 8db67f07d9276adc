package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"StockDash/internal/domain/models"
	"StockDash/internal/service/chart"
	xhttp "StockDash/pkg/http"
	applogger "StockDash/pkg/logger"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultHost    = "alpha-vantage.p.rapidapi.com"
	DefaultBaseURL = "https://alpha-vantage.p.rapidapi.com/query"

	OutputCompact = "compact"
	OutputFull    = "full"

	functionSymbolSearch = "SYMBOL_SEARCH"
	functionDailySeries  = "TIME_SERIES_DAILY"

	headerKey  = "x-rapidapi-key"
	headerHost = "x-rapidapi-host"
)

// Credentials identify the caller to the provider. With an empty Host the
// client talks to Alpha Vantage directly and sends the key as a query
// parameter instead of RapidAPI headers.
type Credentials struct {
	APIKey  string
	Host    string
	BaseURL string
}

// RetryPolicy controls retries of transport errors and retryable statuses.
// MaxAttempts of 1 disables retrying.
type RetryPolicy struct {
	MaxAttempts int
	BackoffMin  time.Duration
	BackoffMax  time.Duration
}

// Client is the StockAPI: symbol search, daily series and chart construction
// against a single Alpha Vantage endpoint. It holds no mutable state and is
// safe for concurrent use.
type Client struct {
	creds      Credentials
	http       *xhttp.Client
	logger     *applogger.Logger
	outputSize string
	retry      RetryPolicy
}

// Option configures Client.
type Option func(*Client)

// New validates creds and builds a Client. It fails fast with
// ErrMissingAPIKey when no key is configured.
func New(creds Credentials, opts ...Option) (*Client, error) {
	creds.APIKey = strings.TrimSpace(creds.APIKey)
	if creds.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if creds.BaseURL == "" {
		creds.BaseURL = DefaultBaseURL
		if creds.Host == "" {
			creds.Host = DefaultHost
		}
	}
	if _, err := url.Parse(creds.BaseURL); err != nil {
		return nil, fmt.Errorf("alphavantage: base url: %w", err)
	}

	c := &Client{
		creds:      creds,
		logger:     applogger.Nop(),
		outputSize: OutputCompact,
		retry:      RetryPolicy{MaxAttempts: 1},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = xhttp.NewClient()
	}
	return c, nil
}

// SymbolSearch looks up ticker candidates for a free-text company name.
// A body without bestMatches is a fault (ErrMalformedResponse), as are
// transport failures and non-2xx statuses.
func (c *Client) SymbolSearch(ctx context.Context, company string) (*models.SymbolMatches, error) {
	body, err := c.query(ctx, url.Values{
		"function": {functionSymbolSearch},
		"keywords": {company},
		"datatype": {"json"},
	})
	if err != nil {
		return nil, fmt.Errorf("symbol search %q: %w", company, err)
	}

	raw, ok := body[keyBestMatches]
	if !ok {
		if msg := providerMessage(body); msg != "" {
			return nil, fmt.Errorf("symbol search %q: %w: %s missing: %s", company, ErrMalformedResponse, keyBestMatches, msg)
		}
		return nil, fmt.Errorf("symbol search %q: %w: %s missing", company, ErrMalformedResponse, keyBestMatches)
	}

	rows, err := decodeMatches(raw)
	if err != nil {
		return nil, fmt.Errorf("symbol search %q: %w", company, err)
	}

	c.logger.Debug("alphavantage symbol search",
		applogger.String("keywords", company),
		applogger.Int("matches", len(rows)),
	)
	return models.NewSymbolMatches(company, rows), nil
}

// StockData fetches and cleans the daily series for symbol. When the
// provider answers without the daily series (bad symbol, rate limit) the
// result is a SeriesNoData series, not an error.
func (c *Client) StockData(ctx context.Context, symbol string) (*models.PriceSeries, error) {
	body, err := c.query(ctx, url.Values{
		"function":   {functionDailySeries},
		"symbol":     {symbol},
		"outputsize": {c.outputSize},
		"datatype":   {"json"},
	})
	if err != nil {
		return nil, fmt.Errorf("stock data %q: %w", symbol, err)
	}

	raw, ok := body[keyDailySeries]
	if !ok {
		detail := providerMessage(body)
		c.logger.Warn(models.NoDataNotice,
			applogger.String("symbol", symbol),
			applogger.String("provider_message", detail),
		)
		return models.NewNoDataSeries(symbol, detail), nil
	}

	var records map[string]map[string]interface{}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("stock data %q: %w: %s: %v", symbol, ErrMalformedResponse, keyDailySeries, err)
	}

	bars, dropped := CleanDaily(records)
	if dropped > 0 {
		c.logger.Debug("alphavantage dropped records",
			applogger.String("symbol", symbol),
			applogger.Int("dropped", dropped),
			applogger.Int("kept", len(bars)),
		)
	}

	return &models.PriceSeries{
		Symbol: symbol,
		Status: models.SeriesOK,
		Meta:   decodeMeta(body[keyMetaData]),
		Bars:   bars,
	}, nil
}

// PlotChart builds the candlestick chart for s, logging the placeholder
// warning when there is nothing to plot.
func (c *Client) PlotChart(s *models.PriceSeries) *models.Chart {
	ch := chart.PlotChart(s)
	if ch.Empty {
		c.logger.Warn(ch.Warning, applogger.String("symbol", ch.Symbol))
	}
	return ch
}

func (c *Client) headers() map[string]string {
	if c.creds.Host == "" {
		return nil
	}
	return map[string]string{
		headerKey:  c.creds.APIKey,
		headerHost: c.creds.Host,
	}
}

// query performs one GET (plus retries per policy) and returns the
// top-level JSON object.
func (c *Client) query(ctx context.Context, params url.Values) (map[string]json.RawMessage, error) {
	if c.creds.Host == "" {
		params.Set("apikey", c.creds.APIKey)
	}
	opts := &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.creds.BaseURL,
		Headers:     c.headers(),
		QueryParams: params,
	}

	var body map[string]json.RawMessage
	attempt := 0
	op := func() error {
		attempt++
		body = nil
		err := c.http.SendAndParse(ctx, opts, &body)
		if err == nil {
			return nil
		}
		return c.classify(ctx, err, attempt)
	}

	if err := backoff.Retry(op, c.backoff(ctx)); err != nil {
		var ue *UpstreamError
		if errors.As(err, &ue) || errors.Is(err, ErrMalformedResponse) || ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if body == nil {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}
	return body, nil
}

// classify maps a request error onto the retry decision.
func (c *Client) classify(ctx context.Context, err error, attempt int) error {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		ue := &UpstreamError{StatusCode: se.StatusCode, Body: se.Body}
		if se.Temporary() && attempt < c.retry.MaxAttempts {
			c.logger.Warn("alphavantage retrying", applogger.Int("status", se.StatusCode), applogger.Int("attempt", attempt))
			return ue
		}
		return backoff.Permanent(ue)
	}
	if isDecodeError(err) {
		return backoff.Permanent(fmt.Errorf("%w: %v", ErrMalformedResponse, err))
	}
	if ctx.Err() != nil {
		return backoff.Permanent(err)
	}
	if attempt < c.retry.MaxAttempts {
		c.logger.Warn("alphavantage retrying", applogger.Error(err), applogger.Int("attempt", attempt))
	}
	return err
}

func (c *Client) backoff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	if c.retry.BackoffMin > 0 {
		eb.InitialInterval = c.retry.BackoffMin
	}
	if c.retry.BackoffMax > 0 {
		eb.MaxInterval = c.retry.BackoffMax
	}
	eb.MaxElapsedTime = 0

	retries := 0
	if c.retry.MaxAttempts > 1 {
		retries = c.retry.MaxAttempts - 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)
}

func isDecodeError(err error) bool {
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	return errors.As(err, &syn) || errors.As(err, &typ) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

// WithHTTPClient injects the transport client.
func WithHTTPClient(hc *xhttp.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the logger used for provider notices.
func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l.With(applogger.String("component", "alphavantage"))
		}
	}
}

// WithOutputSize selects "compact" (latest 100 days) or "full" history.
func WithOutputSize(size string) Option {
	return func(c *Client) {
		if size == OutputCompact || size == OutputFull {
			c.outputSize = size
		}
	}
}

// WithRetry sets the retry policy.
func WithRetry(p RetryPolicy) Option {
	return func(c *Client) {
		if p.MaxAttempts < 1 {
			p.MaxAttempts = 1
		}
		c.retry = p
	}
}
