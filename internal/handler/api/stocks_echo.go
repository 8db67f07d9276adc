package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"StockDash/internal/domain/models"
	"StockDash/internal/service/alphavantage"
	"StockDash/internal/service/chart"
	"StockDash/internal/usecase"
	xhttp "StockDash/pkg/http"
	xlogger "StockDash/pkg/logger"
	"StockDash/pkg/util"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// StocksUseCase is what the handler needs from the usecase layer.
type StocksUseCase interface {
	Search(ctx context.Context, keywords string) (*models.SymbolMatches, error)
	Series(ctx context.Context, symbol string) (*models.PriceSeries, error)
	Chart(ctx context.Context, symbol string) (*models.Chart, *models.PriceSeries, error)
	History(ctx context.Context, p usecase.HistoryParams) ([]models.PriceBar, error)
}

// ChartPayload is the chart endpoint body and the websocket frame.
type ChartPayload struct {
	Symbol    string              `json:"symbol"`
	Status    models.SeriesStatus `json:"status"`
	Notice    string              `json:"notice,omitempty"`
	Detail    string              `json:"detail,omitempty"`
	Warning   string              `json:"warning,omitempty"`
	Figure    chart.Figure        `json:"figure"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// StocksEchoHandler serves the dashboard API.
type StocksEchoHandler struct {
	logger   *xlogger.Logger
	uc       StocksUseCase
	refresh  time.Duration
	upgrader websocket.Upgrader
}

func NewStocksEchoHandler(logger *xlogger.Logger, uc StocksUseCase, refresh time.Duration) *StocksEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	if refresh <= 0 {
		refresh = time.Minute
	}
	return &StocksEchoHandler{
		logger:  logger.With(xlogger.String("component", "stocks_api")),
		uc:      uc,
		refresh: refresh,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(_ *http.Request) bool { return true },
		},
	}
}

func (h *StocksEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/symbols", h.SearchSymbols)
	g.GET("/stocks/:symbol", h.StockData)
	g.GET("/stocks/:symbol/chart", h.Chart)
	g.GET("/stocks/:symbol/history", h.History)

	e.GET("/ws/stocks/:symbol", h.Stream)
}

func (h *StocksEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *StocksEchoHandler) SearchSymbols(c echo.Context) error {
	req := &models.SymbolSearchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.uc.Search(c.Request().Context(), req.Keywords)
	if err != nil {
		return h.errorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=300")
	return xhttp.SuccessResponse(c, res)
}

func (h *StocksEchoHandler) StockData(c echo.Context) error {
	req := &models.StockDataRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	s, err := h.uc.Series(c.Request().Context(), req.Symbol)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, s)
}

func (h *StocksEchoHandler) Chart(c echo.Context) error {
	req := &models.StockDataRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	payload, err := h.chartPayload(c.Request().Context(), req.Symbol)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, payload)
}

func (h *StocksEchoHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	bars, err := h.uc.History(c.Request().Context(), usecase.HistoryParams{
		Symbol: req.Symbol,
		From:   util.ParseDateDefault(req.From, time.Time{}),
		To:     util.ParseDateDefault(req.To, time.Time{}),
		Limit:  req.Limit,
	})
	if err != nil {
		return h.errorResponse(c, err)
	}
	return xhttp.ListResponse(c, bars, int64(len(bars)))
}

// Stream pushes a ChartPayload for the symbol on connect and then every
// refresh interval until the client goes away. Errors are sent as
// {"error": ...} frames and do not close the stream, except a rejected
// symbol which closes it with a policy violation.
func (h *StocksEchoHandler) Stream(c echo.Context) error {
	req := &models.StockDataRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	log := h.logger.With(xlogger.String("symbol", req.Symbol))
	log.Debug("chart stream opened")
	defer log.Debug("chart stream closed")

	refresh := time.NewTicker(h.refresh)
	defer refresh.Stop()
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	push := func() bool {
		payload, err := h.chartPayload(ctx, req.Symbol)
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err != nil {
			if errors.Is(err, usecase.ErrInvalidInput) {
				msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error())
				_ = conn.WriteMessage(websocket.CloseMessage, msg)
				return false
			}
			return conn.WriteJSON(map[string]string{"error": err.Error()}) == nil
		}
		return conn.WriteJSON(payload) == nil
	}

	if !push() {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-refresh.C:
			if !push() {
				return nil
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return nil
			}
		}
	}
}

func (h *StocksEchoHandler) chartPayload(ctx context.Context, symbol string) (*ChartPayload, error) {
	ch, s, err := h.uc.Chart(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return &ChartPayload{
		Symbol:    s.Symbol,
		Status:    s.Status,
		Notice:    s.Notice,
		Detail:    s.Detail,
		Warning:   ch.Warning,
		Figure:    chart.ToFigure(ch),
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// errorResponse maps usecase and provider errors onto HTTP statuses.
func (h *StocksEchoHandler) errorResponse(c echo.Context, err error) error {
	var rle *usecase.RateLimitError
	switch {
	case errors.Is(err, usecase.ErrInvalidInput):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithError(err))
	case errors.As(err, &rle):
		if rle.RetryAfter > 0 {
			secs := int(rle.RetryAfter.Round(time.Second) / time.Second)
			if secs < 1 {
				secs = 1
			}
			c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
		}
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError(err.Error()).WithError(err))
	case errors.Is(err, usecase.ErrArchiveDisabled):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()).WithError(err))
	case alphavantage.IsProviderFault(err):
		h.logger.Warn("provider fault", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.BadGatewayError("market data provider error").WithError(err))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("request cancelled").WithError(err))
	default:
		h.logger.Error("stocks handler error", xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
}
