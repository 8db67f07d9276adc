package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"StockDash/pkg/config"
	xhttp "StockDash/pkg/http"
	applogger "StockDash/pkg/logger"
)

// Closer is an infrastructure resource released on shutdown.
type Closer interface {
	Close() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	httpServer *xhttp.Server
	closers    map[string]Closer
	order      []string
}

// New creates a new App instance.
func New(cfg *config.Config, l *applogger.Logger, httpServer *xhttp.Server) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{
		cfg:        cfg,
		l:          l,
		httpServer: httpServer,
		closers:    make(map[string]Closer),
	}
}

// OnShutdown registers a resource to close after the HTTP server stops.
// Resources close in registration order.
func (a *App) OnShutdown(name string, c Closer) {
	if c == nil {
		return
	}
	if _, ok := a.closers[name]; !ok {
		a.order = append(a.order, name)
	}
	a.closers[name] = c
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts the HTTP server and blocks until ctx is done or the
// listener fails, then shuts down.
func (a *App) RunContext(ctx context.Context) error {
	a.l.Info("starting",
		applogger.String("env", a.cfg.Environment),
		applogger.String("addr", a.httpServer.Addr()),
		applogger.String("cache", a.cfg.Cache.Backend),
		applogger.Bool("archive", a.cfg.Archive.Enabled),
		applogger.Bool("kafka", a.cfg.Kafka.Enabled),
	)

	errCh := a.httpServer.Start()

	var runErr error
	select {
	case <-ctx.Done():
		a.l.Info("shutdown signal received")
	case err, ok := <-errCh:
		if ok && err != nil {
			runErr = err
		}
	}

	if err := a.shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	a.l.Info("shutting down")

	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := a.httpServer.Stop(ctx)
	if err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	// The collector publishes through the producer closed below.
	a.l.RemoveCollector()

	for _, name := range a.order {
		if cerr := a.closers[name].Close(); cerr != nil {
			a.l.Warn("close error", applogger.String("resource", name), applogger.Error(cerr))
		}
	}

	a.l.Info("shutdown complete")
	return err
}
