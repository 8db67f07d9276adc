package di

import (
	"context"
	"fmt"
	"time"

	"StockDash/internal/domain/repository"
	"StockDash/internal/handler/api"
	internalrepo "StockDash/internal/repository"
	"StockDash/internal/service/alphavantage"
	"StockDash/internal/service/ratelimit"
	"StockDash/internal/usecase"
	"StockDash/pkg/cache"
	pkgch "StockDash/pkg/clickhouse"
	"StockDash/pkg/config"
	xhttp "StockDash/pkg/http"
	pkgkafka "StockDash/pkg/kafka"
	applogger "StockDash/pkg/logger"
	"StockDash/pkg/metrics"
	"StockDash/pkg/server"
)

const userAgent = "StockDash/1.0"

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("service", "stockdash"), applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(cfg *config.Config) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New()
}

// ProvideKafkaProducer creates a Kafka producer. Nil when kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithAutoCreateTopic(true),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideCache creates the response cache for the configured backend.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	switch cfg.Cache.Backend {
	case "none":
		return cache.NopCache{}, nil
	case "memory":
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MaxSize)), nil
	}

	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Cache.Redis.Host, cfg.Cache.Redis.Port),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
		cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	if cfg.Cache.Backend == "layered" {
		return cache.NewLayeredCache(rc,
			cache.WithLayeredMemorySize(cfg.Cache.MaxSize),
			cache.WithLayeredMemoryTTL(cfg.Cache.L1TTL),
		), nil
	}
	return rc, nil
}

// ProvideLimiter creates the provider quota guard.
func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.AlphaVantage.RateLimit.Capacity, cfg.AlphaVantage.RateLimit.RefillPerSec)
}

// ProvideAlphaVantage creates the market data client.
func ProvideAlphaVantage(cfg *config.Config, l *applogger.Logger) (*alphavantage.Client, error) {
	av := cfg.AlphaVantage
	client, err := alphavantage.New(
		alphavantage.Credentials{APIKey: av.APIKey, Host: av.Host, BaseURL: av.BaseURL},
		alphavantage.WithHTTPClient(xhttp.NewClient(
			xhttp.WithTimeout(av.Timeout),
			xhttp.WithHeader("User-Agent", userAgent),
		)),
		alphavantage.WithOutputSize(av.OutputSize),
		alphavantage.WithRetry(alphavantage.RetryPolicy{
			MaxAttempts: av.Retry.MaxAttempts,
			BackoffMin:  av.Retry.BackoffMin,
			BackoffMax:  av.Retry.BackoffMax,
		}),
		alphavantage.WithLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("alphavantage client: %w", err)
	}
	return client, nil
}

// ProvideBarArchive connects to ClickHouse and prepares the bar table.
// Nil when the archive is disabled.
func ProvideBarArchive(cfg *config.Config, l *applogger.Logger) (repository.BarArchive, error) {
	if !cfg.Archive.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.Archive.Host, cfg.Archive.Port),
		pkgch.WithDatabase(cfg.Archive.Database),
		pkgch.WithCredentials(cfg.Archive.User, cfg.Archive.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.Archive.UseHTTP),
		pkgch.WithAsyncInsert(cfg.Archive.AsyncInsert, true),
		pkgch.WithTimeouts(cfg.Archive.DialTimeout, cfg.Archive.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	archive := internalrepo.NewCHBarArchive(client, cfg.Archive.Table, l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := archive.Init(ctx); err != nil {
		_ = archive.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return archive, nil
}

// ProvideSeriesPublisher creates the Kafka series publisher. Nil when kafka
// is disabled.
func ProvideSeriesPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSeriesPublisher(producer, cfg.Kafka.Topic)
}

// ProvideStocksUseCase creates the stocks use case.
func ProvideStocksUseCase(
	api repository.MarketData,
	c cache.Service,
	limiter *ratelimit.Limiter,
	archive repository.BarArchive,
	pub repository.Publisher,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.StocksUseCase {
	return usecase.NewStocksUseCase(api,
		usecase.WithCache(c, cfg.Cache.SearchTTL, cfg.Cache.SeriesTTL),
		usecase.WithLimiter(limiter),
		usecase.WithArchive(archive),
		usecase.WithPublisher(pub),
		usecase.WithMetrics(m),
		usecase.WithLogger(l),
	)
}

// ProvideStocksHandler creates the dashboard HTTP handler.
func ProvideStocksHandler(l *applogger.Logger, uc *usecase.StocksUseCase, cfg *config.Config) *api.StocksEchoHandler {
	return api.NewStocksEchoHandler(l, uc, cfg.Dashboard.RefreshInterval)
}

// ProvideHTTPServer creates the Echo server with all handlers registered.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h *api.StocksEchoHandler) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer([]xhttp.Handler{h},
		xhttp.WithAddr("", cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(l),
	)
}

// ProvideApp creates the application and registers resources to release on
// shutdown.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	producer *pkgkafka.Producer,
	archive repository.BarArchive,
	c cache.Service,
) *server.App {
	app := server.New(cfg, l, srv)

	if producer != nil {
		if cfg.Logging.Collect.Enabled {
			l.AddCollector(&applogger.CollectionConfig{
				TimeInterval:   cfg.Logging.Collect.TimeInterval,
				CountThreshold: cfg.Logging.Collect.CountThreshold,
				Topic:          cfg.Logging.Collect.Topic,
				Publisher:      producer,
			})
		}
		app.OnShutdown("kafka", producer)
	}
	if archive != nil {
		app.OnShutdown("clickhouse", archive)
	}
	app.OnShutdown("cache", c)

	return app
}
