//go:build wireinject
// +build wireinject

package di

import (
	"StockDash/internal/domain/repository"
	"StockDash/internal/service/alphavantage"
	"StockDash/pkg/config"
	"StockDash/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideCache,
		ProvideLimiter,
		ProvideAlphaVantage,
		wire.Bind(new(repository.MarketData), new(*alphavantage.Client)),

		// Repositories
		ProvideBarArchive,
		ProvideSeriesPublisher,

		// Use cases and transport
		ProvideStocksUseCase,
		ProvideStocksHandler,
		ProvideHTTPServer,

		ProvideApp,
	)
	return &server.App{}, nil
}
