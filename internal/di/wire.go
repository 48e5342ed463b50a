//go:build wireinject
// +build wireinject

package di

import (
	"Foresight/pkg/config"
	"Foresight/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Metrics
		ProvideMetrics,

		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvidePostgresClient,
		ProvideClickHouseClient,
		ProvideCache,

		// Repositories (with business logic)
		ProvideForecastStore,
		ProvideSnapshotArchive,
		ProvidePublisher,
		ProvideOracle,

		// Use cases
		ProvideCreator,
		ProvideGrader,
		ProvideAggregator,

		// HTTP
		ProvideHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
