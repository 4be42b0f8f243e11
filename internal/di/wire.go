//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"HackCap/internal/usecase"
	"HackCap/pkg/config"
	"HackCap/pkg/queue"
	"HackCap/pkg/server"
)

var engineSet = wire.NewSet(
	// Infrastructure
	ProvideKafkaProducer,
	ProvideLogger,
	ProvideMetrics,
	ProvidePriceSource,
	ProvideCacheService,
	ProvideDecisionCache,
	ProvidePublisher,

	// Decision pipeline
	ProvideRegistry,
	ProvideExtractor,
	ProvideSimilarityStore,
	ProvideCombiner,
	ProvideBacktestEngine,
	ProvideWeightBook,

	// Use cases
	ProvideDecisionService,
)

// InitializeApp wires the streaming service.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		engineSet,
		ProvideKafkaConsumer,
		ProvideBarsHandler,
		ProvideJobQueue,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeService wires the decision service alone, for batch tools.
func InitializeService(cfg *config.Config) (*usecase.DecisionService, func(), error) {
	wire.Build(engineSet)
	return nil, nil, nil
}

// InitializeQueue wires a producer-side handle on the backtest job queue.
// It is nil when the queue is disabled.
func InitializeQueue(cfg *config.Config) (*queue.RedisQueue, func(), error) {
	wire.Build(ProvideKafkaProducer, ProvideLogger, ProvideJobQueue)
	return nil, nil, nil
}
