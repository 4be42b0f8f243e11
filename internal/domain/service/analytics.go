package service

import (
	"context"

	"HackCap/internal/domain/models"
)

// Agent turns a price window into one normalized Signal.
// Implementations must be total functions of the window plus their own configuration.
// Lookback is the shortest window Evaluate accepts.
type Agent interface {
	ID() string
	Lookback() int
	Evaluate(window []models.PriceBar) (models.Signal, error)
}

// SimilarityIndex answers k-nearest-neighbor queries over outcome-complete records.
type SimilarityIndex interface {
	Query(ctx context.Context, v models.FeatureVector, k int) ([]models.Neighbor, error)
	Dim() int
}

// TickerScoper narrows an index to the history of one ticker.
type TickerScoper interface {
	ForTicker(ticker string) SimilarityIndex
}

// FeatureExtractor derives the feature vector for the window ending at its last bar.
type FeatureExtractor interface {
	Extract(ticker string, window []models.PriceBar) (models.FeatureVector, error)
	Lookback() int
}

// Decider is the decision path replayed by the backtest engine.
type Decider interface {
	Decide(ctx context.Context, ticker string, window []models.PriceBar, weights models.WeightVector, idx SimilarityIndex) (models.Decision, error)
}
