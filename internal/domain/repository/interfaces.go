package repository

import (
	"context"
	"time"

	"HackCap/internal/domain/models"
)

// Timeframe represents bar resolution buckets.
type Timeframe string

const (
	TF1m Timeframe = "1m"
	TF5m Timeframe = "5m"
	TF1h Timeframe = "1h"
	TF1d Timeframe = "1d"
)

// PriceSource is the injected data source collaborator.
// Implementations return bars in ascending timestamp order.
type PriceSource interface {
	GetSeries(ctx context.Context, ticker string, from, to time.Time, tf Timeframe) (models.PriceSeries, error)
}

// BarSink persists bars so later GetSeries calls can serve them.
type BarSink interface {
	StoreBars(ctx context.Context, ticker string, tf Timeframe, bars []models.PriceBar) error
}

// Publisher ships engine outputs to downstream consumers.
type Publisher interface {
	PublishDecision(ctx context.Context, d models.Decision) error
	PublishReport(ctx context.Context, r models.BacktestReport) error
	Close() error
}

// Metrics is the observability sink for engine events. Nil-safe use is the caller's job.
type Metrics interface {
	RecordDecision(ticker, action string)
	RecordAgentFailure(agentID string)
	RecordCache(kind string, hit bool)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
