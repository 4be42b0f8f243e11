package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	BacktestRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hackcap",
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Backtest runs by final state",
		},
		[]string{"state"},
	)

	BacktestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "hackcap",
			Subsystem: "backtest",
			Name:      "duration_seconds",
			Help:      "Wall time of one backtest run",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		},
	)

	SimilarityRecords = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "hackcap",
			Subsystem: "similarity",
			Name:      "records",
			Help:      "Records in the published similarity snapshot",
		},
		[]string{"status"},
	)

	WeightUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hackcap",
			Subsystem: "ensemble",
			Name:      "weight_updates_total",
			Help:      "Weight vector updates by result",
		},
		[]string{"result"},
	)
)

// Register adds the engine collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(BacktestRuns, BacktestDuration, SimilarityRecords, WeightUpdates)
	})
}

// ObserveSnapshot publishes similarity store sizes.
func ObserveSnapshot(total, complete int) {
	SimilarityRecords.WithLabelValues("complete").Set(float64(complete))
	SimilarityRecords.WithLabelValues("incomplete").Set(float64(total - complete))
}
