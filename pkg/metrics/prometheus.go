package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	decisions     *prometheus.CounterVec
	agentFailures *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New registers the recorder's collectors on reg (prometheus.DefaultRegisterer when nil).
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hackcap_decisions_total",
				Help: "Decisions emitted by action",
			},
			[]string{"ticker", "action"},
		),
		agentFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hackcap_agent_failures_total",
				Help: "Agent evaluations degraded to flat",
			},
			[]string{"agent"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hackcap_cache_lookups_total",
				Help: "Decision cache lookups by artifact kind and result",
			},
			[]string{"kind", "result"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hackcap_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hackcap_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordDecision counts one emitted decision.
func (r *Recorder) RecordDecision(ticker, action string) {
	r.decisions.WithLabelValues(ticker, action).Inc()
}

// RecordAgentFailure counts an isolated agent failure.
func (r *Recorder) RecordAgentFailure(agentID string) {
	r.agentFailures.WithLabelValues(agentID).Inc()
}

// RecordCache counts a cache hit or miss.
func (r *Recorder) RecordCache(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(kind, result).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards every observation.
type Nop struct{}

func (Nop) RecordDecision(string, string) {}
func (Nop) RecordAgentFailure(string)     {}
func (Nop) RecordCache(string, bool)      {}
func (Nop) RecordError(string)            {}
func (Nop) RecordLatency(string, float64) {}
