package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordDecision("AAPL", "buy")
	r.RecordDecision("AAPL", "buy")
	r.RecordCache("decision", true)
	r.RecordCache("decision", false)
	r.RecordAgentFailure("macd")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.decisions.WithLabelValues("AAPL", "buy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheLookups.WithLabelValues("decision", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheLookups.WithLabelValues("decision", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.agentFailures.WithLabelValues("macd")))
}
