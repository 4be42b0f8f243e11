package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	assert.Equal(t, "synthetic", c.Source.Type)
	assert.Equal(t, "1d", c.Source.Timeframe)
	assert.Equal(t, map[string]float64{"sma": 1, "rsi": 1, "macd": 1}, c.Ensemble.Weights)
	assert.Equal(t, []int{1, 5, 10, 20}, c.Similarity.Lags)
	assert.Equal(t, 35, c.Backtest.Lookback)
	assert.Equal(t, 0.15, c.Ensemble.Threshold)
	assert.Less(t, c.Ensemble.MaxAdjustment, c.Ensemble.Threshold)
	assert.Equal(t, ScopeAll, c.Ensemble.SimilarityScope)
	assert.False(t, c.Queue.Enabled)
	assert.Equal(t, 30*time.Second, c.Queue.RetryDelay)
}

func TestParse_WeightsReplaceDefaults(t *testing.T) {
	c, err := Parse([]byte(`
ensemble:
  weights:
    rsi: 2
`))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"rsi": 2}, c.Ensemble.Weights)

	c, err = Parse([]byte(`environment: test`))
	require.NoError(t, err)
	assert.Len(t, c.Ensemble.Weights, 3)
	assert.Equal(t, "test", c.Environment)
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"bad yaml":             "source: [",
		"unknown source":       "source:\n  type: mongo\n",
		"sma fast>=slow":       "agents:\n  sma:\n    fast: 20\n    slow: 20\n",
		"rsi bands":            "agents:\n  rsi:\n    oversold: 80\n",
		"macd fast>=slow":      "agents:\n  macd:\n    fast: 30\n",
		"all disabled":         "agents:\n  sma: {enabled: false}\n  rsi: {enabled: false}\n  macd: {enabled: false}\n",
		"unknown agent":        "ensemble:\n  weights:\n    lstm: 1\n",
		"negative weight":      "ensemble:\n  weights:\n    sma: -1\n",
		"kafka brokers":        "kafka:\n  enabled: true\n  brokers: []\n",
		"zero lag":             "similarity:\n  lags: [0]\n",
		"nudge over threshold": "ensemble:\n  similarity_weight: 0.5\n  max_adjustment: 0.5\n",
		"nudge at threshold":   "ensemble:\n  threshold: 0.1\n",
		"unknown scope":        "ensemble:\n  similarity_scope: sector\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestParse_StrongestAcceptedNudge(t *testing.T) {
	c, err := Parse([]byte("ensemble:\n  similarity_weight: 1\n  max_adjustment: 0.14\n  similarity_scope: ticker\n"))
	require.NoError(t, err)
	assert.Equal(t, 0.14, c.Ensemble.MaxAdjustment)
	assert.Equal(t, ScopeTicker, c.Ensemble.SimilarityScope)
}

func TestValidateWeights(t *testing.T) {
	assert.NoError(t, ValidateWeights(nil))
	assert.NoError(t, ValidateWeights(map[string]float64{"sma": 0, "macd": 3}))
	assert.Error(t, ValidateWeights(map[string]float64{"vol": 1}))
	assert.Error(t, ValidateWeights(map[string]float64{"rsi": -0.1}))
}

func TestDecisionVersion(t *testing.T) {
	a, b := Default(), Default()
	assert.Equal(t, a.DecisionVersion(), b.DecisionVersion())

	b.Ensemble.Weights = map[string]float64{"sma": 5}
	b.Ensemble.WeightsFile = "weights.yaml"
	b.Similarity.WarmTickers = []string{"X", "Y"}
	b.Queue.Enabled = true
	assert.Equal(t, a.DecisionVersion(), b.DecisionVersion(), "settings outside the decision path")

	b.Agents.RSI.Period = 21
	assert.NotEqual(t, a.DecisionVersion(), b.DecisionVersion())

	c := Default()
	c.Cache.Version = "v2"
	assert.NotEqual(t, a.DecisionVersion(), c.DecisionVersion())
	assert.Contains(t, c.DecisionVersion(), "v2-")
}

func TestLoadWithEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source:\n  type: synthetic\n"), 0o600))

	t.Setenv("SOURCE_TYPE", "postgres")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("QUEUE_ENABLED", "true")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", c.Source.Type)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, 6380, c.Cache.Redis.Port)
	assert.True(t, c.Queue.Enabled)

	t.Setenv("REDIS_PORT", "not-a-port")
	_, err = LoadWithEnv(path)
	assert.Error(t, err)

	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("SOURCE_TYPE", "mongo")
	_, err = LoadWithEnv(path)
	assert.Error(t, err)

	_, err = LoadWithEnv(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_ExampleConfig(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "config", "config.example.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().DecisionVersion(), c.DecisionVersion())
	assert.Equal(t, 8760*time.Hour, c.Similarity.WarmWindow)
	assert.Equal(t, 50*time.Millisecond, c.Cache.Timeout)
}
