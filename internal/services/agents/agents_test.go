package agents

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HackCap/internal/domain/models"
	"HackCap/pkg/config"
)

func barsFrom(closes ...float64) []models.PriceBar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.PriceBar, len(closes))
	for i, c := range closes {
		out[i] = models.PriceBar{
			Timestamp: start.AddDate(0, 0, i),
			Open:      c, High: c, Low: c, Close: c,
			Volume: 1000,
		}
	}
	return out
}

func defaults() config.AgentsConfig { return config.Default().Agents }

func TestSMACrossoverNeverShortOnRisingSeries(t *testing.T) {
	a := NewSMACrossover(defaults().SMA)
	shapes := map[string]func(i int) float64{
		"linear":      func(i int) float64 { return 10 + float64(i) },
		"exponential": func(i int) float64 { return 10 * math.Pow(1.01, float64(i)) },
		"concave":     func(i int) float64 { return 10 + math.Log1p(float64(i)) },
	}
	for name, f := range shapes {
		t.Run(name, func(t *testing.T) {
			closes := make([]float64, 120)
			for i := range closes {
				closes[i] = f(i)
			}
			bars := barsFrom(closes...)
			for end := a.Lookback(); end <= len(bars); end++ {
				sig, err := a.Evaluate(bars[:end])
				require.NoError(t, err)
				assert.NotEqual(t, models.DirectionShort, sig.Direction, "window ending %d", end)
			}
		})
	}
}

func TestSMACrossoverDetectsCrosses(t *testing.T) {
	cfg := config.SMAConfig{Enabled: true, Fast: 2, Slow: 4, Trailing: 3, SpreadNorm: 0.02}
	a := NewSMACrossover(cfg)

	up, err := a.Evaluate(barsFrom(10, 9, 8, 7, 6, 7, 8, 9))
	require.NoError(t, err)
	assert.Equal(t, models.DirectionLong, up.Direction)
	assert.InDelta(t, 1.0, up.Confidence, 1e-12)
	assert.Contains(t, up.Rationale, "bullish crossover 1 bar ago")

	down, err := a.Evaluate(barsFrom(6, 7, 8, 9, 10, 9, 8, 7))
	require.NoError(t, err)
	assert.Equal(t, models.DirectionShort, down.Direction)
	assert.Greater(t, down.Confidence, 0.0)
}

func TestFlatSeriesIsFlatForEveryAgent(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 10
	}
	reg, err := NewRegistry(defaults())
	require.NoError(t, err)

	for _, a := range reg.Agents() {
		sig, err := a.Evaluate(barsFrom(closes...))
		require.NoError(t, err, a.ID())
		assert.Equal(t, models.DirectionFlat, sig.Direction, a.ID())
		assert.Zero(t, sig.Confidence, a.ID())
	}
}

func TestAgentsRejectShortWindows(t *testing.T) {
	reg, err := NewRegistry(defaults())
	require.NoError(t, err)
	for _, a := range reg.Agents() {
		_, err := a.Evaluate(barsFrom(1, 2, 3))
		assert.ErrorIs(t, err, models.ErrInsufficientHistory, a.ID())
	}
}

func TestRSIConfidenceWithinUnitInterval(t *testing.T) {
	a := NewRSIMomentum(defaults().RSI)
	rng := rand.New(rand.NewSource(7))
	closes := make([]float64, 400)
	closes[0] = 100
	for i := 1; i < len(closes); i++ {
		closes[i] = math.Max(1, closes[i-1]*(1+rng.NormFloat64()*0.03))
	}
	bars := barsFrom(closes...)

	crossings := 0
	for end := a.Lookback(); end <= len(bars); end++ {
		sig, err := a.Evaluate(bars[:end])
		require.NoError(t, err)
		assert.GreaterOrEqual(t, sig.Confidence, 0.0)
		assert.LessOrEqual(t, sig.Confidence, 1.0)
		if sig.Direction != models.DirectionFlat {
			crossings++
		} else {
			assert.Zero(t, sig.Confidence)
		}
	}
	assert.Positive(t, crossings, "a volatile walk should cross a threshold at least once")
}

func TestRSICrossUpThroughOversold(t *testing.T) {
	closes := make([]float64, 0, 22)
	for i := 0; i < 21; i++ {
		closes = append(closes, 100-float64(i))
	}
	closes = append(closes, closes[len(closes)-1]+10)

	sig, err := NewRSIMomentum(defaults().RSI).Evaluate(barsFrom(closes...))
	require.NoError(t, err)
	assert.Equal(t, models.DirectionLong, sig.Direction)
	assert.InDelta(t, math.Abs(43.47826-50)/50, sig.Confidence, 1e-4)
}

func TestMACDSignalsMatchHistogramSign(t *testing.T) {
	a := NewMACDHistogram(defaults().MACD)
	closes := make([]float64, 0, 120)
	for i := 0; i < 60; i++ {
		closes = append(closes, 200-float64(i))
	}
	for i := 0; i < 60; i++ {
		closes = append(closes, 140+2*float64(i))
	}
	bars := barsFrom(closes...)

	longs := 0
	for end := a.Lookback(); end <= len(bars); end++ {
		sig, err := a.Evaluate(bars[:end])
		require.NoError(t, err)
		assert.GreaterOrEqual(t, sig.Confidence, 0.0)
		assert.LessOrEqual(t, sig.Confidence, 1.0)
		if sig.Direction == models.DirectionLong {
			longs++
			assert.Greater(t, end, 60, "long flip only after the trough")
		}
	}
	assert.Equal(t, 1, longs, "exactly one upward flip on a V-shaped series")
}

func TestRegistry(t *testing.T) {
	cfg := defaults()
	cfg.RSI.Enabled = false
	reg, err := NewRegistry(cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{config.AgentSMA, config.AgentMACD}, reg.IDs())
	assert.True(t, reg.Has(config.AgentMACD))
	assert.False(t, reg.Has(config.AgentRSI))
	assert.Equal(t, cfg.MACD.Slow+cfg.MACD.Signal, reg.Lookback())

	_, err = NewRegistryOf(NewSMACrossover(cfg.SMA), NewSMACrossover(cfg.SMA))
	assert.Error(t, err)
}
