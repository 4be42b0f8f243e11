package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HackCap/internal/domain/models"
	"HackCap/pkg/config"
)

func series(ticker string, closes ...float64) models.PriceSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = models.PriceBar{Timestamp: start.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c}
	}
	return models.PriceSeries{Ticker: ticker, Bars: bars}
}

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func TestNewExtractorValidates(t *testing.T) {
	_, err := NewExtractor(config.SimilarityConfig{Lags: nil, VolWindow: 5, Horizon: 1})
	assert.Error(t, err)
	_, err = NewExtractor(config.SimilarityConfig{Lags: []int{0}, VolWindow: 5, Horizon: 1})
	assert.Error(t, err)
	_, err = NewExtractor(config.SimilarityConfig{Lags: []int{1}, VolWindow: 1, Horizon: 1})
	assert.Error(t, err)
	_, err = NewExtractor(config.SimilarityConfig{Lags: []int{1}, VolWindow: 5, Horizon: 0})
	assert.Error(t, err)
}

func TestExtract(t *testing.T) {
	e, err := NewExtractor(config.SimilarityConfig{Lags: []int{1, 2}, VolWindow: 3, Horizon: 1})
	require.NoError(t, err)
	require.Equal(t, 4, e.Lookback())
	require.Equal(t, 4, e.Dim())

	s := series("T", 5, 10, 20, 40, 80)
	v, err := e.Extract("T", s.Bars)
	require.NoError(t, err)
	assert.Equal(t, "T", v.Ticker)
	assert.Equal(t, s.Bars[4].Timestamp, v.End)
	require.Len(t, v.Values, 4)
	assert.InDelta(t, math.Log(2), v.Values[0], 1e-12)
	assert.InDelta(t, math.Log(4), v.Values[1], 1e-12)
	assert.InDelta(t, 0, v.Values[2], 1e-12, "constant log returns have zero volatility")
	assert.Equal(t, 1.0, v.Values[3], "last close is the window high")

	_, err = e.Extract("T", s.Bars[:3])
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)
}

func TestExtractFlatRangeIsCentered(t *testing.T) {
	e, err := NewExtractor(config.SimilarityConfig{Lags: []int{1}, VolWindow: 2, Horizon: 1})
	require.NoError(t, err)
	v, err := e.Extract("T", series("T", 7, 7, 7, 7).Bars)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0.5}, v.Values)
}

func TestRecordsMarksIncompleteTail(t *testing.T) {
	e, err := NewExtractor(config.SimilarityConfig{Lags: []int{1}, VolWindow: 2, Horizon: 2})
	require.NoError(t, err)
	s := series("T", ramp(10, 100, 1)...)

	recs, err := e.Records(s)
	require.NoError(t, err)
	require.Len(t, recs, 10-e.Lookback()+1)

	for i, r := range recs {
		bar := i + e.Lookback() - 1
		assert.Equal(t, s.Bars[bar].Timestamp, r.Vector.End)
		if bar+2 < 10 {
			assert.True(t, r.Complete)
			assert.InDelta(t, s.Bars[bar+2].Close/s.Bars[bar].Close-1, r.Outcome, 1e-12)
			assert.Equal(t, s.Bars[bar+2].Timestamp, r.ResolvedAt)
		} else {
			assert.False(t, r.Complete)
		}
	}

	_, err = e.Records(series("T", 1, 2))
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)
}

func TestOutcome(t *testing.T) {
	closes := []float64{100, 110, 121}
	r, ok := Outcome(closes, 0, 2)
	require.True(t, ok)
	assert.InDelta(t, 0.21, r, 1e-12)
	_, ok = Outcome(closes, 1, 2)
	assert.False(t, ok)
}

func TestSummarize(t *testing.T) {
	// 2024-01-01 is a Monday
	s := series("T", ramp(10, 10, 1)...)

	weekly := Summarize(s, Weekly)
	require.Len(t, weekly, 2)
	assert.Equal(t, "2024-W01", weekly[0].Period)
	assert.Equal(t, 7, weekly[0].Count)
	assert.Equal(t, 10.0, weekly[0].Open)
	assert.Equal(t, 16.0, weekly[0].Close)
	assert.Equal(t, 17.0, weekly[0].High)
	assert.Equal(t, 9.0, weekly[0].Low)
	assert.InDelta(t, 13.0, weekly[0].MeanClose, 1e-12)
	assert.Equal(t, 3, weekly[1].Count)

	daily := Summarize(s, Daily)
	require.Len(t, daily, 10)
	assert.Equal(t, "2024-01-01", daily[0].Period)

	monthly := Summarize(s, Monthly)
	require.Len(t, monthly, 1)
	assert.Equal(t, "2024-01", monthly[0].Period)
	assert.Equal(t, 10, monthly[0].Count)

	assert.Nil(t, Summarize(models.PriceSeries{}, Daily))
}

func TestParseGranularity(t *testing.T) {
	g, err := ParseGranularity(" Weekly ")
	require.NoError(t, err)
	assert.Equal(t, Weekly, g)
	_, err = ParseGranularity("hourly")
	assert.Error(t, err)
}
