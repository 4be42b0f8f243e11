package indicators

import (
	"math"
	"testing"

	"github.com/markcheno/go-talib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HackCap/internal/domain/models"
)

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestSMA(t *testing.T) {
	s, err := SMA([]float64{1, 2, 3, 4, 5}, 3)
	require.NoError(t, err)

	assert.Equal(t, 2, s.Start)
	assert.InDeltaSlice(t, []float64{2, 3, 4}, s.Defined(), 1e-12)

	_, ok := s.At(1)
	assert.False(t, ok, "undefined before warm-up")
	v, ok := s.Last()
	require.True(t, ok)
	assert.InDelta(t, 4.0, v, 1e-12)
}

func TestEMASeededWithSMA(t *testing.T) {
	s, err := EMA([]float64{1, 2, 3, 4, 5}, 3)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 3, 4}, s.Defined(), 1e-12)
}

func TestInsufficientHistory(t *testing.T) {
	tests := []struct {
		name string
		fn   func() error
	}{
		{"sma", func() error { _, err := SMA([]float64{1, 2}, 3); return err }},
		{"rsi needs window+1", func() error { _, err := RSI(ramp(14, 1, 1), 14); return err }},
		{"macd needs slow+signal-1", func() error { _, err := MACDHistogram(ramp(33, 1, 1), 12, 26, 9); return err }},
		{"volatility", func() error { _, err := RealizedVolatility([]float64{1, 2}, 5); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.fn(), models.ErrInsufficientHistory)
		})
	}
}

func TestRSIFlatSeriesIsNeutral(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 10
	}
	s, err := RSI(closes, 14)
	require.NoError(t, err)
	for i, v := range s.All() {
		assert.Equalf(t, 50.0, v, "index %d", i)
	}
}

func TestRSIBounds(t *testing.T) {
	up, err := RSI(ramp(40, 10, 0.5), 14)
	require.NoError(t, err)
	last, _ := up.Last()
	assert.InDelta(t, 100.0, last, 1e-9)

	down, err := RSI(ramp(40, 40, -0.5), 14)
	require.NoError(t, err)
	last, _ = down.Last()
	assert.InDelta(t, 0.0, last, 1e-9)

	zigzag := make([]float64, 60)
	for i := range zigzag {
		zigzag[i] = 100 + 3*math.Sin(float64(i)/2)
	}
	s, err := RSI(zigzag, 14)
	require.NoError(t, err)
	for _, v := range s.All() {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
}

func TestMACDHistogramAlignment(t *testing.T) {
	closes := ramp(50, 100, 1)
	s, err := MACDHistogram(closes, 12, 26, 9)
	require.NoError(t, err)

	assert.Equal(t, 50, s.Len())
	assert.Equal(t, 26+9-2, s.Start)
	count := 0
	for range s.All() {
		count++
	}
	assert.Equal(t, 50-s.Start, count)
}

func TestMACDHistogramFlatIsZero(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 7
	}
	s, err := MACDHistogram(closes, 3, 6, 3)
	require.NoError(t, err)
	for _, v := range s.All() {
		assert.InDelta(t, 0.0, v, 1e-12)
	}
}

func TestMACDSignalSeededFromLine(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + 8*math.Sin(float64(i)/5)
	}
	m, err := MACDLines(closes, 12, 26, 9)
	require.NoError(t, err)

	assert.Equal(t, 25, m.Line.Start)
	assert.Equal(t, 33, m.Signal.Start)
	assert.Equal(t, m.Signal.Start, m.Hist.Start)

	seed := Mean(m.Line.Values[25:34])
	sig, ok := m.Signal.At(33)
	require.True(t, ok)
	assert.InDelta(t, seed, sig, 1e-9)
	for i, h := range m.Hist.All() {
		assert.InDelta(t, m.Line.Values[i]-m.Signal.Values[i], h, 1e-12)
	}

	hist, err := MACDHistogram(closes, 12, 26, 9)
	require.NoError(t, err)
	assert.Equal(t, m.Hist, hist)
}

func TestMACDConvergesToTalibMacd(t *testing.T) {
	closes := make([]float64, 300)
	for i := range closes {
		closes[i] = 100 + 15*math.Sin(float64(i)/9) + 0.1*float64(i)
	}
	m, err := MACDLines(closes, 12, 26, 9)
	require.NoError(t, err)
	line, signal, hist := talib.Macd(closes, 12, 26, 9)

	for i := 200; i < len(closes); i++ {
		assert.InDelta(t, line[i], m.Line.Values[i], 1e-9)
		assert.InDelta(t, signal[i], m.Signal.Values[i], 1e-9)
		assert.InDelta(t, hist[i], m.Hist.Values[i], 1e-9)
	}
}

func TestMACDRejectsBadSpans(t *testing.T) {
	_, err := MACDHistogram(ramp(50, 1, 1), 26, 12, 9)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrInsufficientHistory)
}

func TestStats(t *testing.T) {
	assert.InDelta(t, 2.0, StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-12)
	assert.Equal(t, 0.0, StdDev([]float64{3}))
	assert.InDelta(t, 5.0, Mean([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-12)
	assert.Equal(t, 3.0, Mean([]float64{3}))
	assert.Zero(t, Mean(nil))
	assert.Zero(t, StdDev([]float64{4, 4, 4, 4}))

	rets := LogReturns([]float64{100, 110, 99})
	require.Len(t, rets, 2)
	assert.InDelta(t, math.Log(1.1), rets[0], 1e-12)
	assert.InDelta(t, math.Log(0.9), rets[1], 1e-12)

	vol, err := RealizedVolatility([]float64{1, 1, 1, 1}, 3)
	require.NoError(t, err)
	assert.Equal(t, 0.0, vol)
}

func TestSeriesTail(t *testing.T) {
	s := Series{Values: []float64{0, 0, 1, 2, 3}, Start: 2}
	assert.Equal(t, []float64{2, 3}, s.Tail(2))
	assert.Equal(t, []float64{1, 2, 3}, s.Tail(10))
}
