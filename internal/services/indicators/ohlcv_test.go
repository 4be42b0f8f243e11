package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HackCap/internal/domain/models"
)

// bars builds a window with a fixed high/low spread around each close.
func bars(spread, volume float64, closes ...float64) []models.PriceBar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.PriceBar, len(closes))
	for i, c := range closes {
		out[i] = models.PriceBar{
			Timestamp: start.AddDate(0, 0, i),
			Open:      c, High: c + spread, Low: c - spread, Close: c,
			Volume: volume,
		}
	}
	return out
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestBollingerBands(t *testing.T) {
	b, err := BollingerBands([]float64{1, 2, 3, 4, 5}, 3, 2)
	require.NoError(t, err)

	dev := 0.816496580927726 // population stddev of three consecutive integers
	assert.Equal(t, 2, b.Middle.Start)
	assert.InDeltaSlice(t, []float64{2, 3, 4}, b.Middle.Defined(), 1e-9)
	assert.InDeltaSlice(t, []float64{2 + 2*dev, 3 + 2*dev, 4 + 2*dev}, b.Upper.Defined(), 1e-9)
	assert.InDeltaSlice(t, []float64{2 - 2*dev, 3 - 2*dev, 4 - 2*dev}, b.Lower.Defined(), 1e-9)

	pb, ok := b.PercentB(4, 4)
	require.True(t, ok)
	assert.InDelta(t, 0.5, pb, 1e-9)
	_, ok = b.PercentB(4, 1)
	assert.False(t, ok)

	flat, err := BollingerBands(constant(10, 7), 5, 2)
	require.NoError(t, err)
	pb, ok = flat.PercentB(7, 9)
	require.True(t, ok)
	assert.Equal(t, 0.5, pb)

	_, err = BollingerBands([]float64{1, 2}, 3, 2)
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)
	_, err = BollingerBands([]float64{1, 2, 3}, 3, 0)
	assert.Error(t, err)
}

func TestStochasticAndWilliamsR(t *testing.T) {
	o := Columns(bars(1, 100, ramp(10, 10, 1)...))

	k, d, err := Stochastic(o, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, k.Start)
	assert.Equal(t, 3, d.Start)
	for _, v := range k.All() {
		assert.InDelta(t, 75.0, v, 1e-9)
	}
	for _, v := range d.All() {
		assert.InDelta(t, 75.0, v, 1e-9)
	}

	w, err := WilliamsR(o, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, w.Start)
	for _, v := range w.All() {
		assert.InDelta(t, -25.0, v, 1e-9)
	}

	flat := Columns(bars(0, 100, constant(8, 5)...))
	k, _, err = Stochastic(flat, 3, 2)
	require.NoError(t, err)
	for _, v := range k.All() {
		assert.Equal(t, 50.0, v)
	}
	w, err = WilliamsR(flat, 3)
	require.NoError(t, err)
	for _, v := range w.All() {
		assert.Equal(t, -50.0, v)
	}

	_, _, err = Stochastic(o, 9, 3)
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)
}

func TestCCI(t *testing.T) {
	flat, err := CCI(Columns(bars(1, 0, constant(25, 10)...)), 20)
	require.NoError(t, err)
	assert.Equal(t, 19, flat.Start)
	for _, v := range flat.All() {
		assert.Zero(t, v)
	}

	up, err := CCI(Columns(bars(1, 0, ramp(25, 10, 1)...)), 20)
	require.NoError(t, err)
	last, ok := up.Last()
	require.True(t, ok)
	assert.Greater(t, last, 100.0, "a steady climb ends above the channel")
}

func TestATR(t *testing.T) {
	o := Columns(bars(1, 0, constant(20, 10)...))
	s, err := ATR(o, 14)
	require.NoError(t, err)
	assert.Equal(t, 14, s.Start)
	for _, v := range s.All() {
		assert.InDelta(t, 2.0, v, 1e-9)
	}

	_, err = ATR(Columns(bars(1, 0, constant(14, 10)...)), 14)
	assert.ErrorIs(t, err, models.ErrInsufficientHistory, "needs period+1 bars")
}

func TestOBV(t *testing.T) {
	o := OHLCV{
		High:   []float64{1, 2, 2, 1},
		Low:    []float64{1, 2, 2, 1},
		Close:  []float64{1, 2, 2, 1},
		Volume: []float64{10, 20, 30, 40},
	}
	s, err := OBV(o)
	require.NoError(t, err)
	assert.Zero(t, s.Start)
	assert.Equal(t, []float64{10, 30, 30, -10}, s.Values)

	o.Volume = o.Volume[:2]
	_, err = OBV(o)
	assert.ErrorContains(t, err, "column lengths differ")
}

func TestChaikinMoneyFlow(t *testing.T) {
	mk := func(closeAt func(h, l float64) float64, volume float64) OHLCV {
		o := Columns(bars(1, volume, constant(5, 10)...))
		for i := range o.Close {
			o.Close[i] = closeAt(o.High[i], o.Low[i])
		}
		return o
	}

	s, err := ChaikinMoneyFlow(mk(func(h, _ float64) float64 { return h }, 50), 3)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Start)
	assert.InDeltaSlice(t, []float64{1, 1, 1}, s.Defined(), 1e-12)

	s, err = ChaikinMoneyFlow(mk(func(_, l float64) float64 { return l }, 50), 3)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-1, -1, -1}, s.Defined(), 1e-12)

	s, err = ChaikinMoneyFlow(mk(func(h, _ float64) float64 { return h }, 0), 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, s.Defined(), "no volume")

	s, err = ChaikinMoneyFlow(Columns(bars(0, 50, constant(5, 10)...)), 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, s.Defined(), "no spread")
}

func TestLatest(t *testing.T) {
	assert.Nil(t, Latest(nil))

	long := Latest(bars(1, 100, ramp(40, 50, 0.5)...))
	for _, name := range []string{
		"bb_upper", "bb_middle", "bb_lower", "bb_percent_b",
		"stoch_k", "stoch_d", "cci", "atr", "williams_r", "obv", "cmf",
	} {
		assert.Contains(t, long, name)
	}
	assert.Greater(t, long["bb_percent_b"], 0.5)
	assert.InDelta(t, 2.0, long["atr"], 1e-9)

	short := Latest(bars(1, 100, 1, 2, 3, 4, 5))
	assert.Equal(t, map[string]float64{"obv": 500}, short)
}
