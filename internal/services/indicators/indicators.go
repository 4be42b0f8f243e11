package indicators

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"HackCap/internal/domain/models"
)

func requireLen(name string, closes []float64, need int) error {
	if len(closes) < need {
		return models.InsufficientHistoryf("%s needs %d closes, got %d", name, need, len(closes))
	}
	return nil
}

func requirePeriod(name string, period int) error {
	if period < 1 {
		return fmt.Errorf("%s: period must be positive, got %d", name, period)
	}
	return nil
}

// SMA is the simple moving average over window closes. Defined from window-1.
func SMA(closes []float64, window int) (Series, error) {
	if err := requirePeriod("sma", window); err != nil {
		return Series{}, err
	}
	if err := requireLen("sma", closes, window); err != nil {
		return Series{}, err
	}
	return Series{Values: talib.Sma(closes, window), Start: window - 1}, nil
}

// EMA is the exponential moving average seeded with the SMA of the first window closes.
func EMA(closes []float64, window int) (Series, error) {
	if err := requirePeriod("ema", window); err != nil {
		return Series{}, err
	}
	if err := requireLen("ema", closes, window); err != nil {
		return Series{}, err
	}
	if window == 1 {
		return Series{Values: append([]float64(nil), closes...)}, nil
	}
	return Series{Values: talib.Ema(closes, window), Start: window - 1}, nil
}

// RSI is Wilder's relative strength index in [0,100]. It needs window+1 closes
// (window price changes) and is defined from index window. Before the first
// price change the index is reported as neutral 50.
func RSI(closes []float64, window int) (Series, error) {
	if window < 2 {
		return Series{}, fmt.Errorf("rsi: period must be at least 2, got %d", window)
	}
	if err := requireLen("rsi", closes, window+1); err != nil {
		return Series{}, err
	}

	values := talib.Rsi(closes, window)
	// talib reports 0 while average gain and loss are both zero; that only
	// happens while every close so far equals the first one.
	flatUntil := 0
	for flatUntil+1 < len(closes) && closes[flatUntil+1] == closes[0] {
		flatUntil++
	}
	for i := window; i <= flatUntil && i < len(values); i++ {
		values[i] = 50
	}
	for i := window; i < len(values); i++ {
		values[i] = clamp(values[i], 0, 100)
	}
	return Series{Values: values, Start: window}, nil
}

// MACD holds the three aligned outputs of talib.Macd.
type MACD struct {
	Line   Series
	Signal Series
	Hist   Series
}

// MACDLines computes EMA(fast) - EMA(slow), its signal EMA and the histogram.
// The line is defined from slow-1. The signal is seeded with the SMA of the
// first signal line values, so signal and histogram are defined from
// slow+signal-2. talib.Macd shares that warm-up index but seeds its signal
// over the zero-filled prefix, which keeps the histogram near the raw line
// for several multiples of signal bars; both agree once that bias decays.
func MACDLines(closes []float64, fast, slow, signal int) (MACD, error) {
	if fast < 1 || slow < 2 || signal < 1 || fast >= slow {
		return MACD{}, fmt.Errorf("macd: invalid spans fast=%d slow=%d signal=%d", fast, slow, signal)
	}
	if err := requireLen("macd", closes, slow+signal-1); err != nil {
		return MACD{}, err
	}

	fastEMA, err := EMA(closes, fast)
	if err != nil {
		return MACD{}, err
	}
	slowEMA, err := EMA(closes, slow)
	if err != nil {
		return MACD{}, err
	}

	lineStart := slow - 1
	line := make([]float64, len(closes))
	for i := lineStart; i < len(closes); i++ {
		line[i] = fastEMA.Values[i] - slowEMA.Values[i]
	}
	sig, err := EMA(line[lineStart:], signal)
	if err != nil {
		return MACD{}, err
	}

	start := lineStart + signal - 1
	signalValues := make([]float64, len(closes))
	hist := make([]float64, len(closes))
	for i := start; i < len(closes); i++ {
		signalValues[i] = sig.Values[i-lineStart]
		hist[i] = line[i] - signalValues[i]
	}
	return MACD{
		Line:   Series{Values: line, Start: lineStart},
		Signal: Series{Values: signalValues, Start: start},
		Hist:   Series{Values: hist, Start: start},
	}, nil
}

// MACDHistogram is the MACD line minus its signal line, defined from slow+signal-2.
func MACDHistogram(closes []float64, fast, slow, signal int) (Series, error) {
	m, err := MACDLines(closes, fast, slow, signal)
	if err != nil {
		return Series{}, err
	}
	return m.Hist, nil
}

// LogReturns returns ln(c[i]/c[i-1]) for i >= 1. Non-positive prices yield 0.
func LogReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			continue
		}
		out[i-1] = math.Log(closes[i] / closes[i-1])
	}
	return out
}

// Mean is the arithmetic mean; zero for an empty slice.
func Mean(values []float64) float64 {
	switch len(values) {
	case 0:
		return 0
	case 1:
		return values[0]
	}
	return talib.Sma(values, len(values))[len(values)-1]
}

// StdDev is the population standard deviation over the whole slice. talib
// floors variances below 1e-14 to zero.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return talib.StdDev(values, len(values), 1)[len(values)-1]
}

// RealizedVolatility is the standard deviation of the last window log returns.
func RealizedVolatility(closes []float64, window int) (float64, error) {
	if err := requirePeriod("volatility", window); err != nil {
		return 0, err
	}
	if err := requireLen("volatility", closes, window+1); err != nil {
		return 0, err
	}
	rets := LogReturns(closes[len(closes)-window-1:])
	return StdDev(rets), nil
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
