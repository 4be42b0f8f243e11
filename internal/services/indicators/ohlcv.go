package indicators

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"HackCap/internal/domain/models"
)

// OHLCV holds column views of a bar window. All columns share one length.
type OHLCV struct {
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64
}

// Columns splits bars into OHLCV columns.
func Columns(bars []models.PriceBar) OHLCV {
	o := OHLCV{
		High:   make([]float64, len(bars)),
		Low:    make([]float64, len(bars)),
		Close:  make([]float64, len(bars)),
		Volume: make([]float64, len(bars)),
	}
	for i, b := range bars {
		o.High[i] = b.High
		o.Low[i] = b.Low
		o.Close[i] = b.Close
		o.Volume[i] = b.Volume
	}
	return o
}

// Len is the number of bars.
func (o OHLCV) Len() int { return len(o.Close) }

func (o OHLCV) check(name string, period, need int, volume bool) error {
	if err := requirePeriod(name, period); err != nil {
		return err
	}
	n := len(o.Close)
	if len(o.High) != n || len(o.Low) != n || (volume && len(o.Volume) != n) {
		return fmt.Errorf("%s: column lengths differ", name)
	}
	return requireLen(name, o.Close, need)
}

// rangeFlat reports, per index from period-1, whether the highest high and
// lowest low of the trailing period bars coincide.
func (o OHLCV) rangeFlat(period int) []bool {
	flat := make([]bool, o.Len())
	if period == 1 {
		for i := range flat {
			flat[i] = o.High[i] == o.Low[i]
		}
		return flat
	}
	hi, lo := talib.Max(o.High, period), talib.Min(o.Low, period)
	for i := period - 1; i < len(flat); i++ {
		flat[i] = hi[i] == lo[i]
	}
	return flat
}

// Bands is a moving average with an envelope of k population deviations.
type Bands struct {
	Upper  Series
	Middle Series
	Lower  Series
}

// PercentB locates the close inside the bands at index i: 0 on the lower
// band, 1 on the upper. Collapsed bands report 0.5.
func (b Bands) PercentB(price float64, i int) (float64, bool) {
	up, ok := b.Upper.At(i)
	if !ok {
		return 0, false
	}
	lo, _ := b.Lower.At(i)
	if up == lo {
		return 0.5, true
	}
	return (price - lo) / (up - lo), true
}

// BollingerBands are SMA(period) ± k·stddev(period), defined from period-1.
func BollingerBands(closes []float64, period int, k float64) (Bands, error) {
	if err := requirePeriod("bbands", period); err != nil {
		return Bands{}, err
	}
	if k <= 0 {
		return Bands{}, fmt.Errorf("bbands: deviation multiplier must be positive, got %g", k)
	}
	if err := requireLen("bbands", closes, period); err != nil {
		return Bands{}, err
	}
	start := period - 1
	if period == 1 {
		vals := append([]float64(nil), closes...)
		s := Series{Values: vals}
		return Bands{Upper: s, Middle: s, Lower: s}, nil
	}
	up, mid, lo := talib.BBands(closes, period, k, k, talib.SMA)
	return Bands{
		Upper:  Series{Values: up, Start: start},
		Middle: Series{Values: mid, Start: start},
		Lower:  Series{Values: lo, Start: start},
	}, nil
}

// Stochastic returns fast %K over kPeriod bars, defined from kPeriod-1, and
// %D as its dPeriod SMA, defined from kPeriod+dPeriod-2. A bar range with no
// spread reports the neutral 50.
func Stochastic(o OHLCV, kPeriod, dPeriod int) (k, d Series, err error) {
	if err := requirePeriod("stoch d", dPeriod); err != nil {
		return Series{}, Series{}, err
	}
	if err := o.check("stoch", kPeriod, kPeriod+dPeriod-1, false); err != nil {
		return Series{}, Series{}, err
	}
	fastK, _ := talib.StochF(o.High, o.Low, o.Close, kPeriod, 1, talib.SMA)
	flat := o.rangeFlat(kPeriod)
	for i := kPeriod - 1; i < len(fastK); i++ {
		if flat[i] {
			fastK[i] = 50
		}
	}
	kSeries := Series{Values: fastK, Start: kPeriod - 1}
	if dPeriod == 1 {
		return kSeries, Series{Values: append([]float64(nil), fastK...), Start: kPeriod - 1}, nil
	}
	return kSeries, Series{Values: talib.Sma(fastK, dPeriod), Start: kPeriod + dPeriod - 2}, nil
}

// CCI is the commodity channel index over typical prices, defined from
// period-1. Zero mean deviation reports 0.
func CCI(o OHLCV, period int) (Series, error) {
	if err := o.check("cci", period, period, false); err != nil {
		return Series{}, err
	}
	return Series{Values: talib.Cci(o.High, o.Low, o.Close, period), Start: period - 1}, nil
}

// ATR is Wilder's average true range seeded with the mean of the first
// period true ranges. It needs period+1 bars and is defined from period.
func ATR(o OHLCV, period int) (Series, error) {
	if err := o.check("atr", period, period+1, false); err != nil {
		return Series{}, err
	}
	return Series{Values: talib.Atr(o.High, o.Low, o.Close, period), Start: period}, nil
}

// WilliamsR is in [-100, 0], defined from period-1. A flat range reports -50.
func WilliamsR(o OHLCV, period int) (Series, error) {
	if err := o.check("willr", period, period, false); err != nil {
		return Series{}, err
	}
	vals := talib.WillR(o.High, o.Low, o.Close, period)
	flat := o.rangeFlat(period)
	for i := period - 1; i < len(vals); i++ {
		if flat[i] {
			vals[i] = -50
		}
	}
	return Series{Values: vals, Start: period - 1}, nil
}

// OBV is on-balance volume starting from the first bar's volume.
func OBV(o OHLCV) (Series, error) {
	if err := o.check("obv", 1, 1, true); err != nil {
		return Series{}, err
	}
	return Series{Values: talib.Obv(o.Close, o.Volume)}, nil
}

// ChaikinMoneyFlow is the period sum of money-flow volume over the period
// volume, defined from period-1. Bars without spread contribute nothing and
// a window without volume reports 0.
func ChaikinMoneyFlow(o OHLCV, period int) (Series, error) {
	if err := o.check("cmf", period, period, true); err != nil {
		return Series{}, err
	}
	mfv := make([]float64, o.Len())
	for i := range mfv {
		spread := o.High[i] - o.Low[i]
		if spread == 0 {
			continue
		}
		mfv[i] = ((o.Close[i] - o.Low[i]) - (o.High[i] - o.Close[i])) / spread * o.Volume[i]
	}
	flow, vol := talib.Sum(mfv, period), talib.Sum(o.Volume, period)
	out := make([]float64, o.Len())
	for i := period - 1; i < len(out); i++ {
		if vol[i] != 0 {
			out[i] = flow[i] / vol[i]
		}
	}
	return Series{Values: out, Start: period - 1}, nil
}
