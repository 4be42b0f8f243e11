package indicators

import (
	"math"

	"HackCap/internal/domain/models"
)

// Periods used by Latest.
const (
	BandsPeriod     = 20
	BandsDeviations = 2.0
	StochKPeriod    = 14
	StochDPeriod    = 3
	CCIPeriod       = 20
	ATRPeriod       = 14
	WilliamsRPeriod = 14
	MoneyFlowPeriod = 21
)

// Latest returns the last value of every OHLCV indicator the window can
// support, keyed by name. Indicators short of history are left out; nil
// means none fit.
func Latest(bars []models.PriceBar) map[string]float64 {
	if len(bars) == 0 {
		return nil
	}
	o := Columns(bars)
	last := len(bars) - 1
	out := make(map[string]float64, 11)
	put := func(name string, v float64, ok bool) {
		if ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[name] = v
		}
	}
	putLast := func(name string, s Series) {
		v, ok := s.Last()
		put(name, v, ok)
	}

	if b, err := BollingerBands(o.Close, BandsPeriod, BandsDeviations); err == nil {
		putLast("bb_upper", b.Upper)
		putLast("bb_middle", b.Middle)
		putLast("bb_lower", b.Lower)
		pb, ok := b.PercentB(o.Close[last], last)
		put("bb_percent_b", pb, ok)
	}
	if k, d, err := Stochastic(o, StochKPeriod, StochDPeriod); err == nil {
		putLast("stoch_k", k)
		putLast("stoch_d", d)
	}
	if s, err := CCI(o, CCIPeriod); err == nil {
		putLast("cci", s)
	}
	if s, err := ATR(o, ATRPeriod); err == nil {
		putLast("atr", s)
	}
	if s, err := WilliamsR(o, WilliamsRPeriod); err == nil {
		putLast("williams_r", s)
	}
	if s, err := OBV(o); err == nil {
		putLast("obv", s)
	}
	if s, err := ChaikinMoneyFlow(o, MoneyFlowPeriod); err == nil {
		putLast("cmf", s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
