package models

import (
	"fmt"
	"time"
)

// PriceBar represents an OHLCV record. Immutable once ingested.
type PriceBar struct {
	Timestamp time.Time `json:"ts"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// PriceSeries is an ordered run of bars for one ticker.
// Owned by the caller for the duration of a decision or backtest call.
type PriceSeries struct {
	Ticker string     `json:"ticker"`
	Bars   []PriceBar `json:"bars"`
}

// Len returns the number of bars.
func (s PriceSeries) Len() int { return len(s.Bars) }

// Closes returns closing prices in bar order.
func (s PriceSeries) Closes() []float64 {
	return Closes(s.Bars)
}

// Window returns the bars in [from, to] inclusive, sharing the backing array.
func (s PriceSeries) Window(from, to int) []PriceBar {
	return s.Bars[from : to+1]
}

// Last returns the final bar; ok is false on an empty series.
func (s PriceSeries) Last() (PriceBar, bool) {
	if len(s.Bars) == 0 {
		return PriceBar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Validate checks strict timestamp ordering with no duplicates.
func (s PriceSeries) Validate() error {
	for i := 1; i < len(s.Bars); i++ {
		if !s.Bars[i].Timestamp.After(s.Bars[i-1].Timestamp) {
			return fmt.Errorf("%w: %s bar %d at %s not after %s", ErrInvalidSeries, s.Ticker, i,
				s.Bars[i].Timestamp.Format(time.RFC3339), s.Bars[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// Closes extracts closing prices from bars.
func Closes(bars []PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
