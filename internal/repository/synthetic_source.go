package repository

import (
	"context"
	"fmt"
	"math"
	"time"

	"HackCap/internal/domain/models"
	domrepo "HackCap/internal/domain/repository"
	applogger "HackCap/pkg/logger"
)

// SyntheticSource generates a deterministic drifting sine wave per ticker.
// Used for demos, tests and backtests when no warehouse is configured.
type SyntheticSource struct {
	base  float64
	bars  int
	start time.Time
	l     *applogger.Logger
}

// NewSyntheticSource builds a generator anchored at start. bars caps the
// series length when the requested range is open.
func NewSyntheticSource(base float64, bars int, start time.Time) (*SyntheticSource, error) {
	if base <= 0 {
		return nil, fmt.Errorf("synthetic base must be positive, got %g", base)
	}
	if bars <= 0 {
		return nil, fmt.Errorf("synthetic bars must be positive, got %d", bars)
	}
	return &SyntheticSource{base: base, bars: bars, start: start.UTC()}, nil
}

// SetLogger injects a structured logger.
func (s *SyntheticSource) SetLogger(l *applogger.Logger) { s.l = l }

// GetSeries returns the generated bars inside [from, to]. A zero from starts
// at the anchor; a zero to ends after the configured bar count.
func (s *SyntheticSource) GetSeries(ctx context.Context, ticker string, from, to time.Time, tf domrepo.Timeframe) (models.PriceSeries, error) {
	if ticker == "" {
		return models.PriceSeries{}, fmt.Errorf("ticker is required")
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return models.PriceSeries{}, fmt.Errorf("invalid range: %s after %s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	step := tf.Step()
	if to.IsZero() {
		to = s.start.Add(time.Duration(s.bars-1) * step)
	}

	out := make([]models.PriceBar, 0, s.bars)
	open := s.base
	for i := 0; ; i++ {
		if i%1024 == 0 && ctx.Err() != nil {
			return models.PriceSeries{}, ctx.Err()
		}
		ts := s.start.Add(time.Duration(i) * step)
		if ts.After(to) {
			break
		}
		b := s.bar(i, ts, open, tf)
		open = b.Close
		if from.IsZero() || !ts.Before(from) {
			out = append(out, b)
		}
	}
	if s.l != nil {
		s.l.Debug("synthetic get_series ok",
			applogger.String("ticker", ticker),
			applogger.String("tf", string(tf)),
			applogger.Int("rows", len(out)),
		)
	}
	return models.PriceSeries{Ticker: ticker, Bars: out}, nil
}

func (s *SyntheticSource) bar(i int, ts time.Time, open float64, tf domrepo.Timeframe) models.PriceBar {
	drift, period := 0.2, 30
	if tf == domrepo.TF1m {
		drift, period = 0.02, 390
	}
	cycle := 0.5 * math.Sin(2*math.Pi*float64(i%period)/float64(period)) * 0.01
	closePx := math.Max(1, open+drift+0.0001*float64(i)+cycle)
	return models.PriceBar{
		Timestamp: ts,
		Open:      open,
		High:      math.Max(open, closePx) + 0.05,
		Low:       math.Min(open, closePx) - 0.05,
		Close:     closePx,
		Volume:    1000 + float64(i%100)*10,
	}
}

var _ domrepo.PriceSource = (*SyntheticSource)(nil)
