package features

import (
	"fmt"
	"math"
	"slices"

	"HackCap/internal/domain/models"
	domsvc "HackCap/internal/domain/service"
	"HackCap/internal/services/indicators"
	"HackCap/pkg/config"
)

// Extractor builds the similarity feature vector for a window:
// one log return per configured lag, realized volatility, and the position
// of the last close inside the window's close range.
type Extractor struct {
	lags      []int
	volWindow int
	horizon   int
	lookback  int
}

// NewExtractor validates the feature layout.
func NewExtractor(cfg config.SimilarityConfig) (*Extractor, error) {
	if len(cfg.Lags) == 0 {
		return nil, fmt.Errorf("features: at least one lag is required")
	}
	maxLag := 0
	for _, l := range cfg.Lags {
		if l <= 0 {
			return nil, fmt.Errorf("features: lag must be positive, got %d", l)
		}
		maxLag = max(maxLag, l)
	}
	if cfg.VolWindow < 2 {
		return nil, fmt.Errorf("features: volatility window must be >= 2, got %d", cfg.VolWindow)
	}
	if cfg.Horizon <= 0 {
		return nil, fmt.Errorf("features: horizon must be positive, got %d", cfg.Horizon)
	}
	return &Extractor{
		lags:      slices.Clone(cfg.Lags),
		volWindow: cfg.VolWindow,
		horizon:   cfg.Horizon,
		lookback:  max(maxLag, cfg.VolWindow) + 1,
	}, nil
}

// Lookback is the number of bars one vector consumes.
func (e *Extractor) Lookback() int { return e.lookback }

// Horizon is the forward window used for outcomes.
func (e *Extractor) Horizon() int { return e.horizon }

// Dim is the vector length.
func (e *Extractor) Dim() int { return len(e.lags) + 2 }

// Extract describes the trailing Lookback bars of window.
func (e *Extractor) Extract(ticker string, window []models.PriceBar) (models.FeatureVector, error) {
	if len(window) < e.lookback {
		return models.FeatureVector{}, models.InsufficientHistoryf("features need %d bars, got %d", e.lookback, len(window))
	}
	closes := models.Closes(window[len(window)-e.lookback:])
	last := closes[len(closes)-1]

	values := make([]float64, 0, e.Dim())
	for _, lag := range e.lags {
		values = append(values, logReturn(closes[len(closes)-1-lag], last))
	}

	vol, err := indicators.RealizedVolatility(closes, e.volWindow)
	if err != nil {
		return models.FeatureVector{}, err
	}
	values = append(values, vol)
	values = append(values, rangePosition(closes))

	return models.FeatureVector{
		Ticker: ticker,
		End:    window[len(window)-1].Timestamp,
		Values: values,
	}, nil
}

// Records derives one record per bar with a full lookback. Records whose
// forward horizon runs past the series end are returned incomplete.
func (e *Extractor) Records(series models.PriceSeries) ([]models.SimilarityRecord, error) {
	n := series.Len()
	if n < e.lookback {
		return nil, models.InsufficientHistoryf("%s: features need %d bars, got %d", series.Ticker, e.lookback, n)
	}
	closes := series.Closes()
	out := make([]models.SimilarityRecord, 0, n-e.lookback+1)
	for i := e.lookback - 1; i < n; i++ {
		vec, err := e.Extract(series.Ticker, series.Window(i-e.lookback+1, i))
		if err != nil {
			return nil, err
		}
		rec := models.SimilarityRecord{Vector: vec}
		if outcome, ok := Outcome(closes, i, e.horizon); ok {
			rec.Outcome, rec.Complete = outcome, true
			rec.ResolvedAt = series.Bars[i+e.horizon].Timestamp
		}
		out = append(out, rec)
	}
	return out, nil
}

// Outcome is the simple forward return close[i+h]/close[i]-1.
// ok is false when the forward bar is not yet known.
func Outcome(closes []float64, i, h int) (float64, bool) {
	if i < 0 || i+h >= len(closes) || closes[i] <= 0 {
		return 0, false
	}
	return closes[i+h]/closes[i] - 1, true
}

func logReturn(from, to float64) float64 {
	if from <= 0 || to <= 0 {
		return 0
	}
	return math.Log(to / from)
}

func rangePosition(closes []float64) float64 {
	lo, hi := slices.Min(closes), slices.Max(closes)
	if hi == lo {
		return 0.5
	}
	return (closes[len(closes)-1] - lo) / (hi - lo)
}

var _ domsvc.FeatureExtractor = (*Extractor)(nil)
