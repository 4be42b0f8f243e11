package agents

import (
	"fmt"
	"math"

	"HackCap/internal/domain/models"
	domsvc "HackCap/internal/domain/service"
	"HackCap/internal/services/indicators"
	"HackCap/pkg/config"
)

// SMACrossover goes long when the fast SMA crossed above the slow SMA within
// the trailing bars, short on the opposite cross.
type SMACrossover struct {
	cfg config.SMAConfig
}

func NewSMACrossover(cfg config.SMAConfig) *SMACrossover { return &SMACrossover{cfg: cfg} }

func (a *SMACrossover) ID() string { return config.AgentSMA }

// Lookback covers the slow warm-up plus one prior bar for every trailing bar.
func (a *SMACrossover) Lookback() int { return a.cfg.Slow + a.cfg.Trailing }

func (a *SMACrossover) Evaluate(window []models.PriceBar) (models.Signal, error) {
	if len(window) < a.Lookback() {
		return models.Signal{}, models.InsufficientHistoryf("sma crossover needs %d bars, got %d", a.Lookback(), len(window))
	}
	closes := models.Closes(window)
	fast, err := indicators.SMA(closes, a.cfg.Fast)
	if err != nil {
		return models.Signal{}, err
	}
	slow, err := indicators.SMA(closes, a.cfg.Slow)
	if err != nil {
		return models.Signal{}, err
	}

	n := len(closes)
	spread := func(i int) float64 { return fast.Values[i] - slow.Values[i] }

	tol := zeroTolerance(closes[n-1])
	dir := models.DirectionFlat
	barsAgo := 0
	for i := n - 1; i >= n-a.cfg.Trailing; i-- {
		prev, cur := spread(i-1), spread(i)
		if prev <= tol && cur > tol {
			dir, barsAgo = models.DirectionLong, n-1-i
			break
		}
		if prev >= -tol && cur < -tol {
			dir, barsAgo = models.DirectionShort, n-1-i
			break
		}
	}

	label := fmt.Sprintf("sma(%d/%d)", a.cfg.Fast, a.cfg.Slow)
	if dir == models.DirectionFlat {
		return models.FlatSignal(a.ID(), label+": no crossover in last "+plural(a.cfg.Trailing, "bar")), nil
	}

	last := spread(n - 1)
	rel := 0.0
	if s := slow.Values[n-1]; s != 0 {
		rel = last / math.Abs(s)
	}
	conf := clip01(math.Abs(rel) / a.cfg.SpreadNorm)
	kind := "bullish"
	if dir == models.DirectionShort {
		kind = "bearish"
	}
	return models.Signal{
		AgentID:    a.ID(),
		Direction:  dir,
		Confidence: conf,
		Rationale:  fmt.Sprintf("%s: %s crossover %s ago, spread %+.2f%%", label, kind, plural(barsAgo, "bar"), rel*100),
	}, nil
}

var _ domsvc.Agent = (*SMACrossover)(nil)
