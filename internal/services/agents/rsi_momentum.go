package agents

import (
	"fmt"
	"math"

	"HackCap/internal/domain/models"
	domsvc "HackCap/internal/domain/service"
	"HackCap/internal/services/indicators"
	"HackCap/pkg/config"
)

// RSIMomentum goes long when RSI crosses up through the oversold level and
// short when it crosses down through the overbought level.
type RSIMomentum struct {
	cfg config.RSIConfig
}

func NewRSIMomentum(cfg config.RSIConfig) *RSIMomentum { return &RSIMomentum{cfg: cfg} }

func (a *RSIMomentum) ID() string { return config.AgentRSI }

func (a *RSIMomentum) Lookback() int { return a.cfg.Period + 1 + a.cfg.Trailing }

func (a *RSIMomentum) Evaluate(window []models.PriceBar) (models.Signal, error) {
	if len(window) < a.Lookback() {
		return models.Signal{}, models.InsufficientHistoryf("rsi momentum needs %d bars, got %d", a.Lookback(), len(window))
	}
	rsi, err := indicators.RSI(models.Closes(window), a.cfg.Period)
	if err != nil {
		return models.Signal{}, err
	}

	n := rsi.Len()
	last := rsi.Values[n-1]
	dir := models.DirectionFlat
	for i := n - 1; i >= n-a.cfg.Trailing; i-- {
		prev, cur := rsi.Values[i-1], rsi.Values[i]
		if prev < a.cfg.Oversold && cur >= a.cfg.Oversold {
			dir = models.DirectionLong
			break
		}
		if prev > a.cfg.Overbought && cur <= a.cfg.Overbought {
			dir = models.DirectionShort
			break
		}
	}

	label := fmt.Sprintf("rsi(%d)=%.1f", a.cfg.Period, last)
	switch dir {
	case models.DirectionLong:
		label += fmt.Sprintf(": crossed up through oversold %.0f", a.cfg.Oversold)
	case models.DirectionShort:
		label += fmt.Sprintf(": crossed down through overbought %.0f", a.cfg.Overbought)
	default:
		return models.FlatSignal(a.ID(), label+": no threshold cross"), nil
	}
	return models.Signal{
		AgentID:    a.ID(),
		Direction:  dir,
		Confidence: clip01(math.Abs(last-50) / 50),
		Rationale:  label,
	}, nil
}

var _ domsvc.Agent = (*RSIMomentum)(nil)
