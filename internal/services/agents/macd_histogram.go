package agents

import (
	"fmt"
	"math"

	"HackCap/internal/domain/models"
	domsvc "HackCap/internal/domain/service"
	"HackCap/internal/services/indicators"
	"HackCap/pkg/config"
)

// MACDHistogram trades histogram sign flips on the last bar. Confidence is the
// flip magnitude relative to the histogram's trailing volatility.
type MACDHistogram struct {
	cfg config.MACDConfig
}

func NewMACDHistogram(cfg config.MACDConfig) *MACDHistogram { return &MACDHistogram{cfg: cfg} }

func (a *MACDHistogram) ID() string { return config.AgentMACD }

// Lookback is the histogram warm-up plus the prior bar needed to see a flip.
func (a *MACDHistogram) Lookback() int { return a.cfg.Slow + a.cfg.Signal }

func (a *MACDHistogram) Evaluate(window []models.PriceBar) (models.Signal, error) {
	if len(window) < a.Lookback() {
		return models.Signal{}, models.InsufficientHistoryf("macd histogram needs %d bars, got %d", a.Lookback(), len(window))
	}
	hist, err := indicators.MACDHistogram(models.Closes(window), a.cfg.Fast, a.cfg.Slow, a.cfg.Signal)
	if err != nil {
		return models.Signal{}, err
	}

	n := hist.Len()
	prev, cur := hist.Values[n-2], hist.Values[n-1]
	label := fmt.Sprintf("macd(%d,%d,%d) hist=%.4f", a.cfg.Fast, a.cfg.Slow, a.cfg.Signal, cur)

	tol := zeroTolerance(window[n-1].Close)
	var dir models.Direction
	switch {
	case prev <= tol && cur > tol:
		dir = models.DirectionLong
		label += ": flipped positive"
	case prev >= -tol && cur < -tol:
		dir = models.DirectionShort
		label += ": flipped negative"
	default:
		return models.FlatSignal(a.ID(), label+": no sign flip"), nil
	}

	sigma := indicators.StdDev(hist.Tail(a.cfg.VolWindow))
	conf := 1.0
	if sigma > 0 {
		conf = clip01(math.Abs(cur) / (sigma * a.cfg.VolScale))
	}
	return models.Signal{
		AgentID:    a.ID(),
		Direction:  dir,
		Confidence: conf,
		Rationale:  fmt.Sprintf("%s (%.1f sigma)", label, safeRatio(math.Abs(cur), sigma)),
	}, nil
}

func safeRatio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

var _ domsvc.Agent = (*MACDHistogram)(nil)
