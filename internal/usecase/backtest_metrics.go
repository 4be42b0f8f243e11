package usecase

import (
	"math"

	"HackCap/internal/domain/models"
	"HackCap/internal/services/indicators"
)

func computeMetrics(initial float64, equity, bench []models.EquityPoint, trades []models.TradeRecord, periodsPerYear float64) models.PerformanceMetrics {
	m := models.PerformanceMetrics{
		TotalReturn:       totalReturn(initial, equity),
		MaxDrawdown:       maxDrawdown(initial, equity),
		SharpeRatio:       sharpe(initial, equity, periodsPerYear),
		BenchmarkReturn:   totalReturn(initial, bench),
		BenchmarkDrawdown: maxDrawdown(initial, bench),
		BenchmarkSharpe:   sharpe(initial, bench, periodsPerYear),
		TradeCount:        len(trades),
	}
	m.ExcessReturn = m.TotalReturn - m.BenchmarkReturn
	for _, t := range trades {
		m.TotalFees += t.Fee
	}
	return m
}

func totalReturn(initial float64, curve []models.EquityPoint) float64 {
	if len(curve) == 0 || initial <= 0 {
		return 0
	}
	return curve[len(curve)-1].Value/initial - 1
}

// maxDrawdown is the worst peak-to-trough decline as a positive fraction.
// The initial capital is the first peak.
func maxDrawdown(initial float64, curve []models.EquityPoint) float64 {
	peak, worst := initial, 0.0
	for _, p := range curve {
		peak = math.Max(peak, p.Value)
		if peak > 0 {
			worst = math.Max(worst, (peak-p.Value)/peak)
		}
	}
	return worst
}

// sharpe annualizes mean/stdev of per-bar returns, starting from the initial
// capital. A numerically zero stdev yields zero.
func sharpe(initial float64, curve []models.EquityPoint, periodsPerYear float64) float64 {
	if len(curve) == 0 {
		return 0
	}
	rets := make([]float64, 0, len(curve))
	prev := initial
	for _, p := range curve {
		if prev > 0 {
			rets = append(rets, p.Value/prev-1)
		}
		prev = p.Value
	}
	sd := indicators.StdDev(rets)
	if sd < 1e-12 {
		return 0
	}
	return indicators.Mean(rets) / sd * math.Sqrt(periodsPerYear)
}
