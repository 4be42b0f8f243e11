package repository

import "time"

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TF1m, TF5m, TF1h, TF1d:
		return true
	default:
		return false
	}
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TF1d }

// NormalizeTimeframe converts raw string to a valid timeframe (or default).
func NormalizeTimeframe(s string) Timeframe {
	if s == "" {
		return DefaultTimeframe()
	}
	tf := Timeframe(s)
	if IsValidTimeframe(tf) {
		return tf
	}
	return DefaultTimeframe()
}

// Step returns the bar duration for the timeframe.
func (tf Timeframe) Step() time.Duration {
	switch tf {
	case TF1m:
		return time.Minute
	case TF5m:
		return 5 * time.Minute
	case TF1h:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}

// PeriodsPerYear is the annualization constant used for Sharpe ratios.
func (tf Timeframe) PeriodsPerYear() float64 {
	switch tf {
	case TF1m:
		return 252 * 390
	case TF5m:
		return 252 * 78
	case TF1h:
		return 252 * 6.5
	default:
		return 252
	}
}
