package models

import "time"

// RunState is the lifecycle of one backtest run.
type RunState string

const (
	RunInitialized RunState = "INITIALIZED"
	RunRunning     RunState = "RUNNING"
	RunCompleted   RunState = "COMPLETED"
	RunFailed      RunState = "FAILED"
)

// PortfolioSnapshot is the backtest portfolio after a bar.
type PortfolioSnapshot struct {
	Timestamp time.Time `json:"ts"`
	Cash      float64   `json:"cash"`
	Shares    float64   `json:"shares"`
	CostBasis float64   `json:"cost_basis"`
	Equity    float64   `json:"equity"`
}

// TradeRecord is one executed simulated trade. Append-only per run.
type TradeRecord struct {
	Timestamp   time.Time         `json:"ts"`
	Action      Action            `json:"action"`
	Price       float64           `json:"price"`
	Quantity    float64           `json:"quantity"`
	Fee         float64           `json:"fee"`
	RealizedPnL float64           `json:"realized_pnl"`
	Portfolio   PortfolioSnapshot `json:"portfolio"`
}

// DecisionLogEntry records every bar's decision, executed or not.
type DecisionLogEntry struct {
	Timestamp  time.Time `json:"ts"`
	Action     Action    `json:"action"`
	Confidence float64   `json:"confidence"`
	Executed   bool      `json:"executed"`
}

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Timestamp time.Time `json:"ts"`
	Value     float64   `json:"value"`
}

// PerformanceMetrics is derived from the equity curve and ledger.
type PerformanceMetrics struct {
	TotalReturn       float64 `json:"total_return"`
	MaxDrawdown       float64 `json:"max_drawdown"`
	SharpeRatio       float64 `json:"sharpe_ratio"`
	BenchmarkReturn   float64 `json:"benchmark_return"`
	BenchmarkDrawdown float64 `json:"benchmark_drawdown"`
	BenchmarkSharpe   float64 `json:"benchmark_sharpe"`
	ExcessReturn      float64 `json:"excess_return"`
	TotalFees         float64 `json:"total_fees"`
	TradeCount        int     `json:"trade_count"`
}

// BacktestReport is the publishable view of a finished run.
type BacktestReport struct {
	RunID   string             `json:"run_id"`
	Ticker  string             `json:"ticker"`
	State   RunState           `json:"state"`
	Error   string             `json:"error,omitempty"`
	Bars    int                `json:"bars"`
	Metrics PerformanceMetrics `json:"metrics"`
	Trades  []TradeRecord      `json:"trades"`
	Summary string             `json:"summary"`
	AsOf    time.Time          `json:"as_of"`
}
