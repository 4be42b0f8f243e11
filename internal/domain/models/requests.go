package models

import "time"

// Requests accepted by the decision use cases. Validated with go-playground/validator
// after creasty/defaults fills the zero values.

type DecideRequest struct {
	Ticker    string    `json:"ticker" validate:"required"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Timeframe string    `json:"tf" default:"1d" validate:"oneof=1m 5m 1h 1d"`
	Lookback  int       `json:"lookback" default:"120" validate:"gte=2,lte=5000"`
	// Weights overrides the current weight book for this call only.
	Weights WeightVector `json:"weights,omitempty"`
}

type BacktestRequest struct {
	Ticker         string       `json:"ticker" validate:"required"`
	From           time.Time    `json:"from"`
	To             time.Time    `json:"to"`
	Timeframe      string       `json:"tf" default:"1d" validate:"oneof=1m 5m 1h 1d"`
	InitialCapital float64      `json:"initial_capital" default:"10000" validate:"gt=0"`
	Weights        WeightVector `json:"weights"`
}
