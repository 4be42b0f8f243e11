package models

import "time"

// Direction is the stance of a single agent.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
	DirectionFlat  Direction = "flat"
)

// Sign maps long/short/flat to +1/-1/0.
func (d Direction) Sign() float64 {
	switch d {
	case DirectionLong:
		return 1
	case DirectionShort:
		return -1
	default:
		return 0
	}
}

// Signal is one agent's normalized opinion on a price window.
// Produced fresh per decision call and never mutated.
type Signal struct {
	AgentID    string    `json:"agent_id"`
	Direction  Direction `json:"direction"`
	Confidence float64   `json:"confidence"` // [0,1]
	Rationale  string    `json:"rationale"`
	Failed     bool      `json:"failed,omitempty"`
}

// FlatSignal is the zero-confidence neutral signal.
func FlatSignal(agentID, rationale string) Signal {
	return Signal{AgentID: agentID, Direction: DirectionFlat, Confidence: 0, Rationale: rationale}
}

// Action is the ensemble's trade instruction.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// SimilarityContext summarizes the nearest historical periods used as decision context.
type SimilarityContext struct {
	Available  bool       `json:"available"`
	Neighbors  []Neighbor `json:"neighbors,omitempty"`
	Positive   int        `json:"positive"`
	Negative   int        `json:"negative"`
	MeanReturn float64    `json:"mean_return"`
	Adjustment float64    `json:"adjustment"`
	Summary    string     `json:"summary"`
}

// Decision is the combined output of one decide call.
type Decision struct {
	Ticker     string            `json:"ticker"`
	Action     Action            `json:"action"`
	Confidence float64           `json:"confidence"`
	Score      float64           `json:"score"`
	Signals    []Signal          `json:"signals"`
	Similarity SimilarityContext `json:"similarity"`
	Rationale  string            `json:"rationale"`
	// Indicators holds the latest value of each OHLCV indicator the window supports.
	Indicators map[string]float64 `json:"indicators,omitempty"`
	Timestamp  time.Time          `json:"ts"` // timestamp of the as-of bar
}
