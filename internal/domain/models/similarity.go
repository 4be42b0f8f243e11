package models

import "time"

// FeatureVector is a fixed-length description of the window ending at End.
type FeatureVector struct {
	Ticker string    `json:"ticker"`
	End    time.Time `json:"end"`
	Values []float64 `json:"values"`
}

// Dim returns the vector dimensionality.
func (v FeatureVector) Dim() int { return len(v.Values) }

// SimilarityRecord pairs a vector with the forward return realized after it.
// Complete is false while the forward window is still unknown. ResolvedAt is
// the timestamp of the bar that realized the outcome.
type SimilarityRecord struct {
	Vector     FeatureVector `json:"vector"`
	Outcome    float64       `json:"outcome"`
	Complete   bool          `json:"complete"`
	ResolvedAt time.Time     `json:"resolved_at,omitempty"`
}

// Neighbor is a query hit.
type Neighbor struct {
	Ticker   string    `json:"ticker"`
	End      time.Time `json:"end"`
	Distance float64   `json:"distance"`
	Outcome  float64   `json:"outcome"`
}
