package models

import (
	"fmt"
	"math"
	"sort"
)

// WeightVector maps agent id to a non-negative weight.
// Callers own it; the ensemble only reads a normalized copy.
type WeightVector map[string]float64

// Clone returns an independent copy.
func (w WeightVector) Clone() WeightVector {
	out := make(WeightVector, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Keys returns agent ids in sorted order.
func (w WeightVector) Keys() []string {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Normalize returns a copy whose weights sum to 1.
// Negative, NaN or infinite weights, and an all-zero vector, fail with ErrInvalidWeights.
func (w WeightVector) Normalize() (WeightVector, error) {
	if len(w) == 0 {
		return nil, fmt.Errorf("%w: empty weight vector", ErrInvalidWeights)
	}
	total := 0.0
	// sorted summation keeps the result bit-stable across map iteration orders
	keys := w.Keys()
	for _, k := range keys {
		v := w[k]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %s is not finite", ErrInvalidWeights, k)
		}
		if v < 0 {
			return nil, fmt.Errorf("%w: %s is negative (%g)", ErrInvalidWeights, k, v)
		}
		total += v
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: all weights are zero", ErrInvalidWeights)
	}
	out := make(WeightVector, len(w))
	for _, k := range keys {
		out[k] = w[k] / total
	}
	return out, nil
}

// Sum adds weights in sorted key order.
func (w WeightVector) Sum() float64 {
	total := 0.0
	for _, k := range w.Keys() {
		total += w[k]
	}
	return total
}
