// Package indicators computes rolling technical indicators over close prices.
// Every function is pure and aligned to its input: value i describes the
// window ending at input bar i, and is undefined before the warm-up index.
package indicators

import "iter"

// Series is an indicator output aligned to its input. Values before Start
// are undefined and hold zero.
type Series struct {
	Values []float64 `json:"values"`
	Start  int       `json:"start"`
}

// Len is the length of the input the series was computed from.
func (s Series) Len() int { return len(s.Values) }

// At reports the value at input index i and whether it is defined.
func (s Series) At(i int) (float64, bool) {
	if i < s.Start || i >= len(s.Values) {
		return 0, false
	}
	return s.Values[i], true
}

// Last returns the value at the final input index.
func (s Series) Last() (float64, bool) {
	return s.At(len(s.Values) - 1)
}

// Defined returns the defined tail. The slice aliases the series.
func (s Series) Defined() []float64 {
	if s.Start >= len(s.Values) {
		return nil
	}
	return s.Values[s.Start:]
}

// All yields (index, value) pairs for defined positions only.
func (s Series) All() iter.Seq2[int, float64] {
	return func(yield func(int, float64) bool) {
		for i := s.Start; i < len(s.Values); i++ {
			if !yield(i, s.Values[i]) {
				return
			}
		}
	}
}

// Tail returns the last n defined values, fewer if not enough exist.
func (s Series) Tail(n int) []float64 {
	def := s.Defined()
	if n >= len(def) {
		return def
	}
	return def[len(def)-n:]
}
