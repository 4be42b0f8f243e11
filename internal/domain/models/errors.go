package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientHistory is returned when a series is too short for the requested computation.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrInvalidWeights is returned for negative, non-finite, unknown or all-zero ensemble weights.
	ErrInvalidWeights = errors.New("invalid weights")
	// ErrInvalidQuery is returned for malformed similarity requests.
	ErrInvalidQuery = errors.New("invalid similarity query")
	// ErrEmptyStore is returned when no outcome-complete similarity records exist.
	ErrEmptyStore = errors.New("similarity store has no usable records")
	// ErrAgentFailure marks a single agent failure. The ensemble recovers it locally.
	ErrAgentFailure = errors.New("agent failure")
	// ErrInvalidSeries is returned for unordered or duplicated bars.
	ErrInvalidSeries = errors.New("invalid price series")
)

// AgentError wraps a failure of one agent.
type AgentError struct {
	AgentID string
	Err     error
}

func (e *AgentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("agent %s: %v", e.AgentID, e.Err)
	}
	return fmt.Sprintf("agent %s failed", e.AgentID)
}

// Unwrap returns the underlying error.
func (e *AgentError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrAgentFailure) match any AgentError.
func (e *AgentError) Is(target error) bool { return target == ErrAgentFailure }

// InsufficientHistoryf builds an ErrInsufficientHistory with detail.
func InsufficientHistoryf(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInsufficientHistory, fmt.Sprintf(format, a...))
}
