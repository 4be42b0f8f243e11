package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrPermanent marks a job error that retrying cannot fix. Such messages go
// straight to the dead-letter list.
var ErrPermanent = errors.New("permanent job error")

// Publisher enqueues work for remote workers.
type Publisher interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error)
}

// Config tunes the worker pool.
type Config struct {
	Workers    int           // concurrent handlers
	RetryLimit int           // attempts after the first before the DLQ
	RetryDelay time.Duration // delay before a failed message is retried
	PollWait   time.Duration // BRPOP block time; bounds shutdown latency
}

// Message is the envelope stored in Redis.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"ts"`
	LastError string          `json:"last_error,omitempty"`
}

// Decode unmarshals a job payload into T.
func Decode[T any](payload []byte) (T, error) {
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, fmt.Errorf("%w: decode payload: %v", ErrPermanent, err)
	}
	return out, nil
}
