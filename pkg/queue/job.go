package queue

import "context"

// Job handles one message type.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Type is the message type the job consumes.
	Type() string

	// Handle processes one payload. Returning an error schedules a retry
	// unless it wraps ErrPermanent.
	Handle(ctx context.Context, payload []byte) error
}
