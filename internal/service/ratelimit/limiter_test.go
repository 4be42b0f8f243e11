package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_BurstThenRefill(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(2, 1)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("AAA"))
	assert.True(t, l.Allow("AAA"))
	assert.False(t, l.Allow("AAA"))
	assert.True(t, l.Allow("BBB"), "keys are independent")

	now = now.Add(500 * time.Millisecond)
	assert.False(t, l.Allow("AAA"))
	now = now.Add(500 * time.Millisecond)
	assert.True(t, l.Allow("AAA"))

	// refill never exceeds capacity
	now = now.Add(time.Hour)
	assert.True(t, l.Allow("AAA"))
	assert.True(t, l.Allow("AAA"))
	assert.False(t, l.Allow("AAA"))
}

func TestLimiter_Disabled(t *testing.T) {
	var nilLimiter *Limiter
	assert.True(t, nilLimiter.Allow("AAA"))

	l := New(0, 0)
	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow("AAA"))
	}
}
