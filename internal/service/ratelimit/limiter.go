package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter is a keyed token bucket. Every key starts full.
type Limiter struct {
	capacity   float64
	refillRate float64 // tokens per second
	now        func() time.Time

	mu sync.Mutex
	m  map[string]*bucket
}

// New builds a limiter allowing bursts of capacity and refillPerSec steady
// throughput per key. A non-positive capacity disables limiting.
func New(capacity, refillPerSec float64) *Limiter {
	return &Limiter{
		capacity:   capacity,
		refillRate: refillPerSec,
		now:        time.Now,
		m:          make(map[string]*bucket),
	}
}

// Allow reports whether one token could be consumed for key.
func (l *Limiter) Allow(key string) bool {
	if l == nil || l.capacity <= 0 {
		return true
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.m[key] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = min(l.capacity, b.tokens+elapsed*l.refillRate)
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
