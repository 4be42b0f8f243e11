package logger

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	digests [][]AggregatedLogEntry
}

func (p *capturePublisher) Publish(_ context.Context, topic string, _ []byte, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.digests = append(p.digests, value.([]AggregatedLogEntry))
	return nil
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.digests)
}

func TestLoggerCollectsWarnAndError(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf)
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour})
	defer l.RemoveCollector()

	for i := 0; i < 3; i++ {
		l.Warn("agent degraded to flat", String("agent", "rsi"), Int("attempt", i))
	}
	l.Error("cache get failed", Error(errors.New("timeout")))
	l.Info("decision emitted")

	digest := l.collector.Drain()
	require.Len(t, digest, 2)
	assert.Equal(t, "warn", digest[0].Level)
	assert.Equal(t, 3, digest[0].Count)
	assert.Equal(t, 2, digest[0].Fields["attempt"], "latest fields win")
	assert.Equal(t, "error", digest[1].Level)
	assert.Contains(t, buf.String(), "decision emitted")

	assert.Empty(t, l.collector.Drain())
}

func TestCollectorFlushesAtThreshold(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 2,
		Topic:          "engine.logs",
		Publisher:      pub,
	})
	defer c.Close()

	c.AddLog("warn", "a", nil, "x.go:1")
	c.AddLog("warn", "a", nil, "x.go:1")
	assert.Zero(t, pub.count())

	c.AddLog("error", "b", nil, "x.go:2")
	assert.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 5*time.Millisecond)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, "engine.logs", pub.topic)
	require.Len(t, pub.digests[0], 2)
	assert.Equal(t, 2, pub.digests[0][0].Count)
}

func TestCollectorFlushesOnClose(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, Topic: "t", Publisher: pub})
	c.AddLog("warn", "pending", nil, "x.go:1")
	c.Close()

	assert.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 5*time.Millisecond)
}
