package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldsRender(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf).With(String("service", "engine"))

	l.Info("weights updated",
		String("ticker", "AAA"),
		Int("bars", 35),
		Float64("score", 0.25),
		Duration("took", 1500*time.Millisecond),
		Any("weights", map[string]float64{"sma": 0.5}),
		Error(errors.New("boom")),
	)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "info", got["level"])
	assert.Equal(t, "weights updated", got["message"])
	assert.Equal(t, "engine", got["service"])
	assert.Equal(t, "AAA", got["ticker"])
	assert.Equal(t, 35.0, got["bars"])
	assert.Equal(t, 0.25, got["score"])
	assert.Equal(t, 1500.0, got["took"], "durations render in milliseconds")
	assert.Equal(t, map[string]interface{}{"sma": 0.5}, got["weights"])
	assert.Equal(t, "boom", got["error"])
}

func TestNopDiscards(t *testing.T) {
	l := Nop()
	l.Warn("dropped", String("k", "v"))
	l.Error("dropped", Error(nil))
	assert.NotNil(t, l.With(Int("n", 1)))
}
