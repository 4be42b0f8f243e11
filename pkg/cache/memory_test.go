package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

func TestMemoryCacheRoundTripStruct(t *testing.T) {
	mc := NewMemoryCache(WithMemoryCleanup(0))
	defer mc.Close()
	ctx := context.Background()

	in := payload{Name: "sma", Values: []float64{1, 2.5}}
	require.NoError(t, mc.Set(ctx, "k", in, time.Minute))

	got, err := GetTyped[payload](ctx, mc, "k")
	require.NoError(t, err)
	assert.Equal(t, in, got)

	// the stored copy is independent of the caller's slice
	got.Values[0] = 99
	again, err := GetTyped[payload](ctx, mc, "k")
	require.NoError(t, err)
	assert.Equal(t, 1.0, again.Values[0])
}

func TestMemoryCacheMissAndExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc := NewMemoryCache(WithMemoryCleanup(0), WithMemoryClock(func() time.Time { return now }))
	defer mc.Close()
	ctx := context.Background()

	var s string
	assert.ErrorIs(t, mc.Get(ctx, "absent", &s), ErrCacheMiss)

	require.NoError(t, mc.Set(ctx, "k", "v", time.Second))
	require.NoError(t, mc.Get(ctx, "k", &s))
	assert.Equal(t, "v", s)

	now = now.Add(2 * time.Second)
	assert.ErrorIs(t, mc.Get(ctx, "k", &s), ErrCacheMiss)
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2), WithMemoryCleanup(0))
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "a", "1", 0))
	require.NoError(t, mc.Set(ctx, "b", "2", 0))

	var s string
	require.NoError(t, mc.Get(ctx, "a", &s)) // a becomes most recent
	require.NoError(t, mc.Set(ctx, "c", "3", 0))

	ok, _ := mc.Exists(ctx, "b")
	assert.False(t, ok)
	ok, _ = mc.Exists(ctx, "a", "c")
	assert.True(t, ok)
	assert.Equal(t, 2, mc.Len())
}

func TestMemoryCacheDeleteByPattern(t *testing.T) {
	mc := NewMemoryCache(WithMemoryCleanup(0))
	defer mc.Close()
	ctx := context.Background()

	for _, k := range []string{"decision:AAPL:1", "decision:AAPL:2", "decision:MSFT:1"} {
		require.NoError(t, mc.Set(ctx, k, "x", 0))
	}
	require.NoError(t, mc.DeleteByPattern(ctx, BuildPattern("decision:AAPL:")))

	ok, _ := mc.Exists(ctx, "decision:AAPL:1", "decision:AAPL:2")
	assert.False(t, ok)
	ok, _ = mc.Exists(ctx, "decision:MSFT:1")
	assert.True(t, ok)
}

func TestNopAlwaysMisses(t *testing.T) {
	var c Service = Nop{}
	require.NoError(t, c.Set(context.Background(), "k", 1, 0))
	var v int
	assert.ErrorIs(t, c.Get(context.Background(), "k", &v), ErrCacheMiss)
}

func TestGenerateKeyWithParams(t *testing.T) {
	assert.Equal(t, "decision:AAPL:1d:42", GenerateKeyWithParams("decision", "AAPL", "1d", 42))
	assert.Len(t, HashKey("abc"), 32)
}
