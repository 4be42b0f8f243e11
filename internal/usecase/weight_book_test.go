package usecase

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HackCap/internal/domain/models"
)

func TestWeightBook_RejectsInvalidInitial(t *testing.T) {
	p := newPipeline(t)
	_, err := NewWeightBook(p.combiner, map[string]float64{"lstm": 1})
	assert.ErrorIs(t, err, models.ErrInvalidWeights)
	_, err = NewWeightBook(p.combiner, map[string]float64{"sma": 0, "rsi": 0})
	assert.ErrorIs(t, err, models.ErrInvalidWeights)
}

func TestWeightBook_UpdateNormalizesAndNotifies(t *testing.T) {
	p := newPipeline(t)
	book := p.svc.Weights()

	var seen []models.WeightVector
	book.Subscribe(func(w models.WeightVector) { seen = append(seen, w) })

	w, err := book.Update(map[string]float64{"sma": 2, "rsi": 1, "macd": 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, w["sma"], 1e-12)
	assert.InDelta(t, 0.25, w["rsi"], 1e-12)
	assert.InDelta(t, 1.0, book.Current().Sum(), 1e-12)
	require.Len(t, seen, 1)
	assert.Equal(t, w, seen[0])

	// missing agents get zero weight
	w, err = book.Update(map[string]float64{"rsi": 3})
	require.NoError(t, err)
	assert.Equal(t, models.WeightVector{"sma": 0, "rsi": 1, "macd": 0}, w)
}

func TestWeightBook_InvalidUpdateKeepsCurrent(t *testing.T) {
	p := newPipeline(t)
	book := p.svc.Weights()
	before := book.Current()

	for _, raw := range []map[string]float64{
		{"sma": -1, "rsi": 1},
		{"sma": 0, "rsi": 0, "macd": 0},
		{"lstm": 1},
		{},
	} {
		_, err := book.Update(raw)
		assert.ErrorIs(t, err, models.ErrInvalidWeights, "%v", raw)
	}
	assert.Equal(t, before, book.Current())
}

func TestWeightBook_CurrentIsACopy(t *testing.T) {
	p := newPipeline(t)
	book := p.svc.Weights()
	w := book.Current()
	w["sma"] = 42
	assert.NotEqual(t, 42.0, book.Current()["sma"])
}

func TestWeightBook_LoadFile(t *testing.T) {
	p := newPipeline(t)
	book := p.svc.Weights()
	dir := t.TempDir()

	path := filepath.Join(dir, "weights.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sma: 1\nrsi: 3\n"), 0o644))
	w, err := book.LoadFile(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, w["rsi"], 1e-12)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("sma: [1"), 0o644))
	_, err = book.LoadFile(bad)
	assert.Error(t, err)

	_, err = book.LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
	assert.InDelta(t, 0.75, book.Current()["rsi"], 1e-12)
}

func TestWeightBook_WatchReloads(t *testing.T) {
	p := newPipeline(t)
	book := p.svc.Weights()
	path := filepath.Join(t.TempDir(), "weights.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sma: 1\nrsi: 1\nmacd: 1\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- book.Watch(ctx, path) }()

	// rewrite until the watcher is registered and picks the change up
	assert.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("macd: 1\n"), 0o644)
		return book.Current()["macd"] == 1
	}, 3*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
