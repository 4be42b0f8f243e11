package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HackCap/internal/domain/models"
	domrepo "HackCap/internal/domain/repository"
	"HackCap/internal/service/ratelimit"
	pkgkafka "HackCap/pkg/kafka"
)

type recordingSink struct {
	mu    sync.Mutex
	calls int
	bars  int
	tf    domrepo.Timeframe
	err   error
}

func (s *recordingSink) StoreBars(_ context.Context, _ string, tf domrepo.Timeframe, bars []models.PriceBar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.calls++
	s.bars += len(bars)
	s.tf = tf
	return nil
}

func barsMessage(t *testing.T, ticker string, bars []models.PriceBar) []byte {
	t.Helper()
	b, err := json.Marshal(BarsMessage{Ticker: ticker, Bars: bars})
	require.NoError(t, err)
	return b
}

func TestBarsHandler_RejectsMalformed(t *testing.T) {
	p := newPipeline(t)
	h := NewBarsHandler("bars", p.svc, p.store)

	err := h.Handle(context.Background(), []byte("{not json"))
	assert.ErrorIs(t, err, pkgkafka.ErrPermanent)

	err = h.Handle(context.Background(), barsMessage(t, "", wavySeries("", 3).Bars))
	assert.ErrorIs(t, err, pkgkafka.ErrPermanent)

	err = h.Handle(context.Background(), barsMessage(t, "AAA", nil))
	assert.ErrorIs(t, err, pkgkafka.ErrPermanent)
	assert.Zero(t, p.pub.decisionCount())
}

func TestBarsHandler_ShortHistoryStillDecides(t *testing.T) {
	p := newPipeline(t)
	h := NewBarsHandler("bars", p.svc, p.store)

	require.NoError(t, h.Handle(context.Background(), barsMessage(t, "AAA", wavySeries("", 5).Bars)))
	assert.Zero(t, p.store.Snapshot().Len())
	require.Equal(t, 1, p.pub.decisionCount())
	assert.Equal(t, models.ActionHold, p.pub.decisions[0].Action)
}

func TestBarsHandler_MergesHistoryAndIngests(t *testing.T) {
	p := newPipeline(t)
	h := NewBarsHandler("bars", p.svc, p.store)
	sink := &recordingSink{}
	h.SetSink(sink, domrepo.TF1h)
	all := wavySeries("", 80).Bars
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, barsMessage(t, "AAA", all[:50])))
	v1 := p.store.Snapshot().Version()
	require.NoError(t, h.Handle(ctx, barsMessage(t, "AAA", all[40:])))

	assert.Len(t, h.history["AAA"], 80)
	snap := p.store.Snapshot()
	assert.Greater(t, snap.Version(), v1)
	// one record per bar with a full feature window
	assert.Equal(t, 80-20, snap.Len())

	require.Equal(t, 2, p.pub.decisionCount())
	assert.Equal(t, all[79].Timestamp, p.pub.decisions[1].Timestamp)

	assert.Equal(t, 2, sink.calls)
	assert.Equal(t, 50+40, sink.bars)
	assert.Equal(t, domrepo.TF1h, sink.tf)
}

func TestBarsHandler_TrimsHistory(t *testing.T) {
	p := newPipeline(t)
	h := NewBarsHandler("bars", p.svc, p.store)
	h.maxHistory = 30

	all := wavySeries("", 45).Bars
	require.NoError(t, h.Handle(context.Background(), barsMessage(t, "AAA", all)))
	require.Len(t, h.history["AAA"], 30)
	assert.Equal(t, all[15].Timestamp, h.history["AAA"][0].Timestamp)
}

func TestBarsHandler_SinkFailureIsRetryable(t *testing.T) {
	p := newPipeline(t)
	h := NewBarsHandler("bars", p.svc, p.store)
	h.SetSink(&recordingSink{err: errors.New("clickhouse down")}, domrepo.TF1d)

	err := h.Handle(context.Background(), barsMessage(t, "AAA", wavySeries("", 40).Bars))
	require.Error(t, err)
	assert.NotErrorIs(t, err, pkgkafka.ErrPermanent)
	assert.Zero(t, p.pub.decisionCount())
	assert.Empty(t, h.history)
}

func TestBarsHandler_ThrottledBatchesStillIngest(t *testing.T) {
	p := newPipeline(t)
	h := NewBarsHandler("bars", p.svc, p.store)
	sink := &recordingSink{}
	h.SetSink(sink, domrepo.TF1d)
	h.SetLimiter(ratelimit.New(1, 0))
	all := wavySeries("", 60).Bars
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, barsMessage(t, "AAA", all[:40])))
	require.NoError(t, h.Handle(ctx, barsMessage(t, "AAA", all[40:])))
	require.NoError(t, h.Handle(ctx, barsMessage(t, "BBB", all)))

	assert.Equal(t, 3, sink.calls)
	assert.Len(t, h.history["AAA"], 60)
	assert.Equal(t, 2*(60-20), p.store.Snapshot().Len())
	require.Equal(t, 2, p.pub.decisionCount())
	assert.Equal(t, "AAA", p.pub.decisions[0].Ticker)
	assert.Equal(t, "BBB", p.pub.decisions[1].Ticker)
}
