package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HackCap/pkg/queue"
)

func TestBacktestJob_RunsAndPublishes(t *testing.T) {
	p := newPipeline(t)
	p.source.series = wavySeries("", 120)
	job := NewBacktestJob(p.svc)

	assert.Equal(t, BacktestJobType, job.Type())
	require.NoError(t, job.Handle(context.Background(), []byte(`{"ticker":"AAA","initial_capital":2500}`)))

	require.Len(t, p.pub.reports, 1)
	assert.Equal(t, "AAA", p.pub.reports[0].Ticker)
}

func TestBacktestJob_ErrorClasses(t *testing.T) {
	p := newPipeline(t)
	job := NewBacktestJob(p.svc)
	ctx := context.Background()

	err := job.Handle(ctx, []byte(`{"ticker":`))
	assert.ErrorIs(t, err, queue.ErrPermanent)

	err = job.Handle(ctx, []byte(`{"ticker":"AAA","initial_capital":-5}`))
	assert.ErrorIs(t, err, queue.ErrPermanent)

	p.source.err = errors.New("warehouse offline")
	err = job.Handle(ctx, []byte(`{"ticker":"AAA"}`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, queue.ErrPermanent)

	// a short series ends FAILED, which is final and not retried
	p.source.err = nil
	p.source.series = wavySeries("", 10)
	assert.NoError(t, job.Handle(ctx, []byte(`{"ticker":"AAA"}`)))
	assert.Empty(t, p.pub.reports)
}
