package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"HackCap/internal/domain/models"
	"HackCap/internal/domain/repository"
	domsvc "HackCap/internal/domain/service"
	"HackCap/internal/service/cache"
	svcmetrics "HackCap/internal/service/metrics"
	"HackCap/internal/services/features"
	"HackCap/internal/services/similarity"
	"HackCap/pkg/config"
	"HackCap/pkg/logger"
	"HackCap/pkg/metrics"
)

// WindowDecider is a Decider that knows the window it needs.
type WindowDecider interface {
	domsvc.Decider
	Lookback() int
}

// BacktestParams describes one run. Index may be nil to replay without
// similarity context; when set, each bar only sees outcomes resolved by then.
type BacktestParams struct {
	Series         models.PriceSeries
	Weights        models.WeightVector
	Index          *similarity.Snapshot
	InitialCapital float64
	Timeframe      repository.Timeframe
}

// Progress is reported while a run walks its bars.
type Progress struct {
	RunID   string
	Ticker  string
	Done    int
	Total   int
	Message string
}

// RunResult is the full outcome of a run. On FAILED only State, Err and
// identity fields are set.
type RunResult struct {
	RunID     string
	Ticker    string
	State     models.RunState
	Err       error
	Lookback  int
	Bars      int
	Trades    []models.TradeRecord
	Decisions []models.DecisionLogEntry
	Equity    []models.EquityPoint
	Benchmark []models.EquityPoint
	Metrics   models.PerformanceMetrics
	Periods   []features.PeriodSummary
	AsOf      time.Time
}

// Summary is a one-line human readable digest.
func (r *RunResult) Summary() string {
	if r.State != models.RunCompleted {
		return fmt.Sprintf("%s %s: %v", r.Ticker, r.State, r.Err)
	}
	final := 0.0
	if n := len(r.Equity); n > 0 {
		final = r.Equity[n-1].Value
	}
	m := r.Metrics
	return fmt.Sprintf("Ran %d bars; trades=%d; final_equity=$%.2f; max_drawdown=%.2f%%; "+
		"strategy_return=%.2f%%; buy_hold_return=%.2f%%; sharpe=%.2f; total_fees=$%.2f",
		len(r.Equity), m.TradeCount, final, m.MaxDrawdown*100,
		m.TotalReturn*100, m.BenchmarkReturn*100, m.SharpeRatio, m.TotalFees)
}

// Report is the publishable form of the result.
func (r *RunResult) Report() models.BacktestReport {
	rep := models.BacktestReport{
		RunID:   r.RunID,
		Ticker:  r.Ticker,
		State:   r.State,
		Bars:    len(r.Equity),
		Metrics: r.Metrics,
		Trades:  r.Trades,
		Summary: r.Summary(),
		AsOf:    r.AsOf,
	}
	if r.Err != nil {
		rep.Error = r.Err.Error()
	}
	return rep
}

// BacktestEngine replays the decision path bar by bar with all-in/all-out execution.
type BacktestEngine struct {
	decider  WindowDecider
	cfg      config.BacktestConfig
	cache    *cache.DecisionCache
	log      *logger.Logger
	metrics  repository.Metrics
	progress func(Progress)
}

func NewBacktestEngine(decider WindowDecider, cfg config.BacktestConfig) *BacktestEngine {
	return &BacktestEngine{
		decider: decider,
		cfg:     cfg,
		log:     logger.Nop(),
		metrics: metrics.Nop{},
	}
}

func (e *BacktestEngine) SetLogger(l *logger.Logger) {
	if l != nil {
		e.log = l
	}
}

func (e *BacktestEngine) SetMetrics(m repository.Metrics) {
	if m != nil {
		e.metrics = m
	}
}

// SetCache enables per-window decision caching.
func (e *BacktestEngine) SetCache(c *cache.DecisionCache) { e.cache = c }

// SetProgress registers a callback invoked from the run's goroutine.
func (e *BacktestEngine) SetProgress(fn func(Progress)) { e.progress = fn }

// Lookback is the window length each decision is given.
func (e *BacktestEngine) Lookback() int {
	return max(e.cfg.Lookback, e.decider.Lookback())
}

// Run executes one backtest. It never returns nil.
func (e *BacktestEngine) Run(ctx context.Context, p BacktestParams) *RunResult {
	start := time.Now()
	if p.InitialCapital == 0 {
		p.InitialCapital = e.cfg.InitialCapital
	}
	if p.Timeframe == "" {
		p.Timeframe = repository.DefaultTimeframe()
	}

	res := &RunResult{
		RunID:    runID(p, e.cfg.FeeRate),
		Ticker:   p.Series.Ticker,
		State:    models.RunInitialized,
		Lookback: e.Lookback(),
		Bars:     p.Series.Len(),
	}
	log := e.log.With(logger.String("run_id", res.RunID), logger.String("ticker", res.Ticker))

	if err := e.check(p, res.Lookback); err != nil {
		e.fail(res, err, log)
		return res
	}

	res.State = models.RunRunning
	log.Info("backtest started", logger.Int("bars", res.Bars), logger.Int("lookback", res.Lookback))
	if err := e.loop(ctx, p, res); err != nil {
		e.fail(res, err, log)
		return res
	}

	res.Metrics = computeMetrics(p.InitialCapital, res.Equity, res.Benchmark, res.Trades, p.Timeframe.PeriodsPerYear())
	res.Periods = features.Summarize(p.Series, features.Monthly)
	res.AsOf = p.Series.Bars[p.Series.Len()-1].Timestamp
	res.State = models.RunCompleted

	elapsed := time.Since(start)
	svcmetrics.BacktestRuns.WithLabelValues(string(res.State)).Inc()
	svcmetrics.BacktestDuration.Observe(elapsed.Seconds())
	e.metrics.RecordLatency("backtest", elapsed.Seconds())
	e.report(Progress{RunID: res.RunID, Ticker: res.Ticker, Done: len(res.Equity), Total: len(res.Equity), Message: "completed"})
	log.Info("backtest completed",
		logger.Int("trades", res.Metrics.TradeCount),
		logger.Float64("total_return", res.Metrics.TotalReturn),
		logger.Float64("benchmark_return", res.Metrics.BenchmarkReturn),
		logger.Duration("elapsed", elapsed))
	return res
}

// RunMany runs independent backtests in parallel, bounded by the configured
// parallelism. Results keep the order of params.
func (e *BacktestEngine) RunMany(ctx context.Context, params []BacktestParams) []*RunResult {
	out := make([]*RunResult, len(params))
	var g errgroup.Group
	g.SetLimit(max(1, e.cfg.Parallelism))
	for i, p := range params {
		g.Go(func() error {
			out[i] = e.Run(ctx, p)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (e *BacktestEngine) check(p BacktestParams, lookback int) error {
	if p.InitialCapital <= 0 {
		return fmt.Errorf("initial capital must be positive, got %g", p.InitialCapital)
	}
	if p.Series.Len() < lookback {
		return models.InsufficientHistoryf("%s: backtest needs %d bars, got %d", p.Series.Ticker, lookback, p.Series.Len())
	}
	return p.Series.Validate()
}

func (e *BacktestEngine) fail(res *RunResult, err error, log *logger.Logger) {
	res.State = models.RunFailed
	res.Err = err
	res.Trades, res.Decisions, res.Equity, res.Benchmark, res.Periods = nil, nil, nil, nil, nil
	res.Metrics = models.PerformanceMetrics{}
	svcmetrics.BacktestRuns.WithLabelValues(string(res.State)).Inc()
	e.metrics.RecordError("backtest")
	log.Warn("backtest failed", logger.Error(err))
}

func (e *BacktestEngine) loop(ctx context.Context, p BacktestParams, res *RunResult) error {
	bars := p.Series.Bars
	w := res.Lookback
	first := w - 1
	total := len(bars) - first
	step := max(1, total/10)

	pf := portfolio{cash: p.InitialCapital}
	bench := newBenchmark(p.InitialCapital, bars[first].Close, e.cfg.FeeRate)
	weights := p.Weights.Clone()
	weightsKey := cache.WeightsFingerprint(weights)

	res.Decisions = make([]models.DecisionLogEntry, 0, total)
	res.Equity = make([]models.EquityPoint, 0, total)
	res.Benchmark = make([]models.EquityPoint, 0, total)

	for i := first; i < len(bars); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		bar := bars[i]
		window := bars[i-w+1 : i+1]

		d, err := e.decide(ctx, p, window, weights, weightsKey)
		if err != nil {
			return fmt.Errorf("bar %s: %w", bar.Timestamp.Format(time.RFC3339), err)
		}

		trade, executed := pf.execute(d.Action, bar, e.cfg.FeeRate)
		if executed {
			res.Trades = append(res.Trades, trade)
		}
		res.Decisions = append(res.Decisions, models.DecisionLogEntry{
			Timestamp: bar.Timestamp, Action: d.Action, Confidence: d.Confidence, Executed: executed,
		})
		res.Equity = append(res.Equity, models.EquityPoint{Timestamp: bar.Timestamp, Value: pf.equity(bar.Close)})
		res.Benchmark = append(res.Benchmark, models.EquityPoint{Timestamp: bar.Timestamp, Value: bench.equity(bar.Close)})

		if done := i - first + 1; done%step == 0 {
			e.report(Progress{RunID: res.RunID, Ticker: res.Ticker, Done: done, Total: total,
				Message: fmt.Sprintf("processed %d/%d bars", done, total)})
		}
	}
	return nil
}

func (e *BacktestEngine) decide(ctx context.Context, p BacktestParams, window []models.PriceBar, weights models.WeightVector, weightsKey string) (models.Decision, error) {
	asOf := window[len(window)-1].Timestamp
	var idx domsvc.SimilarityIndex
	bound := "none"
	if p.Index != nil {
		view := p.Index.AsOf(asOf)
		idx = view
		bound = view.Bound()
	}
	compute := func() (models.Decision, error) {
		return e.decider.Decide(ctx, p.Series.Ticker, window, weights, idx)
	}
	if e.cache == nil {
		return compute()
	}
	key := e.cache.Key(cache.KindDecision, p.Series.Ticker, window, weightsKey, bound)
	return cache.GetOrCompute(ctx, e.cache, cache.KindDecision, key, compute)
}

func (e *BacktestEngine) report(p Progress) {
	if e.progress != nil {
		e.progress(p)
	}
}

// runID is a name-based UUID over the run inputs, so a replay keeps its id.
func runID(p BacktestParams, feeRate float64) string {
	var first, last int64
	if n := p.Series.Len(); n > 0 {
		first = p.Series.Bars[0].Timestamp.UnixNano()
		last = p.Series.Bars[n-1].Timestamp.UnixNano()
	}
	var snap uint64
	if p.Index != nil {
		snap = p.Index.Version()
	}
	name := fmt.Sprintf("%s|%d|%d|%d|%s|%s|%g|%g|%d|%s",
		p.Series.Ticker, first, last, p.Series.Len(), cache.Digest(p.Series.Bars),
		cache.WeightsFingerprint(p.Weights), p.InitialCapital, feeRate, snap, p.Timeframe)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// portfolio is all-in/all-out: it holds either cash or shares.
type portfolio struct {
	cash       float64
	shares     float64
	entryPrice float64
	costBasis  float64
}

func (p *portfolio) equity(price float64) float64 { return p.cash + p.shares*price }

func (p *portfolio) snapshot(ts time.Time, price float64) models.PortfolioSnapshot {
	return models.PortfolioSnapshot{
		Timestamp: ts, Cash: p.cash, Shares: p.shares, CostBasis: p.costBasis, Equity: p.equity(price),
	}
}

// execute applies action at the bar close. Buys spend all cash, paying the fee
// out of it; sells liquidate every share, paying the fee out of the proceeds.
// RealizedPnL is the gross price move on the closed position.
func (p *portfolio) execute(action models.Action, bar models.PriceBar, feeRate float64) (models.TradeRecord, bool) {
	price := bar.Close
	if price <= 0 {
		return models.TradeRecord{}, false
	}
	switch action {
	case models.ActionBuy:
		if p.cash <= 0 {
			return models.TradeRecord{}, false
		}
		fee := p.cash * feeRate
		qty := (p.cash - fee) / price
		p.shares += qty
		p.cash = 0
		p.entryPrice = price
		p.costBasis = qty * price
		return models.TradeRecord{
			Timestamp: bar.Timestamp, Action: action, Price: price, Quantity: qty, Fee: fee,
			Portfolio: p.snapshot(bar.Timestamp, price),
		}, true
	case models.ActionSell:
		if p.shares <= 0 {
			return models.TradeRecord{}, false
		}
		qty := p.shares
		gross := qty * price
		fee := gross * feeRate
		pnl := qty * (price - p.entryPrice)
		p.cash += gross - fee
		p.shares, p.entryPrice, p.costBasis = 0, 0, 0
		return models.TradeRecord{
			Timestamp: bar.Timestamp, Action: action, Price: price, Quantity: qty, Fee: fee, RealizedPnL: pnl,
			Portfolio: p.snapshot(bar.Timestamp, price),
		}, true
	default:
		return models.TradeRecord{}, false
	}
}

// benchmark buys once at the first eligible bar and holds.
type benchmark struct {
	shares float64
}

func newBenchmark(capital, price, feeRate float64) benchmark {
	if price <= 0 {
		return benchmark{}
	}
	return benchmark{shares: capital * (1 - feeRate) / price}
}

func (b benchmark) equity(price float64) float64 { return b.shares * price }

// IsInsufficientHistory reports whether a run failed for lack of bars.
func IsInsufficientHistory(r *RunResult) bool {
	return r != nil && errors.Is(r.Err, models.ErrInsufficientHistory)
}
