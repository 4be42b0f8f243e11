package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"HackCap/internal/domain/models"
	domrepo "HackCap/internal/domain/repository"
	domsvc "HackCap/internal/domain/service"
	"HackCap/internal/service/cache"
	svcmetrics "HackCap/internal/service/metrics"
	"HackCap/internal/services/ensemble"
	"HackCap/internal/services/similarity"
	"HackCap/pkg/logger"
	"HackCap/pkg/metrics"
	"HackCap/pkg/util"
)

var validate = validator.New()

// DecisionService is the presentation-facing entry point: fetch bars, decide,
// optionally publish; and run backtests over fetched history.
type DecisionService struct {
	source    domrepo.PriceSource
	combiner  *ensemble.Combiner
	store     *similarity.Store
	weights   *WeightBook
	backtests *BacktestEngine
	cache     *cache.DecisionCache
	publisher domrepo.Publisher
	log       *logger.Logger
	metrics   domrepo.Metrics
	now       func() time.Time
}

func NewDecisionService(source domrepo.PriceSource, combiner *ensemble.Combiner, store *similarity.Store, weights *WeightBook, backtests *BacktestEngine) *DecisionService {
	return &DecisionService{
		source:    source,
		combiner:  combiner,
		store:     store,
		weights:   weights,
		backtests: backtests,
		log:       logger.Nop(),
		metrics:   metrics.Nop{},
		now:       time.Now,
	}
}

func (s *DecisionService) SetLogger(l *logger.Logger) {
	if l != nil {
		s.log = l
	}
}

func (s *DecisionService) SetMetrics(m domrepo.Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// SetCache enables decision caching.
func (s *DecisionService) SetCache(c *cache.DecisionCache) { s.cache = c }

// SetPublisher ships every decision downstream. Publish failures are logged, not returned.
func (s *DecisionService) SetPublisher(p domrepo.Publisher) { s.publisher = p }

// WindowSize is the streaming decision window, matching what a backtest replays.
func (s *DecisionService) WindowSize() int {
	if s.backtests != nil {
		return s.backtests.Lookback()
	}
	return s.combiner.Lookback()
}

// Weights exposes the weight book for updates.
func (s *DecisionService) Weights() *WeightBook { return s.weights }

// Decide fetches the requested range and decides on its last bar.
func (s *DecisionService) Decide(ctx context.Context, req models.DecideRequest) (models.Decision, error) {
	if err := defaults.Set(&req); err != nil {
		return models.Decision{}, fmt.Errorf("apply defaults: %w", err)
	}
	if err := validate.Struct(req); err != nil {
		return models.Decision{}, fmt.Errorf("invalid decide request: %w", err)
	}

	tf := domrepo.NormalizeTimeframe(req.Timeframe)
	from, to := s.span(req.From, req.To, tf, max(req.Lookback, s.combiner.Lookback()))
	series, err := s.source.GetSeries(ctx, req.Ticker, from, to, tf)
	if err != nil {
		s.metrics.RecordError("source")
		return models.Decision{}, fmt.Errorf("get series: %w", err)
	}

	window := series.Bars
	if n := max(req.Lookback, s.combiner.Lookback()); len(window) > n {
		window = window[len(window)-n:]
	}
	weights := req.Weights
	if weights == nil {
		weights = s.weights.Current()
	}
	return s.DecideWindow(ctx, req.Ticker, window, weights)
}

// DecideWindow decides on window as given, against the current similarity
// snapshot limited to outcomes resolved by the window's last bar.
func (s *DecisionService) DecideWindow(ctx context.Context, ticker string, window []models.PriceBar, weights models.WeightVector) (models.Decision, error) {
	if err := (models.PriceSeries{Ticker: ticker, Bars: window}).Validate(); err != nil {
		return models.Decision{}, err
	}
	var idx domsvc.SimilarityIndex
	bound := "none"
	if s.store != nil {
		view := s.store.Snapshot().AsOf(window[len(window)-1].Timestamp)
		idx = view
		bound = view.Bound()
	}
	weights = weights.Clone()

	compute := func() (models.Decision, error) {
		return s.combiner.Decide(ctx, ticker, window, weights, idx)
	}
	var (
		d   models.Decision
		err error
	)
	if s.cache != nil {
		key := s.cache.Key(cache.KindDecision, ticker, window, cache.WeightsFingerprint(weights), bound)
		d, err = cache.GetOrCompute(ctx, s.cache, cache.KindDecision, key, compute)
	} else {
		d, err = compute()
	}
	if err != nil {
		return models.Decision{}, err
	}

	if s.publisher != nil {
		if perr := s.publisher.PublishDecision(ctx, d); perr != nil {
			s.metrics.RecordError("publish_decision")
			s.log.Warn("publish decision failed", logger.String("ticker", ticker), logger.Error(perr))
		}
	}
	return d, nil
}

// Backtest fetches history for req and replays it. Source errors fail the call.
func (s *DecisionService) Backtest(ctx context.Context, req models.BacktestRequest) (*RunResult, error) {
	p, err := s.params(ctx, req)
	if err != nil {
		return nil, err
	}
	res := s.backtests.Run(ctx, p)
	s.publishReport(ctx, res)
	return res, nil
}

// BacktestMany fetches every request up front, then replays them in parallel.
// Results keep request order.
func (s *DecisionService) BacktestMany(ctx context.Context, reqs []models.BacktestRequest) ([]*RunResult, error) {
	params := make([]BacktestParams, len(reqs))
	for i, req := range reqs {
		p, err := s.params(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", req.Ticker, err)
		}
		params[i] = p
	}
	results := s.backtests.RunMany(ctx, params)
	for _, res := range results {
		s.publishReport(ctx, res)
	}
	return results, nil
}

// Warm ingests [from, to] history for each ticker into the similarity store.
// Tickers without enough history are skipped; other failures abort.
func (s *DecisionService) Warm(ctx context.Context, tickers []string, from, to time.Time, tf domrepo.Timeframe) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	var (
		mu    sync.Mutex
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, ticker := range tickers {
		g.Go(func() error {
			series, err := s.source.GetSeries(gctx, ticker, from, to, tf)
			if err != nil {
				s.metrics.RecordError("source")
				return fmt.Errorf("warm %s: %w", ticker, err)
			}
			n, err := s.store.Ingest(gctx, ticker, series)
			if errors.Is(err, models.ErrInsufficientHistory) {
				s.log.Warn("warm skipped", logger.String("ticker", ticker), logger.Int("bars", series.Len()))
				return nil
			}
			if err != nil {
				return fmt.Errorf("warm %s: %w", ticker, err)
			}
			mu.Lock()
			total += n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	snap := s.store.Snapshot()
	svcmetrics.ObserveSnapshot(snap.Len(), snap.Complete())
	s.log.Info("similarity store warmed",
		logger.Int("tickers", len(tickers)),
		logger.Int("records", snap.Len()),
		logger.Int("complete", snap.Complete()))
	return total, nil
}

func (s *DecisionService) params(ctx context.Context, req models.BacktestRequest) (BacktestParams, error) {
	if err := defaults.Set(&req); err != nil {
		return BacktestParams{}, fmt.Errorf("apply defaults: %w", err)
	}
	if err := validate.Struct(req); err != nil {
		return BacktestParams{}, fmt.Errorf("invalid backtest request: %w", err)
	}
	tf := domrepo.NormalizeTimeframe(req.Timeframe)
	if req.To.IsZero() {
		req.To = s.now().UTC()
	}
	series, err := s.source.GetSeries(ctx, req.Ticker, req.From, req.To, tf)
	if err != nil {
		s.metrics.RecordError("source")
		return BacktestParams{}, fmt.Errorf("get series: %w", err)
	}
	weights := req.Weights
	if weights == nil {
		weights = s.weights.Current()
	}
	var snap *similarity.Snapshot
	if s.store != nil {
		snap = s.store.Snapshot()
	}
	return BacktestParams{
		Series:         series,
		Weights:        weights,
		Index:          snap,
		InitialCapital: req.InitialCapital,
		Timeframe:      tf,
	}, nil
}

func (s *DecisionService) publishReport(ctx context.Context, res *RunResult) {
	if s.publisher == nil || res.State != models.RunCompleted {
		return
	}
	if err := s.publisher.PublishReport(ctx, res.Report()); err != nil {
		s.metrics.RecordError("publish_report")
		s.log.Warn("publish report failed", logger.String("run_id", res.RunID), logger.Error(err))
	}
}

// span fills a missing range so that at least need bars are requested.
func (s *DecisionService) span(from, to time.Time, tf domrepo.Timeframe, need int) (time.Time, time.Time) {
	if to.IsZero() {
		to = s.now().UTC()
	}
	if from.IsZero() {
		// calendar gaps (weekends, sessions) need headroom
		from = to.Add(-time.Duration(need*2) * tf.Step())
	}
	return util.AlignFromTo(from, to, tf.Step())
}
