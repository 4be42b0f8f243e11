// Package ensemble combines agent signals and historical similarity context
// into one buy/sell/hold decision.
package ensemble

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"HackCap/internal/domain/models"
	"HackCap/internal/domain/repository"
	domsvc "HackCap/internal/domain/service"
	"HackCap/internal/service/cache"
	"HackCap/internal/services/agents"
	"HackCap/internal/services/indicators"
	"HackCap/pkg/config"
	"HackCap/pkg/logger"
	"HackCap/pkg/metrics"
)

// Combiner is stateless between calls: identical window, weights and index
// snapshot produce identical decisions.
type Combiner struct {
	registry  *agents.Registry
	extractor domsvc.FeatureExtractor
	cfg       config.EnsembleConfig
	cache     *cache.DecisionCache
	log       *logger.Logger
	metrics   repository.Metrics
}

// bounded is implemented by indexes that can name what they see, which
// makes their query results cacheable.
type bounded interface {
	Bound() string
}

// New creates a combiner. extractor may be nil, which disables similarity context.
func New(registry *agents.Registry, extractor domsvc.FeatureExtractor, cfg config.EnsembleConfig) *Combiner {
	return &Combiner{
		registry:  registry,
		extractor: extractor,
		cfg:       cfg,
		log:       logger.Nop(),
		metrics:   metrics.Nop{},
	}
}

func (c *Combiner) SetLogger(l *logger.Logger) {
	if l != nil {
		c.log = l
	}
}

func (c *Combiner) SetMetrics(m repository.Metrics) {
	if m != nil {
		c.metrics = m
	}
}

// SetCache memoizes feature vectors and neighbor lists. Queries against an
// index without a Bound are never cached.
func (c *Combiner) SetCache(dc *cache.DecisionCache) { c.cache = dc }

// Registry exposes the agent set the combiner evaluates.
func (c *Combiner) Registry() *agents.Registry { return c.registry }

// Lookback is the window length that lets every agent and the feature extractor run.
func (c *Combiner) Lookback() int {
	n := c.registry.Lookback()
	if c.extractor != nil {
		n = max(n, c.extractor.Lookback())
	}
	return n
}

// Normalize restricts weights to the registered agents and scales them to sum to 1.
// Ids outside the known agent set are rejected; known ids whose agent is
// disabled are dropped; registered agents without a weight get zero.
func (c *Combiner) Normalize(weights models.WeightVector) (models.WeightVector, error) {
	if err := config.ValidateWeights(weights); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidWeights, err)
	}
	active := make(models.WeightVector, len(c.registry.Agents()))
	for _, id := range c.registry.IDs() {
		active[id] = weights[id]
	}
	return active.Normalize()
}

// Decide evaluates every agent on window, adds the similarity nudge from idx
// (nil idx skips it) and maps the score to an action.
func (c *Combiner) Decide(ctx context.Context, ticker string, window []models.PriceBar, weights models.WeightVector, idx domsvc.SimilarityIndex) (models.Decision, error) {
	start := time.Now()
	if len(window) == 0 {
		return models.Decision{}, models.InsufficientHistoryf("%s: empty window", ticker)
	}
	norm, err := c.Normalize(weights)
	if err != nil {
		return models.Decision{}, err
	}

	signals := c.evaluate(ticker, window)

	score := 0.0
	for _, s := range signals {
		score += norm[s.AgentID] * s.Direction.Sign() * s.Confidence
	}

	simCtx, err := c.similarity(ctx, ticker, window, idx)
	if err != nil {
		return models.Decision{}, err
	}
	simCtx.Adjustment = c.nudge(score, simCtx)
	score += simCtx.Adjustment

	d := models.Decision{
		Ticker:     ticker,
		Action:     c.action(score),
		Confidence: math.Min(1, math.Abs(score)),
		Score:      score,
		Signals:    signals,
		Similarity: simCtx,
		Rationale:  rationale(signals, simCtx),
		Indicators: indicators.Latest(window),
		Timestamp:  window[len(window)-1].Timestamp,
	}
	c.metrics.RecordDecision(ticker, string(d.Action))
	c.metrics.RecordLatency("decide", time.Since(start).Seconds())
	return d, nil
}

// evaluate runs agents in parallel and returns signals in registry order.
func (c *Combiner) evaluate(ticker string, window []models.PriceBar) []models.Signal {
	list := c.registry.Agents()
	out := make([]models.Signal, len(list))

	var g errgroup.Group
	for i, a := range list {
		g.Go(func() error {
			out[i] = c.evaluateOne(ticker, a, window)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (c *Combiner) evaluateOne(ticker string, a domsvc.Agent, window []models.PriceBar) (sig models.Signal) {
	defer func() {
		if r := recover(); r != nil {
			sig = c.failed(ticker, a.ID(), &models.AgentError{AgentID: a.ID(), Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	sig, err := a.Evaluate(window)
	switch {
	case errors.Is(err, models.ErrInsufficientHistory):
		return models.FlatSignal(a.ID(), "insufficient history")
	case err != nil:
		return c.failed(ticker, a.ID(), &models.AgentError{AgentID: a.ID(), Err: err})
	}
	sig.AgentID = a.ID()
	if sig.Direction == models.DirectionFlat || math.IsNaN(sig.Confidence) {
		sig.Confidence = 0
	}
	sig.Confidence = math.Max(0, math.Min(1, sig.Confidence))
	return sig
}

func (c *Combiner) failed(ticker, agentID string, err error) models.Signal {
	c.metrics.RecordAgentFailure(agentID)
	c.log.Warn("agent degraded to flat",
		logger.String("ticker", ticker),
		logger.String("agent", agentID),
		logger.Error(err))
	s := models.FlatSignal(agentID, "failed: "+err.Error())
	s.Failed = true
	return s
}

func (c *Combiner) similarity(ctx context.Context, ticker string, window []models.PriceBar, idx domsvc.SimilarityIndex) (models.SimilarityContext, error) {
	if idx == nil || c.extractor == nil {
		return models.SimilarityContext{Summary: "similarity disabled"}, nil
	}
	if c.cfg.SimilarityScope == config.ScopeTicker {
		if sc, ok := idx.(domsvc.TickerScoper); ok {
			idx = sc.ForTicker(ticker)
		}
	}
	tail := window[max(0, len(window)-c.extractor.Lookback()):]

	vec, err := c.features(ctx, ticker, tail)
	if errors.Is(err, models.ErrInsufficientHistory) {
		return models.SimilarityContext{Summary: "similarity: insufficient history"}, nil
	}
	if err != nil {
		return models.SimilarityContext{}, err
	}

	hits, err := c.neighbors(ctx, ticker, tail, vec, idx)
	if errors.Is(err, models.ErrEmptyStore) {
		return models.SimilarityContext{Summary: "similarity: no historical matches"}, nil
	}
	if err != nil {
		return models.SimilarityContext{}, err
	}

	sc := models.SimilarityContext{Available: true, Neighbors: hits}
	sum := 0.0
	for _, h := range hits {
		sum += h.Outcome
		switch {
		case h.Outcome > 0:
			sc.Positive++
		case h.Outcome < 0:
			sc.Negative++
		}
	}
	sc.MeanReturn = sum / float64(len(hits))
	sc.Summary = fmt.Sprintf("similarity: %d neighbors, %d up / %d down, mean fwd return %+.2f%%",
		len(hits), sc.Positive, sc.Negative, sc.MeanReturn*100)
	return sc, nil
}

func (c *Combiner) features(ctx context.Context, ticker string, tail []models.PriceBar) (models.FeatureVector, error) {
	extract := func() (models.FeatureVector, error) { return c.extractor.Extract(ticker, tail) }
	if c.cache == nil {
		return extract()
	}
	key := c.cache.Key(cache.KindFeatures, ticker, tail)
	return cache.GetOrCompute(ctx, c.cache, cache.KindFeatures, key, extract)
}

// neighbors queries idx for vec, the feature vector of tail.
func (c *Combiner) neighbors(ctx context.Context, ticker string, tail []models.PriceBar, vec models.FeatureVector, idx domsvc.SimilarityIndex) ([]models.Neighbor, error) {
	query := func() ([]models.Neighbor, error) { return idx.Query(ctx, vec, c.cfg.Neighbors) }
	b, ok := idx.(bounded)
	if c.cache == nil || !ok {
		return query()
	}
	key := c.cache.Key(cache.KindSimilarity, ticker, tail, b.Bound(), strconv.Itoa(c.cfg.Neighbors))
	return cache.GetOrCompute(ctx, c.cache, cache.KindSimilarity, key, query)
}

// nudge is the bounded historical-context adjustment. It applies only when
// neighbor outcomes lean one way by more than the threshold, and it can pull
// an opposite score to zero but never across it.
func (c *Combiner) nudge(score float64, sc models.SimilarityContext) float64 {
	if !sc.Available || len(sc.Neighbors) == 0 {
		return 0
	}
	balance := float64(sc.Positive-sc.Negative) / float64(len(sc.Neighbors))
	if math.Abs(balance) <= c.cfg.SimilarityThreshold {
		return 0
	}
	adj := c.cfg.SimilarityWeight * balance
	adj = math.Max(-c.cfg.MaxAdjustment, math.Min(c.cfg.MaxAdjustment, adj))
	if score*adj < 0 && math.Abs(adj) > math.Abs(score) {
		adj = -score
	}
	return adj
}

func (c *Combiner) action(score float64) models.Action {
	switch {
	case score > c.cfg.Threshold:
		return models.ActionBuy
	case score < -c.cfg.Threshold:
		return models.ActionSell
	default:
		return models.ActionHold
	}
}

func rationale(signals []models.Signal, sc models.SimilarityContext) string {
	parts := make([]string, 0, len(signals)+1)
	for _, s := range signals {
		parts = append(parts, s.AgentID+": "+s.Rationale)
	}
	parts = append(parts, sc.Summary)
	return strings.Join(parts, "; ")
}

var _ domsvc.Decider = (*Combiner)(nil)
