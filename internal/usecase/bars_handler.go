package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"HackCap/internal/domain/models"
	domrepo "HackCap/internal/domain/repository"
	"HackCap/internal/service/cache"
	svcmetrics "HackCap/internal/service/metrics"
	"HackCap/internal/service/ratelimit"
	"HackCap/internal/services/similarity"
	pkgkafka "HackCap/pkg/kafka"
	"HackCap/pkg/logger"
	"HackCap/pkg/metrics"
)

const defaultMaxHistory = 5000

// BarsMessage is the payload on the bars topic.
type BarsMessage struct {
	Ticker string            `json:"ticker"`
	Bars   []models.PriceBar `json:"bars"`
}

// BarsHandler merges bar batches into a per-ticker history, re-ingests that
// history into the similarity store and decides on the newest bar.
type BarsHandler struct {
	topic      string
	decisions  *DecisionService
	store      *similarity.Store
	cache      *cache.DecisionCache
	sink       domrepo.BarSink
	limiter    *ratelimit.Limiter
	tf         domrepo.Timeframe
	log        *logger.Logger
	metrics    domrepo.Metrics
	maxHistory int

	mu      sync.Mutex
	history map[string][]models.PriceBar
}

func NewBarsHandler(topic string, decisions *DecisionService, store *similarity.Store) *BarsHandler {
	return &BarsHandler{
		topic:      topic,
		decisions:  decisions,
		store:      store,
		log:        logger.Nop(),
		metrics:    metrics.Nop{},
		maxHistory: defaultMaxHistory,
		tf:         domrepo.DefaultTimeframe(),
		history:    make(map[string][]models.PriceBar),
	}
}

func (h *BarsHandler) SetLogger(l *logger.Logger) {
	if l != nil {
		h.log = l
	}
}

func (h *BarsHandler) SetMetrics(m domrepo.Metrics) {
	if m != nil {
		h.metrics = m
	}
}

// SetCache lets the handler drop stale artifacts for tickers it re-ingests.
func (h *BarsHandler) SetCache(c *cache.DecisionCache) { h.cache = c }

// SetSink persists every received batch at timeframe tf before deciding.
func (h *BarsHandler) SetSink(sink domrepo.BarSink, tf domrepo.Timeframe) {
	h.sink = sink
	h.tf = tf
}

// SetLimiter throttles decisions per ticker. Throttled batches are still
// stored and ingested.
func (h *BarsHandler) SetLimiter(l *ratelimit.Limiter) { h.limiter = l }

func (h *BarsHandler) Topic() string { return h.topic }

func (h *BarsHandler) Handle(ctx context.Context, b []byte) error {
	var msg BarsMessage
	if err := json.Unmarshal(b, &msg); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("%w: decode bars: %v", pkgkafka.ErrPermanent, err)
	}
	if msg.Ticker == "" || len(msg.Bars) == 0 {
		return fmt.Errorf("%w: empty bars message", pkgkafka.ErrPermanent)
	}

	start := time.Now()
	if h.sink != nil {
		if err := h.sink.StoreBars(ctx, msg.Ticker, h.tf, msg.Bars); err != nil {
			h.metrics.RecordError("bar_sink")
			return fmt.Errorf("store bars %s: %w", msg.Ticker, err)
		}
	}
	series := models.PriceSeries{Ticker: msg.Ticker, Bars: h.merge(msg.Ticker, msg.Bars)}

	if _, err := h.store.Ingest(ctx, msg.Ticker, series); err != nil {
		if !errors.Is(err, models.ErrInsufficientHistory) {
			h.metrics.RecordError("similarity_ingest")
			return fmt.Errorf("ingest %s: %w", msg.Ticker, err)
		}
		h.log.Debug("not enough history to ingest yet",
			logger.String("ticker", msg.Ticker), logger.Int("bars", series.Len()))
	}
	snap := h.store.Snapshot()
	svcmetrics.ObserveSnapshot(snap.Len(), snap.Complete())
	if h.cache != nil {
		if err := h.cache.Invalidate(ctx, msg.Ticker); err != nil {
			h.log.Warn("cache invalidate failed", logger.String("ticker", msg.Ticker), logger.Error(err))
		}
	}

	if !h.limiter.Allow(msg.Ticker) {
		h.metrics.RecordError("decision_throttled")
		h.log.Debug("decision throttled", logger.String("ticker", msg.Ticker))
		return nil
	}

	window := series.Bars
	if n := h.decisions.WindowSize(); len(window) > n {
		window = window[len(window)-n:]
	}
	d, err := h.decisions.DecideWindow(ctx, msg.Ticker, window, h.decisions.Weights().Current())
	if err != nil {
		if errors.Is(err, models.ErrInsufficientHistory) {
			return nil
		}
		return fmt.Errorf("decide %s: %w", msg.Ticker, err)
	}
	h.metrics.RecordLatency("bars_handle", time.Since(start).Seconds())
	h.log.Debug("decision emitted",
		logger.String("ticker", d.Ticker),
		logger.String("action", string(d.Action)),
		logger.Float64("confidence", d.Confidence))
	return nil
}

// merge folds bars into the ticker history by timestamp, newer values
// replacing older ones, and trims to the newest maxHistory bars.
func (h *BarsHandler) merge(ticker string, bars []models.PriceBar) []models.PriceBar {
	h.mu.Lock()
	defer h.mu.Unlock()

	byTs := make(map[int64]models.PriceBar, len(h.history[ticker])+len(bars))
	for _, b := range h.history[ticker] {
		byTs[b.Timestamp.UnixNano()] = b
	}
	for _, b := range bars {
		byTs[b.Timestamp.UnixNano()] = b
	}
	merged := make([]models.PriceBar, 0, len(byTs))
	for _, b := range byTs {
		merged = append(merged, b)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Timestamp.Before(merged[j].Timestamp) })
	if len(merged) > h.maxHistory {
		merged = merged[len(merged)-h.maxHistory:]
	}
	h.history[ticker] = merged

	out := make([]models.PriceBar, len(merged))
	copy(out, merged)
	return out
}

var _ pkgkafka.MessageHandler = (*BarsHandler)(nil)
