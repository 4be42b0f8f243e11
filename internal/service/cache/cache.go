// Package cache is the cache-aside layer for decision artifacts. A miss, a
// backing store error and a timeout all fall through to recomputation.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"HackCap/internal/domain/models"
	"HackCap/internal/domain/repository"
	pkgcache "HackCap/pkg/cache"
	"HackCap/pkg/logger"
	"HackCap/pkg/metrics"
)

// Artifact kinds.
const (
	KindDecision   = "decision"
	KindFeatures   = "features"
	KindSimilarity = "similarity"
)

const keyPrefix = "engine"

// DecisionCache fingerprints windows and wraps a pkg/cache.Service.
type DecisionCache struct {
	store   pkgcache.Service
	version string
	ttl     time.Duration
	timeout time.Duration
	log     *logger.Logger
	metrics repository.Metrics
}

// New wraps store. version should change whenever a setting that affects
// outputs changes; it is part of every key.
func New(store pkgcache.Service, version string, ttl, timeout time.Duration) *DecisionCache {
	if store == nil {
		store = pkgcache.Nop{}
	}
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}
	return &DecisionCache{
		store:   store,
		version: version,
		ttl:     ttl,
		timeout: timeout,
		log:     logger.Nop(),
		metrics: metrics.Nop{},
	}
}

func (c *DecisionCache) SetLogger(l *logger.Logger) {
	if l != nil {
		c.log = l
	}
}

func (c *DecisionCache) SetMetrics(m repository.Metrics) {
	if m != nil {
		c.metrics = m
	}
}

// Version is the configuration version embedded in keys.
func (c *DecisionCache) Version() string { return c.version }

// Key fingerprints (kind, ticker, window bounds, window content, config version, extra).
// extra carries call-specific inputs such as the weights or the index snapshot version.
func (c *DecisionCache) Key(kind, ticker string, window []models.PriceBar, extra ...string) string {
	var from, to int64
	if len(window) > 0 {
		from = window[0].Timestamp.UnixNano()
		to = window[len(window)-1].Timestamp.UnixNano()
	}
	params := []interface{}{c.version, from, to, len(window), Digest(window)}
	for _, e := range extra {
		params = append(params, e)
	}
	return pkgcache.GenerateKeyWithParams(keyPrefix+":"+kind+":"+ticker,
		pkgcache.HashKey(pkgcache.GenerateKeyWithParams("", params...)))
}

// Invalidate drops every cached artifact for ticker.
func (c *DecisionCache) Invalidate(ctx context.Context, ticker string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	var errs []error
	for _, kind := range []string{KindDecision, KindFeatures, KindSimilarity} {
		if err := c.store.DeleteByPattern(ctx, pkgcache.BuildPattern(keyPrefix+":"+kind+":"+ticker+":")); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases the backing store.
func (c *DecisionCache) Close() error { return c.store.Close() }

// GetOrCompute returns the cached artifact under key or computes and stores it.
// Compute errors are returned and never cached. A nil cache always computes.
func GetOrCompute[T any](ctx context.Context, c *DecisionCache, kind, key string, compute func() (T, error)) (T, error) {
	if c == nil {
		return compute()
	}

	getCtx, cancel := context.WithTimeout(ctx, c.timeout)
	cached, err := pkgcache.GetTyped[T](getCtx, c.store, key)
	cancel()
	if err == nil {
		c.metrics.RecordCache(kind, true)
		return cached, nil
	}
	c.metrics.RecordCache(kind, false)
	if !errors.Is(err, pkgcache.ErrCacheMiss) {
		c.metrics.RecordError("cache_get")
		c.log.Warn("decision cache read failed, recomputing",
			logger.String("kind", kind), logger.Error(err))
	}

	val, err := compute()
	if err != nil {
		return val, err
	}

	setCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.store.Set(setCtx, key, val, c.ttl); err != nil {
		c.metrics.RecordError("cache_set")
		c.log.Warn("decision cache write failed",
			logger.String("kind", kind), logger.Error(err))
	}
	return val, nil
}

// Digest hashes the bar content so a corrected bar changes the key.
func Digest(window []models.PriceBar) string {
	h := sha256.New()
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}
	for _, b := range window {
		put(uint64(b.Timestamp.UnixNano()))
		put(math.Float64bits(b.Open))
		put(math.Float64bits(b.High))
		put(math.Float64bits(b.Low))
		put(math.Float64bits(b.Close))
		put(math.Float64bits(b.Volume))
	}
	return hex.EncodeToString(h.Sum(nil)[:12])
}

// WeightsFingerprint renders weights in sorted id order with exact float formatting.
func WeightsFingerprint(w models.WeightVector) string {
	var b strings.Builder
	for i, k := range w.Keys() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(w[k], 'g', -1, 64))
	}
	return b.String()
}
