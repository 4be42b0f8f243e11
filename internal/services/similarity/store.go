package similarity

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"HackCap/internal/domain/models"
	"HackCap/internal/domain/repository"
	domsvc "HackCap/internal/domain/service"
	"HackCap/internal/services/features"
	"HackCap/pkg/logger"
	"HackCap/pkg/metrics"
)

type recordKey struct {
	ticker string
	end    int64
}

// Store is an exact L2 nearest-neighbor index over similarity records.
// Writers serialize per ticker and publish copy-on-write snapshots; readers
// load the current snapshot without locking.
type Store struct {
	extractor *features.Extractor
	log       *logger.Logger
	metrics   repository.Metrics

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	publishMu sync.Mutex
	current   atomic.Pointer[Snapshot]
}

// NewStore creates an empty store using extractor for ingestion.
func NewStore(extractor *features.Extractor) *Store {
	s := &Store{
		extractor: extractor,
		log:       logger.Nop(),
		metrics:   metrics.Nop{},
		locks:     make(map[string]*sync.Mutex),
	}
	s.current.Store(&Snapshot{dim: extractor.Dim()})
	return s
}

// SetLogger sets the logger. A nil logger is ignored.
func (s *Store) SetLogger(l *logger.Logger) {
	if l != nil {
		s.log = l
	}
}

// SetMetrics sets the metrics sink. A nil sink is ignored.
func (s *Store) SetMetrics(m repository.Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// Extractor returns the feature extractor queries must use.
func (s *Store) Extractor() *features.Extractor { return s.extractor }

// Dim is the vector dimensionality of every stored record.
func (s *Store) Dim() int { return s.extractor.Dim() }

// Snapshot returns the currently published immutable view.
func (s *Store) Snapshot() *Snapshot { return s.current.Load() }

// ForTicker scopes the current snapshot to ticker.
func (s *Store) ForTicker(ticker string) domsvc.SimilarityIndex {
	return s.Snapshot().ForTicker(ticker)
}

// Query runs against the current snapshot.
func (s *Store) Query(ctx context.Context, v models.FeatureVector, k int) ([]models.Neighbor, error) {
	start := time.Now()
	defer func() { s.metrics.RecordLatency("similarity_query", time.Since(start).Seconds()) }()
	return s.Snapshot().Query(ctx, v, k)
}

// Ingest derives records for every eligible window of series and stores them,
// replacing any existing record with the same (ticker, end timestamp).
// It returns the number of records written.
func (s *Store) Ingest(ctx context.Context, ticker string, series models.PriceSeries) (int, error) {
	if ticker == "" {
		return 0, fmt.Errorf("similarity: ticker is required")
	}
	series.Ticker = ticker
	if err := series.Validate(); err != nil {
		return 0, err
	}

	lock := s.tickerLock(ticker)
	lock.Lock()
	defer lock.Unlock()

	recs, err := s.extractor.Records(series)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	snap := s.publish(recs)
	s.log.Debug("similarity records ingested",
		logger.String("ticker", ticker),
		logger.Int("records", len(recs)),
		logger.Int("total", snap.Len()),
		logger.Int("complete", snap.Complete()))
	return len(recs), nil
}

func (s *Store) tickerLock(ticker string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[ticker]
	if !ok {
		l = &sync.Mutex{}
		s.locks[ticker] = l
	}
	return l
}

func (s *Store) publish(recs []models.SimilarityRecord) *Snapshot {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	old := s.current.Load()
	replaced := make(map[recordKey]struct{}, len(recs))
	for _, r := range recs {
		replaced[keyOf(r)] = struct{}{}
	}

	merged := make([]models.SimilarityRecord, 0, len(old.records)+len(recs))
	for _, r := range old.records {
		if _, ok := replaced[keyOf(r)]; !ok {
			merged = append(merged, r)
		}
	}
	merged = append(merged, recs...)
	slices.SortFunc(merged, func(a, b models.SimilarityRecord) int {
		return cmp.Or(
			cmp.Compare(a.Vector.Ticker, b.Vector.Ticker),
			a.Vector.End.Compare(b.Vector.End),
		)
	})

	next := &Snapshot{version: old.version + 1, dim: old.dim, records: merged}
	for _, r := range merged {
		if r.Complete {
			next.complete++
		}
	}
	s.current.Store(next)
	return next
}

func keyOf(r models.SimilarityRecord) recordKey {
	return recordKey{ticker: r.Vector.Ticker, end: r.Vector.End.UnixNano()}
}

// Snapshot is an immutable published state of the store.
type Snapshot struct {
	version  uint64
	dim      int
	records  []models.SimilarityRecord
	complete int
	asOf     time.Time
	ticker   string
}

// Version increases with every publish. Zero means nothing was ingested.
func (s *Snapshot) Version() uint64 { return s.version }

// Dim is the expected query dimensionality.
func (s *Snapshot) Dim() int { return s.dim }

// Len counts stored records, complete or not.
func (s *Snapshot) Len() int { return len(s.records) }

// Complete counts records with a known outcome.
func (s *Snapshot) Complete() int { return s.complete }

// AsOf returns a view limited to outcomes resolved at or before ts, so a
// replay at ts never sees the future.
func (s *Snapshot) AsOf(ts time.Time) *Snapshot {
	view := *s
	view.asOf = ts
	return &view
}

// ForTicker returns a view limited to records of ticker.
func (s *Snapshot) ForTicker(ticker string) domsvc.SimilarityIndex {
	view := *s
	view.ticker = ticker
	return &view
}

// Bound names what a query against this view can see: publish version,
// as-of cutoff and ticker scope. Two views with equal bounds answer every
// query identically.
func (s *Snapshot) Bound() string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(s.version, 10))
	b.WriteByte('@')
	if s.asOf.IsZero() {
		b.WriteString("latest")
	} else {
		b.WriteString(strconv.FormatInt(s.asOf.UnixNano(), 10))
	}
	if s.ticker != "" {
		b.WriteByte('/')
		b.WriteString(s.ticker)
	}
	return b.String()
}

func (s *Snapshot) visible(r models.SimilarityRecord) bool {
	if !r.Complete {
		return false
	}
	if s.ticker != "" && r.Vector.Ticker != s.ticker {
		return false
	}
	return s.asOf.IsZero() || !r.ResolvedAt.After(s.asOf)
}

// Query returns up to k neighbors ordered by ascending L2 distance, then by
// earliest end timestamp, then ticker.
func (s *Snapshot) Query(ctx context.Context, v models.FeatureVector, k int) ([]models.Neighbor, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", models.ErrInvalidQuery, k)
	}
	if v.Dim() != s.dim {
		return nil, fmt.Errorf("%w: vector has %d dimensions, store has %d", models.ErrInvalidQuery, v.Dim(), s.dim)
	}
	for i, x := range v.Values {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("%w: value %d is not finite", models.ErrInvalidQuery, i)
		}
	}

	hits := make([]models.Neighbor, 0, min(s.complete, 4*k))
	for i, r := range s.records {
		if i%1024 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !s.visible(r) {
			continue
		}
		hits = append(hits, models.Neighbor{
			Ticker:   r.Vector.Ticker,
			End:      r.Vector.End,
			Distance: l2(v.Values, r.Vector.Values),
			Outcome:  r.Outcome,
		})
	}
	if len(hits) == 0 {
		return nil, models.ErrEmptyStore
	}

	slices.SortFunc(hits, func(a, b models.Neighbor) int {
		return cmp.Or(
			cmp.Compare(a.Distance, b.Distance),
			a.End.Compare(b.End),
			cmp.Compare(a.Ticker, b.Ticker),
		)
	})
	if len(hits) > k {
		hits = hits[:k:k]
	}
	return hits, nil
}

func l2(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

var (
	_ domsvc.SimilarityIndex = (*Store)(nil)
	_ domsvc.SimilarityIndex = (*Snapshot)(nil)
	_ domsvc.TickerScoper    = (*Store)(nil)
	_ domsvc.TickerScoper    = (*Snapshot)(nil)
)
