package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"HackCap/internal/domain/models"
	domrepo "HackCap/internal/domain/repository"
	pkgch "HackCap/pkg/clickhouse"
	applogger "HackCap/pkg/logger"
)

// CHPriceSource reads and writes OHLCV bars in a ClickHouse table keyed by
// (ticker, tf, ts). ReplacingMergeTree keeps re-delivered bars idempotent.
type CHPriceSource struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHPriceSource(ch *pkgch.Client, table string) *CHPriceSource {
	return &CHPriceSource{db: ch.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *CHPriceSource) SetLogger(l *applogger.Logger) { s.l = l }

// Schema returns the DDL for the bars table, for pkgch.Client.InitSchema.
func (s *CHPriceSource) Schema() []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            ticker LowCardinality(String),
            tf     LowCardinality(String),
            ts     DateTime64(3, 'UTC'),
            open   Float64,
            high   Float64,
            low    Float64,
            close  Float64,
            volume Float64
        )
        ENGINE = ReplacingMergeTree
        ORDER BY (ticker, tf, ts)
    `, s.table)}
}

func (s *CHPriceSource) GetSeries(ctx context.Context, ticker string, from, to time.Time, tf domrepo.Timeframe) (models.PriceSeries, error) {
	start := time.Now()
	const qtpl = `
        SELECT ts, open, high, low, close, volume
        FROM %s FINAL
        WHERE ticker = ? AND tf = ? AND ts >= ? AND ts <= ?
        ORDER BY ts ASC
    `
	q := fmt.Sprintf(qtpl, s.table)
	rows, err := s.db.QueryContext(ctx, q, ticker, string(tf), from.UTC(), to.UTC())
	if err != nil {
		s.logErr("clickhouse get_series query error", ticker, tf, err)
		return models.PriceSeries{}, fmt.Errorf("get series: %w", err)
	}
	defer rows.Close()

	bars, err := scanBars(rows)
	if err != nil {
		s.logErr("clickhouse get_series scan error", ticker, tf, err)
		return models.PriceSeries{}, err
	}
	if s.l != nil {
		s.l.Info("clickhouse get_series ok",
			applogger.String("table", s.table),
			applogger.String("ticker", ticker),
			applogger.String("tf", string(tf)),
			applogger.Int("rows", len(bars)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return models.PriceSeries{Ticker: ticker, Bars: bars}, nil
}

// StoreBars inserts bars in multi-row chunks to cut round-trips.
func (s *CHPriceSource) StoreBars(ctx context.Context, ticker string, tf domrepo.Timeframe, bars []models.PriceBar) error {
	for _, chunk := range chunkBars(bars, insertChunkSize) {
		q, args := insertBarsQuery(s.table, ticker, tf, chunk, questionMarks)
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.logErr("clickhouse store_bars error", ticker, tf, err)
			return fmt.Errorf("store bars: %w", err)
		}
	}
	return nil
}

func (s *CHPriceSource) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHPriceSource) logErr(msg, ticker string, tf domrepo.Timeframe, err error) {
	if s.l == nil {
		return
	}
	s.l.Error(msg,
		applogger.String("table", s.table),
		applogger.String("ticker", ticker),
		applogger.String("tf", string(tf)),
		applogger.Error(err),
	)
}

var (
	_ domrepo.PriceSource = (*CHPriceSource)(nil)
	_ domrepo.BarSink     = (*CHPriceSource)(nil)
)
