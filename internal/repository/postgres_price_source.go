package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"HackCap/internal/domain/models"
	domrepo "HackCap/internal/domain/repository"
	applogger "HackCap/pkg/logger"
	"HackCap/pkg/postgres"
)

// PGPriceSource serves bars from a PostgreSQL table with a
// (ticker, tf, ts) primary key. Re-inserted bars overwrite older values.
type PGPriceSource struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewPGPriceSource(pg *postgres.Client, table string) *PGPriceSource {
	return &PGPriceSource{db: pg.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *PGPriceSource) SetLogger(l *applogger.Logger) { s.l = l }

// InitSchema creates the bars table if missing.
func (s *PGPriceSource) InitSchema(ctx context.Context) error {
	q := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            ticker TEXT NOT NULL,
            tf     TEXT NOT NULL,
            ts     TIMESTAMPTZ NOT NULL,
            open   DOUBLE PRECISION NOT NULL,
            high   DOUBLE PRECISION NOT NULL,
            low    DOUBLE PRECISION NOT NULL,
            close  DOUBLE PRECISION NOT NULL,
            volume DOUBLE PRECISION NOT NULL,
            PRIMARY KEY (ticker, tf, ts)
        )`, s.table)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *PGPriceSource) GetSeries(ctx context.Context, ticker string, from, to time.Time, tf domrepo.Timeframe) (models.PriceSeries, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT ts, open, high, low, close, volume
        FROM %s
        WHERE ticker = $1 AND tf = $2 AND ts >= $3 AND ts <= $4
        ORDER BY ts ASC`, s.table)
	rows, err := s.db.QueryContext(ctx, q, ticker, string(tf), from.UTC(), to.UTC())
	if err != nil {
		s.logErr("postgres get_series query error", ticker, tf, err)
		return models.PriceSeries{}, fmt.Errorf("get series: %w", err)
	}
	defer rows.Close()

	bars, err := scanBars(rows)
	if err != nil {
		s.logErr("postgres get_series scan error", ticker, tf, err)
		return models.PriceSeries{}, err
	}
	if s.l != nil {
		s.l.Info("postgres get_series ok",
			applogger.String("table", s.table),
			applogger.String("ticker", ticker),
			applogger.String("tf", string(tf)),
			applogger.Int("rows", len(bars)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return models.PriceSeries{Ticker: ticker, Bars: bars}, nil
}

// StoreBars upserts bars in chunks inside one transaction.
func (s *PGPriceSource) StoreBars(ctx context.Context, ticker string, tf domrepo.Timeframe, bars []models.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// 8 params per row keeps a 2000-row chunk under the 65535 bind limit
	for _, chunk := range chunkBars(bars, insertChunkSize) {
		q, args := insertBarsQuery(s.table, ticker, tf, chunk, dollarParams)
		q += ` ON CONFLICT (ticker, tf, ts) DO UPDATE SET
            open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
            close = EXCLUDED.close, volume = EXCLUDED.volume`
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			s.logErr("postgres store_bars error", ticker, tf, err)
			return fmt.Errorf("store bars: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *PGPriceSource) logErr(msg, ticker string, tf domrepo.Timeframe, err error) {
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
	_ domrepo.PriceSource = (*PGPriceSource)(nil)
	_ domrepo.BarSink     = (*PGPriceSource)(nil)
)
