package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"HackCap/internal/domain/models"
	domrepo "HackCap/internal/domain/repository"
)

const insertChunkSize = 2000

// placeholder renders the n-th (0-based) bind parameter.
type placeholder func(n int) string

func questionMarks(int) string { return "?" }

func dollarParams(n int) string { return fmt.Sprintf("$%d", n+1) }

const barColumns = 8

// insertBarsQuery builds one multi-row INSERT for bars.
func insertBarsQuery(table, ticker string, tf domrepo.Timeframe, bars []models.PriceBar, ph placeholder) (string, []interface{}) {
	values := make([]string, 0, len(bars))
	args := make([]interface{}, 0, len(bars)*barColumns)
	for _, b := range bars {
		n := len(args)
		marks := make([]string, barColumns)
		for j := range marks {
			marks[j] = ph(n + j)
		}
		values = append(values, "("+strings.Join(marks, ", ")+")")
		args = append(args, ticker, string(tf), b.Timestamp.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume)
	}
	q := fmt.Sprintf("INSERT INTO %s (ticker, tf, ts, open, high, low, close, volume) VALUES %s", table, strings.Join(values, ","))
	return q, args
}

func chunkBars(bars []models.PriceBar, size int) [][]models.PriceBar {
	var out [][]models.PriceBar
	for start := 0; start < len(bars); start += size {
		out = append(out, bars[start:min(start+size, len(bars))])
	}
	return out
}

func scanBars(rows *sql.Rows) ([]models.PriceBar, error) {
	out := make([]models.PriceBar, 0, 1024)
	for rows.Next() {
		var b models.PriceBar
		if err := rows.Scan(&b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Timestamp = b.Timestamp.UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
