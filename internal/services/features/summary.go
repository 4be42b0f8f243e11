package features

import (
	"fmt"
	"sort"
	"strings"

	"HackCap/internal/domain/models"
)

// Granularity selects the summary bucket.
type Granularity string

const (
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

// ParseGranularity accepts daily, weekly or monthly (case-insensitive).
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case Daily, Weekly, Monthly:
		return g, nil
	default:
		return "", fmt.Errorf("unknown granularity %q", s)
	}
}

// PeriodSummary aggregates the bars of one calendar bucket.
type PeriodSummary struct {
	Ticker      string      `json:"ticker"`
	Granularity Granularity `json:"granularity"`
	Period      string      `json:"period"`
	Open        float64     `json:"open"`
	High        float64     `json:"high"`
	Low         float64     `json:"low"`
	Close       float64     `json:"close"`
	MeanClose   float64     `json:"mean_close"`
	Count       int         `json:"count"`
}

// Summarize buckets bars by UTC calendar day, ISO week or month, in period order.
func Summarize(series models.PriceSeries, g Granularity) []PeriodSummary {
	if series.Len() == 0 {
		return nil
	}
	byKey := make(map[string]*PeriodSummary)
	sums := make(map[string]float64)
	for _, b := range series.Bars {
		key := periodKey(b, g)
		s, ok := byKey[key]
		if !ok {
			s = &PeriodSummary{
				Ticker: series.Ticker, Granularity: g, Period: key,
				Open: b.Open, High: b.High, Low: b.Low,
			}
			byKey[key] = s
		}
		s.High = max(s.High, b.High)
		s.Low = min(s.Low, b.Low)
		s.Close = b.Close
		s.Count++
		sums[key] += b.Close
	}

	out := make([]PeriodSummary, 0, len(byKey))
	for key, s := range byKey {
		s.MeanClose = sums[key] / float64(s.Count)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out
}

func periodKey(b models.PriceBar, g Granularity) string {
	ts := b.Timestamp.UTC()
	switch g {
	case Weekly:
		y, w := ts.ISOWeek()
		return fmt.Sprintf("%d-W%02d", y, w)
	case Monthly:
		return ts.Format("2006-01")
	default:
		return ts.Format("2006-01-02")
	}
}
