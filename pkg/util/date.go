package util

import (
	"strconv"
	"time"
)

var layouts = []string{time.RFC3339, time.RFC3339Nano, "2006-01-02", "2006-01-02 15:04"}

// ParseTime tries RFC3339, plain dates and unix seconds. Results are UTC.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// AlignFromTo rounds the range outward to whole bars of the given step.
func AlignFromTo(from, to time.Time, step time.Duration) (time.Time, time.Time) {
	if step <= 0 {
		return from, to
	}
	from = from.Truncate(step)
	if t := to.Truncate(step); !t.Equal(to) {
		to = t.Add(step)
	}
	return from, to
}
