package models

import (
	"fmt"
	"strings"
	"time"
)

// Granularity is the size of the time bucket used for aggregation.
type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
)

// ParseGranularity accepts day, week or month (and a few common aliases).
// An empty string yields the fallback.
func ParseGranularity(s string, fallback Granularity) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return fallback, nil
	case "day", "daily", "d":
		return Day, nil
	case "week", "weekly", "w":
		return Week, nil
	case "month", "monthly", "m":
		return Month, nil
	}
	return "", fmt.Errorf("unknown granularity %q", s)
}

// Truncate returns the start of the period containing t, in UTC. Weeks start
// on Monday.
func (g Granularity) Truncate(t time.Time) time.Time {
	t = t.UTC()
	y, m, d := t.Date()
	switch g {
	case Month:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	case Week:
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
}

// Add moves a period start n periods forward (or backward for negative n).
func (g Granularity) Add(t time.Time, n int) time.Time {
	switch g {
	case Month:
		return t.AddDate(0, n, 0)
	case Week:
		return t.AddDate(0, 0, 7*n)
	default:
		return t.AddDate(0, 0, n)
	}
}

// Rank orders granularities from finest to coarsest.
func (g Granularity) Rank() int {
	switch g {
	case Day:
		return 0
	case Week:
		return 1
	case Month:
		return 2
	}
	return -1
}

// Valid reports whether g is one of the supported granularities.
func (g Granularity) Valid() bool {
	return g.Rank() >= 0
}
