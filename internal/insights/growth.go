// Package insights derives comparative figures from aggregated series and
// raw rows: growth, rankings, KPIs, pricing and forecast summaries.
package insights

import (
	"fmcg-dashboard/internal/aggregate"
	"fmcg-dashboard/internal/models"
)

// PeriodGrowth is the percentage change from prev to cur. It is 0 when prev
// is 0, whatever cur is.
func PeriodGrowth(prev, cur float64) float64 {
	if prev == 0 {
		return 0
	}
	return (cur - prev) / prev * 100
}

// Growth compares the last two periods of s on metric m. Series shorter than
// two periods have no growth.
func Growth(s models.Series, m models.Metric) float64 {
	n := len(s.Points)
	if n < 2 {
		return 0
	}
	return PeriodGrowth(s.Points[n-2].Value(m), s.Points[n-1].Value(m))
}

// GrowthAt rolls s up to g and returns the growth of its last two periods.
// ok is false when s is coarser than g or the rollup has fewer than two
// periods.
func GrowthAt(s models.Series, m models.Metric, g models.Granularity) (float64, bool) {
	rolled, err := aggregate.Rollup(s, g)
	if err != nil || rolled.Len() < 2 {
		return 0, false
	}
	return Growth(rolled, m), true
}

// GrowthSeries returns the period-over-period growth of every point of s,
// with 0 for the first period.
func GrowthSeries(s models.Series, m models.Metric) []float64 {
	out := make([]float64, len(s.Points))
	for i := 1; i < len(s.Points); i++ {
		out[i] = PeriodGrowth(s.Points[i-1].Value(m), s.Points[i].Value(m))
	}
	return out
}
