package aggregate

import (
	"fmt"
	"time"

	"fmcg-dashboard/internal/models"
)

// Rollup re-aggregates a series at g, which must be the same as or coarser
// than the series granularity. Rolling up to the same granularity returns an
// equal series. Weekly points are assigned to the month of their start day,
// and distinct order counts are summed, so coarser rollups of order counts
// are an upper bound.
func Rollup(s models.Series, g models.Granularity) (models.Series, error) {
	from := s.Granularity
	if from == "" {
		from = models.Day
	}
	if !g.Valid() {
		return models.Series{}, fmt.Errorf("%w: %q", ErrInvalidGranularity, g)
	}
	if g.Rank() < from.Rank() {
		return models.Series{}, fmt.Errorf("%w: %s to %s", ErrFinerGranularity, from, g)
	}

	index := make(map[time.Time]int)
	points := make([]models.Point, 0, len(s.Points))
	for _, p := range s.Points {
		period := g.Truncate(p.Period)
		i, ok := index[period]
		if !ok {
			i = len(points)
			index[period] = i
			points = append(points, models.Point{Period: period})
		}
		points[i].Amount += p.Amount
		points[i].Quantity += p.Quantity
		points[i].Orders += p.Orders
		points[i].Rows += p.Rows
	}
	sortPoints(points)
	return models.Series{Granularity: g, Points: points}, nil
}

// Fill returns a contiguous copy of s in which every missing period between
// the first and last point is present with zero values.
func Fill(s models.Series) models.Series {
	return FillLast(s, 0)
}

// FillLast is Fill restricted to the n periods ending at the last point.
// Points before that window are discarded without being walked, so an
// outlier date far in the past costs nothing. n <= 0 means no limit.
func FillLast(s models.Series, n int) models.Series {
	g := s.Granularity
	if g == "" {
		g = models.Day
	}
	out := models.Series{Granularity: g}
	if len(s.Points) == 0 {
		return out
	}
	last := s.Points[len(s.Points)-1].Period
	start := s.Points[0].Period
	next := 0
	if n > 0 {
		if cutoff := g.Add(last, -(n - 1)); start.Before(cutoff) {
			start = cutoff
			for next < len(s.Points) && s.Points[next].Period.Before(cutoff) {
				next++
			}
		}
	}
	out.Points = make([]models.Point, 0, len(s.Points)-next)
	for p := start; !p.After(last); p = g.Add(p, 1) {
		if next < len(s.Points) && s.Points[next].Period.Equal(p) {
			out.Points = append(out.Points, s.Points[next])
			next++
			continue
		}
		out.Points = append(out.Points, models.Point{Period: p})
	}
	return out
}
