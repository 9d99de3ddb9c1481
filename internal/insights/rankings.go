package insights

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/stat"

	"fmcg-dashboard/internal/aggregate"
	"fmcg-dashboard/internal/models"
	"fmcg-dashboard/internal/schema"
)

// DefaultTopN matches the five-per-dimension tables of the dashboard.
const DefaultTopN = 5

// lowShare is the fraction of the mean category value below which a category
// is flagged when the caller gives no threshold.
const lowShare = 0.5

// metricField returns the field a metric is computed from, or "" for the row
// count.
func metricField(m models.Metric) models.Field {
	switch m {
	case models.MetricQuantity:
		return models.FieldQuantity
	case models.MetricOrders:
		return models.FieldOrderID
	case models.MetricRows:
		return ""
	default:
		return models.FieldAmount
	}
}

// CategoryTotals sums metric m per value of the dimension column, in order of
// first appearance. Empty category cells and unparseable numbers are
// skipped; an empty numeric cell counts as zero, as in aggregate.Scan.
// Orders are counted distinctly per category.
func CategoryTotals(ds *models.Dataset, s models.Schema, dim models.Field, m models.Metric) ([]models.CategoryTotal, error) {
	required := []models.Field{dim}
	if f := metricField(m); f != "" {
		required = append(required, f)
	}
	if err := schema.Require(s, required...); err != nil {
		return nil, err
	}
	dimCol := ds.ColumnIndex(s[dim])
	if dimCol < 0 {
		return nil, fmt.Errorf("column %q not in dataset", s[dim])
	}
	valCol := -1
	if f := metricField(m); f != "" {
		if valCol = ds.ColumnIndex(s[f]); valCol < 0 {
			return nil, fmt.Errorf("column %q not in dataset", s[f])
		}
	}

	index := make(map[string]int)
	var totals []models.CategoryTotal
	orders := make(map[string]map[string]struct{})
	for i := 0; i < ds.Len(); i++ {
		category := ds.Cell(i, dimCol)
		if category == "" {
			continue
		}
		var v float64
		switch m {
		case models.MetricRows:
			v = 1
		case models.MetricOrders:
			id := ds.Cell(i, valCol)
			if id == "" {
				continue
			}
			if orders[category] == nil {
				orders[category] = make(map[string]struct{})
			}
			if _, seen := orders[category][id]; seen {
				continue
			}
			orders[category][id] = struct{}{}
			v = 1
		default:
			parsed, ok := aggregate.Number(ds.Cell(i, valCol))
			if !ok {
				continue
			}
			v = parsed
		}
		j, ok := index[category]
		if !ok {
			j = len(totals)
			index[category] = j
			totals = append(totals, models.CategoryTotal{Category: category})
		}
		totals[j].Value += v
	}
	if totals == nil {
		totals = []models.CategoryTotal{}
	}
	return totals, nil
}

// Top returns at most n totals sorted by value descending. Equal values keep
// their input order.
func Top(totals []models.CategoryTotal, n int) []models.CategoryTotal {
	sorted := slices.Clone(totals)
	slices.SortStableFunc(sorted, func(a, b models.CategoryTotal) int {
		switch {
		case a.Value > b.Value:
			return -1
		case a.Value < b.Value:
			return 1
		}
		return 0
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	if sorted == nil {
		sorted = []models.CategoryTotal{}
	}
	return sorted
}

// TopN ranks the categories of dim by metric m and keeps the first n.
func TopN(ds *models.Dataset, s models.Schema, dim models.Field, m models.Metric, n int) ([]models.CategoryTotal, error) {
	totals, err := CategoryTotals(ds, s, dim, m)
	if err != nil {
		return nil, err
	}
	return Top(totals, n), nil
}

// LowPerformers returns the categories whose value is strictly below
// threshold, lowest first. No low performers is an empty list.
func LowPerformers(totals []models.CategoryTotal, threshold float64) []models.CategoryTotal {
	low := []models.CategoryTotal{}
	for _, t := range totals {
		if t.Value < threshold {
			low = append(low, t)
		}
	}
	slices.SortStableFunc(low, func(a, b models.CategoryTotal) int {
		switch {
		case a.Value < b.Value:
			return -1
		case a.Value > b.Value:
			return 1
		}
		return 0
	})
	return low
}

// DefaultThreshold is half the mean category value.
func DefaultThreshold(totals []models.CategoryTotal) float64 {
	if len(totals) == 0 {
		return 0
	}
	values := make([]float64, len(totals))
	for i, t := range totals {
		values[i] = t.Value
	}
	return lowShare * stat.Mean(values, nil)
}

// Rank builds the ranking of one dimension. A nil threshold selects
// DefaultThreshold.
func Rank(ds *models.Dataset, s models.Schema, dim models.Field, m models.Metric, n int, threshold *float64) (models.Ranking, error) {
	totals, err := CategoryTotals(ds, s, dim, m)
	if err != nil {
		return models.Ranking{}, err
	}
	limit := DefaultThreshold(totals)
	if threshold != nil {
		limit = *threshold
	}
	return models.Ranking{
		Dimension:     dim,
		Column:        s[dim],
		Top:           Top(totals, n),
		LowPerformers: LowPerformers(totals, limit),
	}, nil
}
