package insights

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"fmcg-dashboard/internal/models"
)

// Request gathers the inputs of one summary pass. Dataset holds the raw rows
// behind Series (already filtered) and is only needed for rankings.
type Request struct {
	Series   models.Series
	Metric   models.Metric
	Dataset  *models.Dataset
	Schema   models.Schema
	Forecast *models.Forecast

	// Dimensions to rank. Empty ranks every resolved dimension; named
	// dimensions must be resolved.
	Dimensions []models.Field
	TopN       int
	Threshold  *float64
}

// Summarize derives the insight summary of a series and, when given, its
// forecast. Nothing is cached; every call recomputes from its inputs.
func Summarize(req Request) (models.Summary, error) {
	if req.Metric == "" {
		req.Metric = models.MetricAmount
	}
	if req.TopN <= 0 {
		req.TopN = DefaultTopN
	}

	sum := models.Summary{
		Metric:   req.Metric,
		Growth:   Growth(req.Series, req.Metric),
		Rankings: []models.Ranking{},
	}
	if g := req.Series.Granularity; g.Rank() <= models.Week.Rank() {
		if v, ok := GrowthAt(req.Series, req.Metric, models.Week); ok {
			sum.WeekOverWeek = &v
		}
	}
	if v, ok := GrowthAt(req.Series, req.Metric, models.Month); ok {
		sum.MonthOverMonth = &v
	}

	if req.Dataset != nil {
		dims := req.Dimensions
		if len(dims) == 0 {
			for _, d := range models.Dimensions {
				if _, ok := req.Schema.Column(d); ok {
					dims = append(dims, d)
				}
			}
		}
		for _, d := range dims {
			r, err := Rank(req.Dataset, req.Schema, d, req.Metric, req.TopN, req.Threshold)
			if err != nil {
				return models.Summary{}, err
			}
			sum.Rankings = append(sum.Rankings, r)
		}
	}

	if req.Forecast != nil {
		sum.Forecast = SummarizeForecast(*req.Forecast)
	}
	return sum, nil
}

// SummarizeForecast returns the total, mean and peak of a forecast, or nil
// for an empty one.
func SummarizeForecast(f models.Forecast) *models.ForecastSummary {
	if len(f.Points) == 0 {
		return nil
	}
	values := f.Values()
	peak := floats.MaxIdx(values)
	return &models.ForecastSummary{
		Total:      floats.Sum(values),
		Mean:       stat.Mean(values, nil),
		PeakPeriod: f.Points[peak].Period,
		PeakValue:  values[peak],
	}
}
