// Package forecast projects an aggregated sales series over a horizon of
// future periods.
package forecast

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"fmcg-dashboard/internal/aggregate"
	"fmcg-dashboard/internal/models"
)

// Strategy selects a forecasting model.
type Strategy string

const (
	StrategySeasonal Strategy = "seasonal"
	StrategyTree     Strategy = "tree"
)

// Strategies lists the supported strategies in display order.
var Strategies = []Strategy{StrategySeasonal, StrategyTree}

var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrInvalidHorizon   = errors.New("invalid forecast horizon")
	ErrUnknownStrategy  = errors.New("unknown forecast strategy")
	ErrOutOfRange       = errors.New("forecast runs past the supported calendar")
)

// InsufficientDataError reports that a series is too short for a strategy.
type InsufficientDataError struct {
	Strategy Strategy
	Need     int
	Have     int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s forecast needs at least %d periods, have %d", e.Strategy, e.Need, e.Have)
}

func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// ParseStrategy accepts a strategy name or one of its aliases. An empty
// string yields the fallback.
func ParseStrategy(s string, fallback Strategy) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return fallback, nil
	case "seasonal", "seasonal-decomposition", "decomposition":
		return StrategySeasonal, nil
	case "tree", "tree-regression", "forest", "random-forest", "rf":
		return StrategyTree, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// Options tune the forecasting strategies.
type Options struct {
	MaxHorizon int
	MaxHistory int
	Trees      int
	Seed       uint64
	// Interval is the coverage of the seasonal uncertainty band, in (0, 1).
	Interval float64
}

func DefaultOptions() Options {
	return Options{
		MaxHorizon: 365,
		MaxHistory: 1095,
		Trees:      100,
		Seed:       42,
		Interval:   0.8,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxHorizon <= 0 {
		o.MaxHorizon = d.MaxHorizon
	}
	if o.MaxHistory <= 0 {
		o.MaxHistory = d.MaxHistory
	}
	if o.Trees <= 0 {
		o.Trees = d.Trees
	}
	if o.Interval <= 0 || o.Interval >= 1 {
		o.Interval = d.Interval
	}
	return o
}

// Forecaster fits a model to a series and projects metric m over horizon
// periods. Every call refits from scratch.
type Forecaster interface {
	Strategy() Strategy
	Forecast(s models.Series, m models.Metric, horizon int) (models.Forecast, error)
}

// New returns the forecaster for strategy.
func New(strategy Strategy, opts Options) (Forecaster, error) {
	opts = opts.withDefaults()
	switch strategy {
	case StrategySeasonal:
		return &seasonal{opts: opts}, nil
	case StrategyTree:
		return &forest{opts: opts}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
}

// maxYear is the last year a forecast period may fall in; later dates have
// no YYYY-MM-DD form.
const maxYear = 9999

// history is a gap-filled, length-bounded view of a series ready for fitting.
type history struct {
	granularity models.Granularity
	last        time.Time
	values      []float64
}

func prepare(strategy Strategy, s models.Series, m models.Metric, horizon int, opts Options) (history, error) {
	if horizon < 1 || horizon > opts.MaxHorizon {
		return history{}, fmt.Errorf("%w: %d (must be between 1 and %d)", ErrInvalidHorizon, horizon, opts.MaxHorizon)
	}
	if s.Len() < 2 {
		return history{}, &InsufficientDataError{Strategy: strategy, Need: 2, Have: s.Len()}
	}
	filled := aggregate.FillLast(s, opts.MaxHistory)
	last, _ := filled.Last()
	if end := filled.Granularity.Add(last, horizon); end.Year() > maxYear {
		return history{}, fmt.Errorf("%w: %d periods after %s ends after year %d",
			ErrOutOfRange, horizon, last.Format(time.DateOnly), maxYear)
	}
	return history{granularity: filled.Granularity, last: last, values: filled.Values(m)}, nil
}

// futurePeriods returns the horizon period starts that follow last.
func futurePeriods(g models.Granularity, last time.Time, horizon int) []time.Time {
	out := make([]time.Time, horizon)
	for h := range out {
		out[h] = g.Add(last, h+1)
	}
	return out
}

func newForecast(strategy Strategy, h history, m models.Metric, horizon int) models.Forecast {
	return models.Forecast{
		Strategy:    string(strategy),
		Granularity: h.granularity,
		Metric:      m,
		History:     len(h.values),
		Points:      make([]models.ForecastPoint, 0, horizon),
	}
}
