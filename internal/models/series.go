package models

import (
	"fmt"
	"strings"
	"time"
)

// Metric selects which per-period value of a series is analysed.
type Metric string

const (
	MetricAmount   Metric = "amount"
	MetricQuantity Metric = "quantity"
	MetricOrders   Metric = "orders"
	MetricRows     Metric = "rows"
)

func ParseMetric(s string, fallback Metric) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return fallback, nil
	case MetricAmount, "sales":
		return MetricAmount, nil
	case MetricQuantity, "qty":
		return MetricQuantity, nil
	case MetricOrders:
		return MetricOrders, nil
	case MetricRows, "count":
		return MetricRows, nil
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

// Point holds the aggregated values of one period.
type Point struct {
	Period   time.Time `json:"period"`
	Amount   float64   `json:"amount"`
	Quantity float64   `json:"quantity"`
	Orders   int       `json:"orders"`
	Rows     int       `json:"rows"`
}

// Value returns the metric m for the point.
func (p Point) Value(m Metric) float64 {
	switch m {
	case MetricQuantity:
		return p.Quantity
	case MetricOrders:
		return float64(p.Orders)
	case MetricRows:
		return float64(p.Rows)
	default:
		return p.Amount
	}
}

// MeanAmount is the average amount per row in the period.
func (p Point) MeanAmount() float64 {
	if p.Rows == 0 {
		return 0
	}
	return p.Amount / float64(p.Rows)
}

// Series is an ordered per-period aggregation. Periods are unique and
// strictly increasing.
type Series struct {
	Granularity Granularity `json:"granularity"`
	Points      []Point     `json:"points"`
}

func (s Series) Len() int { return len(s.Points) }

func (s Series) Empty() bool { return len(s.Points) == 0 }

// Last returns the final period start. ok is false for an empty series.
func (s Series) Last() (time.Time, bool) {
	if len(s.Points) == 0 {
		return time.Time{}, false
	}
	return s.Points[len(s.Points)-1].Period, true
}

// Values extracts metric m for every point in order.
func (s Series) Values(m Metric) []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value(m)
	}
	return out
}
