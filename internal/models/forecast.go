package models

import "time"

// ForecastPoint is one projected period. Lower and Upper are only set by
// strategies that estimate uncertainty.
type ForecastPoint struct {
	Period time.Time `json:"period"`
	Value  float64   `json:"value"`
	Lower  *float64  `json:"lower,omitempty"`
	Upper  *float64  `json:"upper,omitempty"`
}

// Forecast is the projection of a series over a horizon.
type Forecast struct {
	Strategy    string          `json:"strategy"`
	Granularity Granularity     `json:"granularity"`
	Metric      Metric          `json:"metric"`
	History     int             `json:"history"`
	Points      []ForecastPoint `json:"points"`
}

// HasBounds reports whether the forecast carries uncertainty bounds.
func (f Forecast) HasBounds() bool {
	return len(f.Points) > 0 && f.Points[0].Lower != nil && f.Points[0].Upper != nil
}

// Values returns the point forecasts in order.
func (f Forecast) Values() []float64 {
	out := make([]float64, len(f.Points))
	for i, p := range f.Points {
		out[i] = p.Value
	}
	return out
}
