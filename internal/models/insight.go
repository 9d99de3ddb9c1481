package models

import "time"

type CategoryTotal struct {
	Category string  `json:"category"`
	Value    float64 `json:"value"`
}

// KPIs are the headline figures of a (filtered) dataset.
type KPIs struct {
	TotalSales    float64    `json:"total_sales"`
	TotalOrders   int        `json:"total_orders"`
	TotalQuantity float64    `json:"total_quantity"`
	AvgOrderValue float64    `json:"avg_order_value"`
	Rows          int        `json:"rows"`
	From          *time.Time `json:"from,omitempty"`
	To            *time.Time `json:"to,omitempty"`
}

// Heatmap holds summed amounts by day of month (rows, 1-31) and month
// (columns, 1-12).
type Heatmap struct {
	Days   []int       `json:"days"`
	Months []int       `json:"months"`
	Values [][]float64 `json:"values"`
}

type SKUPricing struct {
	SKU             string  `json:"sku"`
	GrossSales      float64 `json:"gross_sales"`
	NetSales        float64 `json:"net_sales"`
	DiscountAmount  float64 `json:"discount_amount"`
	DiscountPercent float64 `json:"discount_percent"`
	Quantity        float64 `json:"quantity"`
}

type PricingSummary struct {
	GrossSales         float64      `json:"gross_sales"`
	NetSales           float64      `json:"net_sales"`
	TotalDiscount      float64      `json:"total_discount"`
	AvgDiscountPercent float64      `json:"avg_discount_percent"`
	Skipped            int          `json:"skipped"`
	SKUs               []SKUPricing `json:"skus"`
}

type ForecastSummary struct {
	Total      float64   `json:"total"`
	Mean       float64   `json:"mean"`
	PeakPeriod time.Time `json:"peak_period"`
	PeakValue  float64   `json:"peak_value"`
}

// Ranking is a top-N table and its low performers for one dimension.
type Ranking struct {
	Dimension     Field           `json:"dimension"`
	Column        string          `json:"column"`
	Top           []CategoryTotal `json:"top"`
	LowPerformers []CategoryTotal `json:"low_performers"`
}

// Summary is the derived insight view of one series and optionally one
// forecast. It is recomputed on every request.
type Summary struct {
	Metric         Metric           `json:"metric"`
	Growth         float64          `json:"growth_percent"`
	WeekOverWeek   *float64         `json:"week_over_week_percent,omitempty"`
	MonthOverMonth *float64         `json:"month_over_month_percent,omitempty"`
	Rankings       []Ranking        `json:"rankings"`
	Forecast       *ForecastSummary `json:"forecast,omitempty"`
}
