package insights

import (
	"fmcg-dashboard/internal/aggregate"
	"fmcg-dashboard/internal/models"
)

// KPIs computes the headline figures over parsed records. Without an order
// column (distinctOrders false) every record counts as one order. The
// average order value is 0 when there are no orders.
func KPIs(records []aggregate.Record, distinctOrders bool) models.KPIs {
	var k models.KPIs
	orders := make(map[string]struct{})
	for i, r := range records {
		k.TotalSales += r.Amount
		k.TotalQuantity += r.Quantity
		if distinctOrders {
			if r.OrderID != "" {
				orders[r.OrderID] = struct{}{}
			}
		} else {
			k.TotalOrders++
		}
		if i == 0 || r.Time.Before(*k.From) {
			t := r.Time
			k.From = &t
		}
		if i == 0 || r.Time.After(*k.To) {
			t := r.Time
			k.To = &t
		}
	}
	if distinctOrders {
		k.TotalOrders = len(orders)
	}
	k.Rows = len(records)
	if k.TotalOrders > 0 {
		k.AvgOrderValue = k.TotalSales / float64(k.TotalOrders)
	}
	return k
}

// Heatmap sums amounts by day of month and month of year.
func Heatmap(records []aggregate.Record) models.Heatmap {
	h := models.Heatmap{
		Days:   make([]int, 31),
		Months: make([]int, 12),
		Values: make([][]float64, 31),
	}
	for d := range h.Days {
		h.Days[d] = d + 1
		h.Values[d] = make([]float64, 12)
	}
	for m := range h.Months {
		h.Months[m] = m + 1
	}
	for _, r := range records {
		h.Values[r.Time.Day()-1][int(r.Time.Month())-1] += r.Amount
	}
	return h
}
