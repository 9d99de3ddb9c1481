// Package aggregate turns raw transaction rows into per-period sales series.
package aggregate

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"fmcg-dashboard/internal/models"
	"fmcg-dashboard/internal/schema"
)

var (
	ErrUnknownColumn      = errors.New("unknown column")
	ErrInvalidGranularity = errors.New("invalid granularity")
	ErrFinerGranularity   = errors.New("cannot roll up to a finer granularity")
)

// Filter keeps rows whose Column value equals one of Values, ignoring case.
// A filter with no values keeps every row.
type Filter struct {
	Column string   `json:"column"`
	Values []string `json:"values"`
}

// Request describes one aggregation pass. DateColumn and AmountColumn are
// required; QuantityColumn and OrderColumn are optional. From and To bound
// the transaction date inclusively when non-zero.
type Request struct {
	DateColumn     string
	AmountColumn   string
	QuantityColumn string
	OrderColumn    string
	Granularity    models.Granularity
	Filters        []Filter
	From           time.Time
	To             time.Time
}

// RequestFor builds a request from a resolved schema. The date and amount
// fields must be present.
func RequestFor(s models.Schema, g models.Granularity) (Request, error) {
	if err := schema.Require(s, models.FieldDate, models.FieldAmount); err != nil {
		return Request{}, err
	}
	req := Request{
		DateColumn:   s[models.FieldDate],
		AmountColumn: s[models.FieldAmount],
		Granularity:  g,
	}
	if c, ok := s.Column(models.FieldQuantity); ok {
		req.QuantityColumn = c
	}
	if c, ok := s.Column(models.FieldOrderID); ok {
		req.OrderColumn = c
	}
	return req, nil
}

// Drops counts rows skipped during parsing, by reason.
type Drops struct {
	Dates   int `json:"dates"`
	Numbers int `json:"numbers"`
}

func (d Drops) Total() int { return d.Dates + d.Numbers }

// Record is one parsed, valid transaction row.
type Record struct {
	Row      int
	Time     time.Time
	Amount   float64
	Quantity float64
	OrderID  string
}

// Result is the outcome of Aggregate.
type Result struct {
	Series  models.Series `json:"series"`
	Kept    int           `json:"kept"`
	Dropped int           `json:"dropped"`
	Drops   Drops         `json:"drops"`
}

type columns struct {
	date, amount, quantity, order int
	filters                       []filterIndex
}

type filterIndex struct {
	col    int
	values []string
}

func lookup(ds *models.Dataset, name string, required bool) (int, error) {
	if name == "" {
		if required {
			return -1, fmt.Errorf("%w: empty column name", ErrUnknownColumn)
		}
		return -1, nil
	}
	idx := ds.ColumnIndex(name)
	if idx < 0 {
		return -1, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	return idx, nil
}

func (r Request) resolve(ds *models.Dataset) (columns, error) {
	c := columns{date: -1, amount: -1, quantity: -1, order: -1}
	var err error
	if c.date, err = lookup(ds, r.DateColumn, true); err != nil {
		return c, err
	}
	if c.amount, err = lookup(ds, r.AmountColumn, true); err != nil {
		return c, err
	}
	if c.quantity, err = lookup(ds, r.QuantityColumn, false); err != nil {
		return c, err
	}
	if c.order, err = lookup(ds, r.OrderColumn, false); err != nil {
		return c, err
	}
	c.filters, err = r.resolveFilters(ds)
	return c, err
}

func (r Request) resolveFilters(ds *models.Dataset) ([]filterIndex, error) {
	var out []filterIndex
	for _, f := range r.Filters {
		if len(f.Values) == 0 {
			continue
		}
		idx, err := lookup(ds, f.Column, true)
		if err != nil {
			return nil, err
		}
		out = append(out, filterIndex{col: idx, values: f.Values})
	}
	return out, nil
}

func (c columns) keep(ds *models.Dataset, row int) bool {
	for _, f := range c.filters {
		v := ds.Cell(row, f.col)
		if !slices.ContainsFunc(f.values, func(want string) bool {
			return strings.EqualFold(strings.TrimSpace(want), v)
		}) {
			return false
		}
	}
	return true
}

func (r Request) inRange(t time.Time) bool {
	day := models.Day.Truncate(t)
	if !r.From.IsZero() && day.Before(models.Day.Truncate(r.From)) {
		return false
	}
	if !r.To.IsZero() && day.After(models.Day.Truncate(r.To)) {
		return false
	}
	return true
}

// Scan parses every row that passes the request's filters. Rows with an
// unparseable date, or a non-empty amount or quantity that is not a number,
// are dropped and counted; empty numeric cells count as zero.
func Scan(ds *models.Dataset, req Request) ([]Record, Drops, error) {
	var drops Drops
	if ds == nil {
		return nil, drops, nil
	}
	cols, err := req.resolve(ds)
	if err != nil {
		return nil, drops, err
	}

	records := make([]Record, 0, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		if !cols.keep(ds, i) {
			continue
		}
		t, err := models.ParseTime(ds.Cell(i, cols.date))
		if err != nil {
			drops.Dates++
			continue
		}
		if !req.inRange(t) {
			continue
		}
		amount, ok := Number(ds.Cell(i, cols.amount))
		if !ok {
			drops.Numbers++
			continue
		}
		var qty float64
		if cols.quantity >= 0 {
			if qty, ok = Number(ds.Cell(i, cols.quantity)); !ok {
				drops.Numbers++
				continue
			}
		}
		rec := Record{Row: i, Time: t, Amount: amount, Quantity: qty}
		if cols.order >= 0 {
			rec.OrderID = ds.Cell(i, cols.order)
		}
		records = append(records, rec)
	}
	return records, drops, nil
}

// Number parses a numeric cell the way Scan does: an empty cell is zero and
// anything else must be a number.
func Number(s string) (float64, bool) {
	v, err := models.ParseNumber(s)
	if errors.Is(err, models.ErrEmptyValue) {
		return 0, true
	}
	return v, err == nil
}

type bucket struct {
	point  models.Point
	orders map[string]struct{}
}

// Aggregate groups the dataset into one point per period present in the
// filtered rows, sorted by period. A dataset with no valid rows yields an
// empty series.
func Aggregate(ds *models.Dataset, req Request) (Result, error) {
	if req.Granularity == "" {
		req.Granularity = models.Day
	}
	if !req.Granularity.Valid() {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidGranularity, req.Granularity)
	}
	records, drops, err := Scan(ds, req)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Series:  Group(records, req.Granularity, req.OrderColumn != ""),
		Kept:    len(records),
		Dropped: drops.Total(),
		Drops:   drops,
	}, nil
}

// Group buckets parsed records by period. When distinctOrders is false each
// row counts as one order.
func Group(records []Record, g models.Granularity, distinctOrders bool) models.Series {
	buckets := make(map[time.Time]*bucket)
	for _, rec := range records {
		period := g.Truncate(rec.Time)
		b := buckets[period]
		if b == nil {
			b = &bucket{point: models.Point{Period: period}, orders: make(map[string]struct{})}
			buckets[period] = b
		}
		b.point.Amount += rec.Amount
		b.point.Quantity += rec.Quantity
		b.point.Rows++
		if distinctOrders {
			if rec.OrderID != "" {
				b.orders[rec.OrderID] = struct{}{}
			}
		} else {
			b.point.Orders++
		}
	}

	points := make([]models.Point, 0, len(buckets))
	for _, b := range buckets {
		if distinctOrders {
			b.point.Orders = len(b.orders)
		}
		points = append(points, b.point)
	}
	sortPoints(points)
	return models.Series{Granularity: g, Points: points}
}

func sortPoints(points []models.Point) {
	slices.SortFunc(points, func(a, b models.Point) int {
		return a.Period.Compare(b.Period)
	})
}

// FilterRows returns the raw rows that Scan keeps: rows passing the
// request's filters and date range whose date and numeric cells parse.
// Category views built on the subset therefore agree with the series.
func FilterRows(ds *models.Dataset, req Request) (*models.Dataset, error) {
	if ds == nil {
		return &models.Dataset{}, nil
	}
	records, _, err := Scan(ds, req)
	if err != nil {
		return nil, err
	}
	idx := make([]int, len(records))
	for i, rec := range records {
		idx[i] = rec.Row
	}
	return ds.Subset(idx), nil
}
