package aggregate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fmcg-dashboard/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func salesDataset() *models.Dataset {
	return &models.Dataset{
		Columns: []string{"ORDER_ID", "ORDER_DATE", "CITY", "BRAND", "AMOUNT", "TOTAL_QUANTITY"},
		Rows: [][]string{
			{"O1", "2023-01-03", "Pune", "Alpha", "100", "2"},
			{"O1", "2023-01-03", "Pune", "Beta", "50", "1"},
			{"O2", "2023-01-01", "Mumbai", "Alpha", "200", "4"},
			{"O3", "2023-01-10", "Pune", "Alpha", "25.5", ""},
			{"O4", "2023-02-14", "Delhi", "Gamma", "1,000", "10"},
			{"O5", "2023-02-15", "pune", "Beta", "10", "1"},
		},
	}
}

func salesRequest(g models.Granularity) Request {
	return Request{
		DateColumn:     "ORDER_DATE",
		AmountColumn:   "AMOUNT",
		QuantityColumn: "TOTAL_QUANTITY",
		OrderColumn:    "ORDER_ID",
		Granularity:    g,
	}
}

func TestAggregate_Daily(t *testing.T) {
	res, err := Aggregate(salesDataset(), salesRequest(models.Day))
	require.NoError(t, err)

	assert.Equal(t, 6, res.Kept)
	assert.Zero(t, res.Dropped)
	require.Len(t, res.Series.Points, 5)

	first := res.Series.Points[0]
	assert.Equal(t, date(2023, 1, 1), first.Period)
	assert.Equal(t, 200.0, first.Amount)

	jan3 := res.Series.Points[1]
	assert.Equal(t, date(2023, 1, 3), jan3.Period)
	assert.Equal(t, 150.0, jan3.Amount)
	assert.Equal(t, 3.0, jan3.Quantity)
	assert.Equal(t, 1, jan3.Orders, "order O1 spans two rows")
	assert.Equal(t, 2, jan3.Rows)
}

func TestAggregate_PeriodsStrictlyIncreasing(t *testing.T) {
	for _, g := range []models.Granularity{models.Day, models.Week, models.Month} {
		t.Run(string(g), func(t *testing.T) {
			res, err := Aggregate(salesDataset(), salesRequest(g))
			require.NoError(t, err)
			require.NotEmpty(t, res.Series.Points)
			for i := 1; i < len(res.Series.Points); i++ {
				assert.True(t, res.Series.Points[i].Period.After(res.Series.Points[i-1].Period))
			}
			assert.Equal(t, g, res.Series.Granularity)
		})
	}
}

func TestAggregate_WeeklyAndMonthly(t *testing.T) {
	res, err := Aggregate(salesDataset(), salesRequest(models.Week))
	require.NoError(t, err)
	require.Len(t, res.Series.Points, 4)
	// 2023-01-01 is a Sunday, so it belongs to the week of Monday 2022-12-26.
	assert.Equal(t, date(2022, 12, 26), res.Series.Points[0].Period)
	assert.Equal(t, date(2023, 1, 2), res.Series.Points[1].Period)

	res, err = Aggregate(salesDataset(), salesRequest(models.Month))
	require.NoError(t, err)
	require.Len(t, res.Series.Points, 2)
	assert.Equal(t, date(2023, 1, 1), res.Series.Points[0].Period)
	assert.InDelta(t, 375.5, res.Series.Points[0].Amount, 1e-9)
	assert.Equal(t, 3, res.Series.Points[0].Orders)
	assert.Equal(t, date(2023, 2, 1), res.Series.Points[1].Period)
	assert.Equal(t, 1010.0, res.Series.Points[1].Amount)
}

func TestAggregate_DropsUnparseableDates(t *testing.T) {
	ds := &models.Dataset{
		Columns: []string{"Date", "Amount"},
		Rows: [][]string{
			{"2023-03-01", "10"},
			{"not a date", "10"},
			{"2023-03-02", "10"},
			{"2023-03-03", "10"},
			{"", "10"},
			{"2023-03-04", "10"},
			{"2023-13-45", "10"},
			{"2023-03-05", "10"},
			{"2023-03-06", "10"},
			{"2023-03-07", "10"},
		},
	}
	res, err := Aggregate(ds, Request{DateColumn: "Date", AmountColumn: "Amount", Granularity: models.Day})
	require.NoError(t, err)

	assert.Equal(t, 7, res.Kept)
	assert.Equal(t, 3, res.Dropped)
	assert.Equal(t, 3, res.Drops.Dates)
	assert.Len(t, res.Series.Points, 7)

	var total float64
	for _, p := range res.Series.Points {
		total += p.Amount
	}
	assert.Equal(t, 70.0, total)
}

func TestAggregate_DropsUnparseableNumbers(t *testing.T) {
	ds := &models.Dataset{
		Columns: []string{"Date", "Amount", "Qty"},
		Rows: [][]string{
			{"2023-03-01", "10", "1"},
			{"2023-03-01", "n/a", "1"},
			{"2023-03-01", "", "2"},
			{"2023-03-01", "5", "many"},
		},
	}
	res, err := Aggregate(ds, Request{DateColumn: "Date", AmountColumn: "Amount", QuantityColumn: "Qty"})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Kept)
	assert.Equal(t, Drops{Numbers: 2}, res.Drops)
	require.Len(t, res.Series.Points, 1)
	assert.Equal(t, 10.0, res.Series.Points[0].Amount)
	assert.Equal(t, 3.0, res.Series.Points[0].Quantity)
	assert.Equal(t, 2, res.Series.Points[0].Orders, "without an order column every row is an order")
}

func TestAggregate_EmptyInput(t *testing.T) {
	res, err := Aggregate(&models.Dataset{Columns: []string{"Date", "Amount"}}, Request{DateColumn: "Date", AmountColumn: "Amount"})
	require.NoError(t, err)
	assert.True(t, res.Series.Empty())
	assert.Zero(t, res.Kept)

	res, err = Aggregate(nil, Request{DateColumn: "Date", AmountColumn: "Amount"})
	require.NoError(t, err)
	assert.True(t, res.Series.Empty())
}

func TestAggregate_Filters(t *testing.T) {
	req := salesRequest(models.Month)
	req.Filters = []Filter{
		{Column: "CITY", Values: []string{"PUNE"}},
		{Column: "BRAND", Values: []string{"alpha", "beta"}},
		{Column: "ORDER_ID"},
	}
	res, err := Aggregate(salesDataset(), req)
	require.NoError(t, err)

	assert.Equal(t, 4, res.Kept)
	require.Len(t, res.Series.Points, 2)
	assert.InDelta(t, 175.5, res.Series.Points[0].Amount, 1e-9)
	assert.Equal(t, 10.0, res.Series.Points[1].Amount)
}

func TestAggregate_DateRange(t *testing.T) {
	req := salesRequest(models.Day)
	req.From = date(2023, 1, 3)
	req.To = time.Date(2023, 1, 10, 8, 30, 0, 0, time.UTC)

	res, err := Aggregate(salesDataset(), req)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Kept)
	require.Len(t, res.Series.Points, 2)
	assert.Equal(t, date(2023, 1, 3), res.Series.Points[0].Period)
	assert.Equal(t, date(2023, 1, 10), res.Series.Points[1].Period)
}

func TestAggregate_Errors(t *testing.T) {
	_, err := Aggregate(salesDataset(), Request{DateColumn: "ORDER_DATE", AmountColumn: "PRICE"})
	assert.True(t, errors.Is(err, ErrUnknownColumn))

	_, err = Aggregate(salesDataset(), Request{AmountColumn: "AMOUNT"})
	assert.True(t, errors.Is(err, ErrUnknownColumn))

	req := salesRequest("quarter")
	_, err = Aggregate(salesDataset(), req)
	assert.True(t, errors.Is(err, ErrInvalidGranularity))

	req = salesRequest(models.Day)
	req.Filters = []Filter{{Column: "REGION", Values: []string{"north"}}}
	_, err = Aggregate(salesDataset(), req)
	assert.True(t, errors.Is(err, ErrUnknownColumn))
}

func TestRequestFor(t *testing.T) {
	s := models.Schema{
		models.FieldDate:    "ORDER_DATE",
		models.FieldAmount:  "AMOUNT",
		models.FieldOrderID: "ORDER_ID",
	}
	req, err := RequestFor(s, models.Week)
	require.NoError(t, err)
	assert.Equal(t, "ORDER_DATE", req.DateColumn)
	assert.Equal(t, "AMOUNT", req.AmountColumn)
	assert.Equal(t, "ORDER_ID", req.OrderColumn)
	assert.Empty(t, req.QuantityColumn)
	assert.Equal(t, models.Week, req.Granularity)

	_, err = RequestFor(models.Schema{models.FieldDate: "d"}, models.Day)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount")
}

func TestRollup_SameGranularityIsNoop(t *testing.T) {
	for _, g := range []models.Granularity{models.Day, models.Week, models.Month} {
		t.Run(string(g), func(t *testing.T) {
			res, err := Aggregate(salesDataset(), salesRequest(g))
			require.NoError(t, err)

			again, err := Rollup(res.Series, g)
			require.NoError(t, err)
			assert.Equal(t, res.Series, again)
		})
	}
}

func TestRollup_DailyToMonthlyMatchesSinglePass(t *testing.T) {
	daily, err := Aggregate(salesDataset(), salesRequest(models.Day))
	require.NoError(t, err)
	monthly, err := Aggregate(salesDataset(), salesRequest(models.Month))
	require.NoError(t, err)

	rolled, err := Rollup(daily.Series, models.Month)
	require.NoError(t, err)
	require.Len(t, rolled.Points, len(monthly.Series.Points))
	for i, p := range rolled.Points {
		want := monthly.Series.Points[i]
		assert.Equal(t, want.Period, p.Period)
		assert.InDelta(t, want.Amount, p.Amount, 1e-9)
		assert.InDelta(t, want.Quantity, p.Quantity, 1e-9)
		assert.Equal(t, want.Rows, p.Rows)
	}
}

func TestRollup_RejectsFinerGranularity(t *testing.T) {
	s := models.Series{Granularity: models.Month, Points: []models.Point{{Period: date(2023, 1, 1), Amount: 1}}}
	_, err := Rollup(s, models.Day)
	assert.True(t, errors.Is(err, ErrFinerGranularity))

	_, err = Rollup(s, "year")
	assert.True(t, errors.Is(err, ErrInvalidGranularity))
}

func TestFill(t *testing.T) {
	s := models.Series{
		Granularity: models.Month,
		Points: []models.Point{
			{Period: date(2023, 1, 1), Amount: 10, Rows: 1},
			{Period: date(2023, 4, 1), Amount: 40, Rows: 2},
		},
	}
	filled := Fill(s)
	require.Len(t, filled.Points, 4)
	assert.Equal(t, []float64{10, 0, 0, 40}, filled.Values(models.MetricAmount))
	assert.Equal(t, date(2023, 2, 1), filled.Points[1].Period)
	assert.Equal(t, date(2023, 3, 1), filled.Points[2].Period)
	assert.Len(t, s.Points, 2, "input is not modified")

	assert.True(t, Fill(models.Series{Granularity: models.Week}).Empty())
}

func TestFillLast(t *testing.T) {
	s := models.Series{
		Granularity: models.Day,
		Points: []models.Point{
			{Period: date(1, 1, 1), Amount: 99, Rows: 1},
			{Period: date(2024, 1, 1), Amount: 10, Rows: 1},
			{Period: date(2024, 1, 3), Amount: 30, Rows: 1},
		},
	}

	filled := FillLast(s, 5)
	require.Len(t, filled.Points, 5)
	assert.Equal(t, date(2023, 12, 30), filled.Points[0].Period)
	assert.Equal(t, []float64{0, 0, 10, 0, 30}, filled.Values(models.MetricAmount))

	short := FillLast(models.Series{Granularity: models.Day, Points: s.Points[1:]}, 10)
	assert.Equal(t, []float64{10, 0, 30}, short.Values(models.MetricAmount))

	assert.Equal(t, Fill(short).Points, FillLast(short, 0).Points)
}

func TestScan(t *testing.T) {
	records, drops, err := Scan(salesDataset(), salesRequest(models.Day))
	require.NoError(t, err)
	assert.Zero(t, drops.Total())
	require.Len(t, records, 6)
	assert.Equal(t, "O4", records[4].OrderID)
	assert.Equal(t, 1000.0, records[4].Amount)
	assert.Equal(t, 4, records[4].Row)
}

func TestFilterRows(t *testing.T) {
	req := salesRequest(models.Day)
	req.Filters = []Filter{{Column: "city", Values: []string{"Pune"}}}
	out, err := FilterRows(salesDataset(), req)
	require.NoError(t, err)
	assert.Equal(t, 4, out.Len())
	assert.Equal(t, salesDataset().Columns, out.Columns)

	req.From = date(2023, 2, 1)
	out, err = FilterRows(salesDataset(), req)
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, "O5", out.Cell(0, 0))

	req.DateColumn = ""
	_, err = FilterRows(salesDataset(), req)
	assert.True(t, errors.Is(err, ErrUnknownColumn))
}

func TestFilterRows_SkipsRowsScanDrops(t *testing.T) {
	ds := salesDataset()
	ds.Rows = append(ds.Rows,
		[]string{"O6", "not-a-date", "Pune", "Alpha", "5000", "1"},
		[]string{"O7", "2023-01-05", "Pune", "Alpha", "lots", "1"},
		[]string{"O8", "2023-01-06", "Pune", "Alpha", "", "1"},
	)

	records, drops, err := Scan(ds, salesRequest(models.Day))
	require.NoError(t, err)
	out, err := FilterRows(ds, salesRequest(models.Day))
	require.NoError(t, err)

	assert.Equal(t, 1, drops.Dates)
	assert.Equal(t, 1, drops.Numbers)
	assert.Equal(t, len(records), out.Len())
	for i := 0; i < out.Len(); i++ {
		assert.NotEqual(t, "O6", out.Cell(i, 0))
		assert.NotEqual(t, "O7", out.Cell(i, 0))
	}
	assert.Equal(t, "O8", out.Cell(out.Len()-1, 0), "empty amount counts as zero")
}
