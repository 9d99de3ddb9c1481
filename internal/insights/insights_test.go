package insights

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fmcg-dashboard/internal/aggregate"
	"fmcg-dashboard/internal/models"
	"fmcg-dashboard/internal/schema"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func series(g models.Granularity, start time.Time, amounts ...float64) models.Series {
	s := models.Series{Granularity: g}
	for i, a := range amounts {
		s.Points = append(s.Points, models.Point{Period: g.Add(start, i), Amount: a, Rows: 1, Orders: 1})
	}
	return s
}

func salesRows() (*models.Dataset, models.Schema) {
	ds := &models.Dataset{
		Columns: []string{"ORDER_ID", "ORDER_DATE", "CITY", "BRAND", "SKU", "AMOUNT", "QTY", "PRICE", "DISCOUNT"},
		Rows: [][]string{
			{"O1", "2023-01-01", "Pune", "Alpha", "S1", "100", "2", "50", "10"},
			{"O1", "2023-01-01", "Pune", "Beta", "S2", "40", "4", "10", ""},
			{"O2", "2023-01-02", "Mumbai", "Alpha", "S1", "300", "6", "50", "30"},
			{"O3", "2023-02-15", "Delhi", "Gamma", "S3", "40", "1", "40", "0"},
			{"O4", "2023-02-16", "", "Gamma", "S3", "5", "1", "abc", "1"},
			{"O5", "2023-03-31", "Nagpur", "Beta", "", "20", "1", "20", "2"},
		},
	}
	s := models.Schema{
		models.FieldOrderID:  "ORDER_ID",
		models.FieldDate:     "ORDER_DATE",
		models.FieldCity:     "CITY",
		models.FieldBrand:    "BRAND",
		models.FieldSKU:      "SKU",
		models.FieldAmount:   "AMOUNT",
		models.FieldQuantity: "QTY",
		models.FieldPrice:    "PRICE",
		models.FieldDiscount: "DISCOUNT",
	}
	return ds, s
}

func TestPeriodGrowth(t *testing.T) {
	assert.Equal(t, 0.0, PeriodGrowth(0, 500))
	assert.Equal(t, 0.0, PeriodGrowth(0, -3))
	assert.Equal(t, 0.0, PeriodGrowth(0, 0))
	assert.Equal(t, 50.0, PeriodGrowth(100, 150))
	assert.Equal(t, -25.0, PeriodGrowth(200, 150))
}

func TestGrowth(t *testing.T) {
	s := series(models.Month, day(2023, 1, 1), 80, 100, 120)
	assert.InDelta(t, 20.0, Growth(s, models.MetricAmount), 1e-9)
	assert.Equal(t, 0.0, Growth(s, models.MetricOrders))

	assert.Equal(t, 0.0, Growth(series(models.Day, day(2023, 1, 1), 5), models.MetricAmount))
	assert.Equal(t, 0.0, Growth(models.Series{}, models.MetricAmount))
	assert.Equal(t, 0.0, Growth(series(models.Day, day(2023, 1, 1), 0, 42), models.MetricAmount))

	assert.Equal(t, []float64{0, 25, 20}, GrowthSeries(s, models.MetricAmount))
}

func TestGrowthAt(t *testing.T) {
	// Mondays 2023-01-02 and 2023-01-09 start the two weeks.
	s := series(models.Day, day(2023, 1, 2), 10, 10, 10, 10, 10, 10, 10, 20, 20, 20, 20, 20, 20, 20)
	v, ok := GrowthAt(s, models.MetricAmount, models.Week)
	require.True(t, ok)
	assert.InDelta(t, 100.0, v, 1e-9)

	_, ok = GrowthAt(s, models.MetricAmount, models.Month)
	assert.False(t, ok, "a single month has no growth")

	_, ok = GrowthAt(series(models.Month, day(2023, 1, 1), 1, 2), models.MetricAmount, models.Week)
	assert.False(t, ok)
}

func TestCategoryTotals(t *testing.T) {
	ds, s := salesRows()
	totals, err := CategoryTotals(ds, s, models.FieldCity, models.MetricAmount)
	require.NoError(t, err)
	assert.Equal(t, []models.CategoryTotal{
		{Category: "Pune", Value: 140},
		{Category: "Mumbai", Value: 300},
		{Category: "Delhi", Value: 40},
		{Category: "Nagpur", Value: 20},
	}, totals)

	orders, err := CategoryTotals(ds, s, models.FieldCity, models.MetricOrders)
	require.NoError(t, err)
	assert.Equal(t, 1.0, orders[0].Value, "O1 appears twice in Pune")

	rows, err := CategoryTotals(ds, s, models.FieldBrand, models.MetricRows)
	require.NoError(t, err)
	assert.Equal(t, []models.CategoryTotal{
		{Category: "Alpha", Value: 2},
		{Category: "Beta", Value: 2},
		{Category: "Gamma", Value: 2},
	}, rows)

	_, err = CategoryTotals(ds, s, models.FieldWarehouse, models.MetricAmount)
	assert.True(t, errors.Is(err, schema.ErrMissingColumns))
}

func TestCategoryTotals_EmptyCellCountsAsZero(t *testing.T) {
	ds, s := salesRows()
	ds.Rows = append(ds.Rows,
		[]string{"O6", "2023-04-01", "Surat", "Alpha", "S1", "", "", "10", "0"},
		[]string{"O7", "2023-04-02", "Indore", "Alpha", "S1", "n/a", "1", "10", "0"},
	)

	totals, err := CategoryTotals(ds, s, models.FieldCity, models.MetricAmount)
	require.NoError(t, err)
	assert.Contains(t, totals, models.CategoryTotal{Category: "Surat", Value: 0})
	assert.NotContains(t, totals, models.CategoryTotal{Category: "Indore", Value: 0})
	assert.Len(t, totals, 5)
}

func TestTop(t *testing.T) {
	totals := []models.CategoryTotal{
		{Category: "a", Value: 10},
		{Category: "b", Value: 30},
		{Category: "c", Value: 10},
		{Category: "d", Value: 20},
	}
	assert.Equal(t, []models.CategoryTotal{
		{Category: "b", Value: 30},
		{Category: "d", Value: 20},
		{Category: "a", Value: 10},
	}, Top(totals, 3))

	all := Top(totals, 10)
	assert.Len(t, all, 4)
	assert.Equal(t, "c", all[3].Category, "ties keep first-encountered order")
	assert.Equal(t, "a", totals[0].Category, "input is not reordered")

	assert.Empty(t, Top(nil, 5))
	assert.NotNil(t, Top(nil, 5))
	assert.Empty(t, Top(totals, 0))
}

func TestTopN(t *testing.T) {
	ds, s := salesRows()
	top, err := TopN(ds, s, models.FieldBrand, models.MetricAmount, 2)
	require.NoError(t, err)
	assert.Equal(t, []models.CategoryTotal{
		{Category: "Alpha", Value: 400},
		{Category: "Beta", Value: 60},
	}, top)
}

func TestLowPerformers(t *testing.T) {
	totals := []models.CategoryTotal{
		{Category: "a", Value: 50},
		{Category: "b", Value: 5},
		{Category: "c", Value: 20},
		{Category: "d", Value: 20},
	}
	assert.Equal(t, []models.CategoryTotal{
		{Category: "b", Value: 5},
		{Category: "c", Value: 20},
		{Category: "d", Value: 20},
	}, LowPerformers(totals, 21))

	none := LowPerformers(totals, 5)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	assert.InDelta(t, 11.875, DefaultThreshold(totals), 1e-9)
	assert.Zero(t, DefaultThreshold(nil))
}

func TestKPIs(t *testing.T) {
	records := []aggregate.Record{
		{Time: day(2023, 1, 5), Amount: 100, Quantity: 2, OrderID: "O1"},
		{Time: day(2023, 1, 1), Amount: 50, Quantity: 1, OrderID: "O1"},
		{Time: day(2023, 2, 1), Amount: 150, Quantity: 3, OrderID: "O2"},
	}
	k := KPIs(records, true)
	assert.Equal(t, 300.0, k.TotalSales)
	assert.Equal(t, 2, k.TotalOrders)
	assert.Equal(t, 6.0, k.TotalQuantity)
	assert.Equal(t, 150.0, k.AvgOrderValue)
	assert.Equal(t, 3, k.Rows)
	require.NotNil(t, k.From)
	require.NotNil(t, k.To)
	assert.Equal(t, day(2023, 1, 1), *k.From)
	assert.Equal(t, day(2023, 2, 1), *k.To)

	assert.Equal(t, 3, KPIs(records, false).TotalOrders)

	empty := KPIs(nil, true)
	assert.Zero(t, empty.AvgOrderValue)
	assert.Nil(t, empty.From)
}

func TestHeatmap(t *testing.T) {
	h := Heatmap([]aggregate.Record{
		{Time: day(2023, 1, 31), Amount: 10},
		{Time: day(2024, 1, 31), Amount: 5},
		{Time: day(2023, 12, 1), Amount: 7},
	})
	require.Len(t, h.Values, 31)
	require.Len(t, h.Values[0], 12)
	assert.Equal(t, 1, h.Days[0])
	assert.Equal(t, 31, h.Days[30])
	assert.Equal(t, 12, h.Months[11])
	assert.Equal(t, 15.0, h.Values[30][0])
	assert.Equal(t, 7.0, h.Values[0][11])
}

func TestPricing(t *testing.T) {
	ds, s := salesRows()
	p, err := Pricing(ds, s)
	require.NoError(t, err)

	// Row 5 has an unparseable price and row 6 no SKU.
	assert.Equal(t, 2, p.Skipped)
	assert.InDelta(t, 100+40+300+40, p.GrossSales, 1e-9)
	assert.InDelta(t, 40, p.TotalDiscount, 1e-9)
	assert.InDelta(t, 440, p.NetSales, 1e-9)
	assert.InDelta(t, (10.0+0+10+0)/4, p.AvgDiscountPercent, 1e-9)

	require.Len(t, p.SKUs, 3)
	assert.Equal(t, "S1", p.SKUs[0].SKU)
	assert.InDelta(t, 400, p.SKUs[0].GrossSales, 1e-9)
	assert.InDelta(t, 40, p.SKUs[0].DiscountAmount, 1e-9)
	assert.InDelta(t, 10, p.SKUs[0].DiscountPercent, 1e-9)
	assert.InDelta(t, 8, p.SKUs[0].Quantity, 1e-9)
	assert.Equal(t, "S2", p.SKUs[1].SKU)
	assert.Equal(t, "S3", p.SKUs[2].SKU)

	delete(s, models.FieldDiscount)
	_, err = Pricing(ds, s)
	var mc *schema.MissingColumnsError
	require.True(t, errors.As(err, &mc))
	assert.Equal(t, []models.Field{models.FieldDiscount}, mc.Missing)
}

func TestSummarizeForecast(t *testing.T) {
	assert.Nil(t, SummarizeForecast(models.Forecast{}))

	f := models.Forecast{Points: []models.ForecastPoint{
		{Period: day(2024, 1, 1), Value: 10},
		{Period: day(2024, 2, 1), Value: 30},
		{Period: day(2024, 3, 1), Value: 20},
	}}
	sum := SummarizeForecast(f)
	require.NotNil(t, sum)
	assert.Equal(t, 60.0, sum.Total)
	assert.Equal(t, 20.0, sum.Mean)
	assert.Equal(t, day(2024, 2, 1), sum.PeakPeriod)
	assert.Equal(t, 30.0, sum.PeakValue)
}

func TestSummarize(t *testing.T) {
	ds, s := salesRows()
	res, err := aggregate.Aggregate(ds, aggregate.Request{
		DateColumn:   "ORDER_DATE",
		AmountColumn: "AMOUNT",
		OrderColumn:  "ORDER_ID",
		Granularity:  models.Day,
	})
	require.NoError(t, err)
	fc := models.Forecast{Points: []models.ForecastPoint{{Period: day(2023, 4, 1), Value: 5}}}

	sum, err := Summarize(Request{Series: res.Series, Dataset: ds, Schema: s, Forecast: &fc, TopN: 2})
	require.NoError(t, err)

	assert.Equal(t, models.MetricAmount, sum.Metric)
	assert.InDelta(t, 300.0, sum.Growth, 1e-9)
	require.NotNil(t, sum.MonthOverMonth)
	assert.InDelta(t, PeriodGrowth(45, 20), *sum.MonthOverMonth, 1e-9)
	require.NotNil(t, sum.WeekOverWeek)

	require.Len(t, sum.Rankings, 3, "city, brand and sku are resolved")
	assert.Equal(t, models.FieldCity, sum.Rankings[0].Dimension)
	assert.Len(t, sum.Rankings[0].Top, 2)
	assert.Equal(t, "Mumbai", sum.Rankings[0].Top[0].Category)
	require.NotNil(t, sum.Forecast)
	assert.Equal(t, 5.0, sum.Forecast.Total)

	_, err = Summarize(Request{Series: res.Series, Dataset: ds, Schema: s, Dimensions: []models.Field{models.FieldOutlet}})
	assert.True(t, errors.Is(err, schema.ErrMissingColumns))

	monthly, err := aggregate.Rollup(res.Series, models.Month)
	require.NoError(t, err)
	sum, err = Summarize(Request{Series: monthly})
	require.NoError(t, err)
	assert.Nil(t, sum.WeekOverWeek)
	assert.NotNil(t, sum.MonthOverMonth)
	assert.Empty(t, sum.Rankings)
	assert.Nil(t, sum.Forecast)
}
