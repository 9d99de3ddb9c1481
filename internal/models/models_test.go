package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestGranularity_Truncate(t *testing.T) {
	ts := time.Date(2024, 3, 14, 17, 45, 0, 0, time.UTC) // Thursday

	assert.Equal(t, date(2024, 3, 14), Day.Truncate(ts))
	assert.Equal(t, date(2024, 3, 11), Week.Truncate(ts))
	assert.Equal(t, date(2024, 3, 1), Month.Truncate(ts))

	// Sunday belongs to the week that started the previous Monday.
	assert.Equal(t, date(2024, 3, 11), Week.Truncate(date(2024, 3, 17)))
	assert.Equal(t, date(2024, 3, 18), Week.Truncate(date(2024, 3, 18)))
}

func TestGranularity_Add(t *testing.T) {
	assert.Equal(t, date(2024, 1, 1), Month.Add(date(2023, 12, 1), 1))
	assert.Equal(t, date(2024, 12, 1), Month.Add(date(2023, 12, 1), 12))
	assert.Equal(t, date(2024, 3, 18), Week.Add(date(2024, 3, 11), 1))
	assert.Equal(t, date(2024, 3, 1), Day.Add(date(2024, 2, 29), 1))
	assert.Equal(t, date(2024, 2, 28), Day.Add(date(2024, 2, 29), -1))
}

func TestParseGranularity(t *testing.T) {
	tests := []struct {
		in      string
		want    Granularity
		wantErr bool
	}{
		{"", Month, false},
		{"day", Day, false},
		{"Weekly", Week, false},
		{" month ", Month, false},
		{"quarter", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseGranularity(tt.in, Month)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTime(t *testing.T) {
	valid := map[string]time.Time{
		"2023-01-15":           date(2023, 1, 15),
		"2023-01-15 10:30:00":  time.Date(2023, 1, 15, 10, 30, 0, 0, time.UTC),
		"2023-01-15T10:30:00Z": time.Date(2023, 1, 15, 10, 30, 0, 0, time.UTC),
		"01/15/2023":           date(2023, 1, 15),
		"1/5/2023":             date(2023, 1, 5),
		"15-Jan-2023":          date(2023, 1, 15),
		"Jan 15, 2023":         date(2023, 1, 15),
		"2023/01/15":           date(2023, 1, 15),
		"01-15-23":             date(2023, 1, 15),
		"01-15-2023":           date(2023, 1, 15),
	}
	for in, want := range valid {
		got, err := ParseTime(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%s: got %v", in, got)
	}

	for _, in := range []string{"", "not-a-date", "12.5", "2023-13-40", "999"} {
		_, err := ParseTime(in)
		assert.Error(t, err, in)
	}
}

func TestParseTime_MonthFirst(t *testing.T) {
	for _, in := range []string{"03-04-24", "03-04-2024", "03/04/2024", "3/4/24"} {
		got, err := ParseTime(in)
		require.NoError(t, err, in)
		assert.True(t, date(2024, 3, 4).Equal(got), "%s: got %v", in, got)
	}

	_, err := ParseTime("15-01-2023")
	assert.ErrorIs(t, err, ErrInvalidDate, "day-first dates are not guessed")
}

func TestParseNumber(t *testing.T) {
	valid := map[string]float64{
		"100":       100,
		" 1,250.50": 1250.5,
		"₹2,000":    2000,
		"$15":       15,
		"(20)":      -20,
		"-3.5":      -3.5,
	}
	for in, want := range valid {
		got, err := ParseNumber(in)
		require.NoError(t, err, in)
		assert.InDelta(t, want, got, 1e-9, in)
	}

	_, err := ParseNumber("")
	assert.ErrorIs(t, err, ErrEmptyValue)

	for _, in := range []string{"abc", "NaN", "Inf", "12abc"} {
		_, err := ParseNumber(in)
		assert.Error(t, err, in)
	}
}

func TestDataset_Accessors(t *testing.T) {
	ds := &Dataset{
		Columns: []string{"ORDER_DATE", "Amount"},
		Rows: [][]string{
			{"2023-01-01", " 10 "},
			{"2023-01-02"},
		},
	}

	assert.Equal(t, 0, ds.ColumnIndex("order_date"))
	assert.Equal(t, 1, ds.ColumnIndex("Amount"))
	assert.Equal(t, -1, ds.ColumnIndex("missing"))
	assert.Equal(t, "10", ds.Cell(0, 1))
	assert.Equal(t, "", ds.Cell(1, 1))
	assert.Equal(t, "", ds.Cell(5, 0))

	sub := ds.Subset([]int{1, 7})
	assert.Equal(t, 1, sub.Len())
	assert.Equal(t, "2023-01-02", sub.Cell(0, 0))
}

func TestSchema_Missing(t *testing.T) {
	s := Schema{FieldDate: "ORDER_DATE", FieldAmount: ""}
	assert.Equal(t, []Field{FieldAmount, FieldQuantity}, s.Missing(FieldDate, FieldAmount, FieldQuantity))
	assert.Empty(t, s.Missing(FieldDate))
}

func TestForecast_HasBounds(t *testing.T) {
	lo, hi := 1.0, 3.0
	assert.False(t, Forecast{}.HasBounds())
	assert.False(t, Forecast{Points: []ForecastPoint{{Value: 2}}}.HasBounds())
	assert.True(t, Forecast{Points: []ForecastPoint{{Value: 2, Lower: &lo, Upper: &hi}}}.HasBounds())
}
