package forecast

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"fmcg-dashboard/internal/models"
)

// WriteCSV writes the forecast as date,predicted rows, adding lower,upper
// columns when the forecast carries bounds. Dates are ISO 8601 days.
func WriteCSV(w io.Writer, f models.Forecast) error {
	cw := csv.NewWriter(w)
	bounds := f.HasBounds()

	header := []string{"date", "predicted"}
	if bounds {
		header = append(header, "lower", "upper")
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, p := range f.Points {
		record := []string{p.Period.Format(time.DateOnly), formatValue(p.Value)}
		if bounds {
			record = append(record, formatValue(deref(p.Lower)), formatValue(deref(p.Upper)))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
