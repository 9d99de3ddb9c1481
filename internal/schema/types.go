package schema

import (
	"fmcg-dashboard/internal/models"
)

type kind int

const (
	kindText kind = iota
	kindTime
	kindNumber
)

func kindOf(f models.Field) kind {
	switch {
	case f == models.FieldDate:
		return kindTime
	case f.IsNumeric():
		return kindNumber
	default:
		return kindText
	}
}

// columnHasKind samples up to sampleSize non-empty cells and reports whether
// a strict majority parse as k. A column with no values never qualifies.
func columnHasKind(ds *models.Dataset, col int, k kind) bool {
	seen, parsed := 0, 0
	for i := 0; i < ds.Len() && seen < sampleSize; i++ {
		v := ds.Cell(i, col)
		if v == "" {
			continue
		}
		seen++
		if parses(v, k) {
			parsed++
		}
	}
	return seen > 0 && parsed*2 > seen
}

func parses(v string, k kind) bool {
	switch k {
	case kindTime:
		_, err := models.ParseTime(v)
		return err == nil
	case kindNumber:
		_, err := models.ParseNumber(v)
		return err == nil
	}
	return true
}
