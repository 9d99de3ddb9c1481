package models

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	ErrEmptyValue  = errors.New("empty value")
	ErrInvalidDate = errors.New("invalid date")
)

// dateLayouts are tried in order. Numeric slash and dashed dates are read
// month first, whatever the year width.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006/01/02",
	"2006/01/02 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"01/02/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/06",
	"1/2/06 15:04",
	"01-02-06",
	"01-02-2006",
	"02-Jan-2006",
	"02-Jan-06",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2006-01",
	"20060102",
}

// ParseTime parses a timestamp cell using the supported layouts. The result
// is in UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrEmptyValue
	}
	for _, layout := range dateLayouts {
		if len(layout) != len(s) && !flexibleLayout(layout) {
			continue
		}
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// flexibleLayout reports whether a layout accepts inputs of varying length.
func flexibleLayout(layout string) bool {
	return strings.ContainsAny(layout, "TZ") || strings.HasPrefix(layout, "1/") ||
		strings.HasPrefix(layout, "2 ") || strings.HasPrefix(layout, "Jan")
}

var numberReplacer = strings.NewReplacer(
	",", "",
	" ", "",
	" ", "",
	"₹", "",
	"$", "",
	"€", "",
	"£", "",
)

// ParseNumber parses a numeric cell. Thousands separators and common currency
// symbols are ignored; a value in parentheses is negative.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrEmptyValue
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = numberReplacer.Replace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrSyntax
	}
	if negative {
		v = -v
	}
	return v, nil
}
