// Package schema maps the columns of an uploaded dataset onto canonical sales
// fields.
package schema

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"

	"fmcg-dashboard/internal/models"
)

const (
	sampleSize = 200

	// fuzzyThreshold is the largest edit distance, relative to the longer
	// name, accepted for a near-miss header such as "ORDR_DATE".
	fuzzyThreshold = 0.2
	minFuzzyLength = 4
)

// synonyms lists accepted normalized header names per field, most specific
// first.
var synonyms = map[models.Field][]string{
	models.FieldDate: {
		"order_date", "date", "orderdate", "transaction_date", "invoice_date",
		"sale_date", "sales_date", "bill_date", "txn_date", "timestamp", "ds", "day",
	},
	models.FieldAmount: {
		"amount", "sales_amount", "total_amount", "net_amount", "sale_amount",
		"sales", "total_sales", "revenue", "net_sales", "value", "line_total", "total",
	},
	models.FieldQuantity: {
		"total_quantity", "quantity", "qty", "units", "units_sold", "volume", "pieces", "cases",
	},
	models.FieldPrice: {
		"price", "unit_price", "selling_price", "list_price", "price_per_unit", "mrp", "rate",
	},
	models.FieldDiscount: {
		"discount", "discount_amount", "total_discount", "discount_value", "disc",
	},
	models.FieldOrderID: {
		"order_id", "orderid", "order_no", "order_number", "invoice_id", "invoice_no",
		"transaction_id", "bill_no",
	},
	models.FieldSKU: {
		"sku", "sku_code", "sku_id", "sku_name", "item_code", "product_code", "product_id",
		"product", "product_name", "item",
	},
	models.FieldCity: {"city", "city_name", "town"},
	models.FieldWarehouse: {
		"warehouse", "warehouse_name", "depot", "distribution_center", "dc",
	},
	models.FieldBrand: {"brand", "brand_name", "manufacturer"},
	models.FieldOutlet: {
		"outlet", "outlet_name", "outlet_id", "store", "store_name", "retailer", "shop",
		"customer", "customer_name",
	},
}

// Method describes how a column was matched to a field.
type Method string

const (
	MethodExact    Method = "exact"
	MethodContains Method = "contains"
	MethodFuzzy    Method = "fuzzy"
)

type Match struct {
	Field  models.Field `json:"field"`
	Column string       `json:"column"`
	Method Method       `json:"method"`
}

// Report is the full outcome of a resolution pass.
type Report struct {
	Schema    models.Schema  `json:"schema"`
	Matches   []Match        `json:"matches"`
	Ambiguous []models.Field `json:"ambiguous,omitempty"`
}

// Resolve maps each requested field (all canonical fields when none are
// given) to a dataset column. Fields without a confident match are absent.
func Resolve(ds *models.Dataset, fields ...models.Field) models.Schema {
	return ResolveReport(ds, fields...).Schema
}

// ResolveReport is Resolve with match details.
func ResolveReport(ds *models.Dataset, fields ...models.Field) Report {
	report := Report{Schema: models.Schema{}}
	if ds == nil || len(ds.Columns) == 0 {
		return report
	}

	wanted := requested(fields)
	normalized := make([]string, len(ds.Columns))
	for i, c := range ds.Columns {
		normalized[i] = Normalize(c)
	}
	claimed := make(map[int]bool)
	typeOK := make(map[int]map[kind]bool)

	compatible := func(col int, f models.Field) bool {
		k := kindOf(f)
		if k == kindText {
			return true
		}
		if typeOK[col] == nil {
			typeOK[col] = make(map[kind]bool)
		}
		ok, seen := typeOK[col][k]
		if !seen {
			ok = columnHasKind(ds, col, k)
			typeOK[col][k] = ok
		}
		return ok
	}

	for _, f := range wanted {
		col, method, ambiguous := bestColumn(f, normalized, claimed, compatible)
		if ambiguous {
			report.Ambiguous = append(report.Ambiguous, f)
			continue
		}
		if col < 0 {
			continue
		}
		claimed[col] = true
		report.Schema[f] = ds.Columns[col]
		report.Matches = append(report.Matches, Match{Field: f, Column: ds.Columns[col], Method: method})
	}
	return report
}

type candidate struct {
	col   int
	score float64
}

// bestColumn runs the matching tiers in order and returns the first tier
// that yields a unique best compatible column.
func bestColumn(f models.Field, headers []string, claimed map[int]bool, compatible func(int, models.Field) bool) (int, Method, bool) {
	names := synonyms[f]
	tiers := []struct {
		method Method
		score  func(header string) (float64, bool)
	}{
		{MethodExact, func(h string) (float64, bool) {
			for rank, s := range names {
				if h == s {
					return float64(rank), true
				}
			}
			return 0, false
		}},
		{MethodContains, func(h string) (float64, bool) {
			for rank, s := range names {
				if len(s) >= minFuzzyLength && containsToken(h, s) {
					return float64(rank), true
				}
			}
			return 0, false
		}},
		{MethodFuzzy, func(h string) (float64, bool) {
			best, found := 1.0, false
			for _, s := range names {
				if len(s) < minFuzzyLength {
					continue
				}
				if r := ratio(h, s); r <= fuzzyThreshold && r < best {
					best, found = r, true
				}
			}
			return best, found
		}},
	}

	for _, tier := range tiers {
		var cands []candidate
		for i, h := range headers {
			if claimed[i] {
				continue
			}
			score, ok := tier.score(h)
			if !ok || !compatible(i, f) {
				continue
			}
			cands = append(cands, candidate{col: i, score: score})
		}
		if len(cands) == 0 {
			continue
		}
		sort.SliceStable(cands, func(a, b int) bool { return cands[a].score < cands[b].score })
		if len(cands) > 1 && cands[0].score == cands[1].score {
			return -1, tier.method, true
		}
		return cands[0].col, tier.method, false
	}
	return -1, "", false
}

func requested(fields []models.Field) []models.Field {
	if len(fields) == 0 {
		return models.AllFields
	}
	want := make(map[models.Field]bool, len(fields))
	for _, f := range fields {
		want[f] = true
	}
	out := make([]models.Field, 0, len(fields))
	for _, f := range models.AllFields {
		if want[f] {
			out = append(out, f)
			delete(want, f)
		}
	}
	// Unknown fields keep caller order after the canonical ones.
	for _, f := range fields {
		if want[f] {
			out = append(out, f)
			delete(want, f)
		}
	}
	return out
}

// Normalize lowercases a header and folds every run of non-alphanumeric
// characters into a single underscore.
func Normalize(header string) string {
	var b strings.Builder
	sep := false
	for _, r := range strings.TrimSpace(strings.ToLower(header)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if sep && b.Len() > 0 {
				b.WriteByte('_')
			}
			sep = false
			b.WriteRune(r)
			continue
		}
		sep = true
	}
	return b.String()
}

func containsToken(header, name string) bool {
	if header == name {
		return true
	}
	return strings.HasPrefix(header, name+"_") ||
		strings.HasSuffix(header, "_"+name) ||
		strings.Contains(header, "_"+name+"_")
}

func ratio(a, b string) float64 {
	longest := max(len(a), len(b))
	if longest == 0 {
		return 0
	}
	return float64(levenshtein.ComputeDistance(a, b)) / float64(longest)
}
