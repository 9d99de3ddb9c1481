package insights

import (
	"errors"
	"slices"

	"github.com/shopspring/decimal"

	"fmcg-dashboard/internal/models"
	"fmcg-dashboard/internal/schema"
)

var hundred = decimal.NewFromInt(100)

// PricingFields are the columns the pricing view needs.
var PricingFields = []models.Field{models.FieldPrice, models.FieldQuantity, models.FieldDiscount, models.FieldSKU}

type skuTotals struct {
	sku      string
	gross    decimal.Decimal
	discount decimal.Decimal
	quantity decimal.Decimal
}

// Pricing computes gross sales (price × quantity), net sales (gross −
// discount) and discount percentages, overall and per SKU. Rows without a
// usable price, quantity or SKU are skipped and counted; an empty discount
// is zero. SKUs are ordered by discount amount, largest first.
func Pricing(ds *models.Dataset, s models.Schema) (models.PricingSummary, error) {
	if err := schema.Require(s, PricingFields...); err != nil {
		return models.PricingSummary{}, err
	}
	priceCol := ds.ColumnIndex(s[models.FieldPrice])
	qtyCol := ds.ColumnIndex(s[models.FieldQuantity])
	discCol := ds.ColumnIndex(s[models.FieldDiscount])
	skuCol := ds.ColumnIndex(s[models.FieldSKU])

	var (
		summary  models.PricingSummary
		gross    decimal.Decimal
		discount decimal.Decimal
		pctSum   decimal.Decimal
		priced   int
		index    = make(map[string]int)
		skus     []*skuTotals
	)
	for i := 0; i < ds.Len(); i++ {
		sku := ds.Cell(i, skuCol)
		price, errPrice := models.ParseNumber(ds.Cell(i, priceCol))
		qty, errQty := models.ParseNumber(ds.Cell(i, qtyCol))
		disc, errDisc := models.ParseNumber(ds.Cell(i, discCol))
		if errors.Is(errDisc, models.ErrEmptyValue) {
			disc, errDisc = 0, nil
		}
		if sku == "" || errPrice != nil || errQty != nil || errDisc != nil {
			summary.Skipped++
			continue
		}

		rowGross := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(qty))
		rowDisc := decimal.NewFromFloat(disc)
		gross = gross.Add(rowGross)
		discount = discount.Add(rowDisc)
		pctSum = pctSum.Add(discountPercent(rowDisc, rowGross))
		priced++

		j, ok := index[sku]
		if !ok {
			j = len(skus)
			index[sku] = j
			skus = append(skus, &skuTotals{sku: sku})
		}
		t := skus[j]
		t.gross = t.gross.Add(rowGross)
		t.discount = t.discount.Add(rowDisc)
		t.quantity = t.quantity.Add(decimal.NewFromFloat(qty))
	}

	summary.GrossSales = gross.InexactFloat64()
	summary.TotalDiscount = discount.InexactFloat64()
	summary.NetSales = gross.Sub(discount).InexactFloat64()
	if priced > 0 {
		summary.AvgDiscountPercent = pctSum.Div(decimal.NewFromInt(int64(priced))).InexactFloat64()
	}

	slices.SortStableFunc(skus, func(a, b *skuTotals) int {
		return b.discount.Cmp(a.discount)
	})
	summary.SKUs = make([]models.SKUPricing, len(skus))
	for i, t := range skus {
		summary.SKUs[i] = models.SKUPricing{
			SKU:             t.sku,
			GrossSales:      t.gross.InexactFloat64(),
			NetSales:        t.gross.Sub(t.discount).InexactFloat64(),
			DiscountAmount:  t.discount.InexactFloat64(),
			DiscountPercent: discountPercent(t.discount, t.gross).InexactFloat64(),
			Quantity:        t.quantity.InexactFloat64(),
		}
	}
	return summary, nil
}

func discountPercent(discount, gross decimal.Decimal) decimal.Decimal {
	if gross.IsZero() {
		return decimal.Zero
	}
	return discount.Div(gross).Mul(hundred)
}
