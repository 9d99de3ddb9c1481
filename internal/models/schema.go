package models

// Field is a canonical logical attribute of a sales row, independent of how
// the uploaded file names its columns.
type Field string

const (
	FieldDate      Field = "date"
	FieldAmount    Field = "amount"
	FieldQuantity  Field = "quantity"
	FieldOrderID   Field = "order_id"
	FieldSKU       Field = "sku"
	FieldDiscount  Field = "discount"
	FieldPrice     Field = "price"
	FieldCity      Field = "city"
	FieldWarehouse Field = "warehouse"
	FieldBrand     Field = "brand"
	FieldOutlet    Field = "outlet"
)

// AllFields lists every canonical field in resolution order. Typed fields come
// first so they claim their columns before the free-text dimensions.
var AllFields = []Field{
	FieldDate,
	FieldAmount,
	FieldQuantity,
	FieldPrice,
	FieldDiscount,
	FieldOrderID,
	FieldSKU,
	FieldCity,
	FieldWarehouse,
	FieldBrand,
	FieldOutlet,
}

// Dimensions are the categorical fields that can be filtered and ranked.
var Dimensions = []Field{FieldCity, FieldWarehouse, FieldBrand, FieldOutlet, FieldSKU}

// IsNumeric reports whether values of the field must parse as numbers.
func (f Field) IsNumeric() bool {
	switch f {
	case FieldAmount, FieldQuantity, FieldDiscount, FieldPrice:
		return true
	}
	return false
}

// IsDimension reports whether the field is categorical.
func (f Field) IsDimension() bool {
	for _, d := range Dimensions {
		if d == f {
			return true
		}
	}
	return false
}

// Schema maps canonical fields to the column names found in a dataset.
// Fields that could not be resolved are absent from the map.
type Schema map[Field]string

// Column returns the resolved column for f and whether it was found.
func (s Schema) Column(f Field) (string, bool) {
	c, ok := s[f]
	return c, ok && c != ""
}

// Missing returns the subset of fields that are not resolved, in the order
// given.
func (s Schema) Missing(fields ...Field) []Field {
	var missing []Field
	for _, f := range fields {
		if _, ok := s.Column(f); !ok {
			missing = append(missing, f)
		}
	}
	return missing
}
