package models

import (
	"strings"
	"time"
)

// Dataset is an uploaded collection of transaction rows. Cells are kept as
// raw strings; typed access goes through a resolved Schema. A Dataset is
// never mutated after it has been loaded.
type Dataset struct {
	ID       string
	Name     string
	Columns  []string
	Rows     [][]string
	LoadedAt time.Time
}

// Len returns the number of transaction rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// ColumnIndex returns the position of the named column, matching
// case-insensitively, or -1.
func (d *Dataset) ColumnIndex(name string) int {
	if d == nil || name == "" {
		return -1
	}
	for i, c := range d.Columns {
		if c == name {
			return i
		}
	}
	for i, c := range d.Columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

// Cell returns the trimmed value at row i, column col. Short rows yield "".
func (d *Dataset) Cell(i, col int) string {
	if col < 0 || i < 0 || i >= len(d.Rows) {
		return ""
	}
	row := d.Rows[i]
	if col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// Subset returns a view of the dataset restricted to the given row indexes.
// Row slices are shared with the parent.
func (d *Dataset) Subset(idx []int) *Dataset {
	rows := make([][]string, 0, len(idx))
	for _, i := range idx {
		if i >= 0 && i < len(d.Rows) {
			rows = append(rows, d.Rows[i])
		}
	}
	return &Dataset{
		ID:       d.ID,
		Name:     d.Name,
		Columns:  d.Columns,
		Rows:     rows,
		LoadedAt: d.LoadedAt,
	}
}

// DatasetInfo is the JSON view of a dataset returned after upload.
type DatasetInfo struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Rows     int       `json:"rows"`
	Columns  []string  `json:"columns"`
	Schema   Schema    `json:"schema"`
	LoadedAt time.Time `json:"loaded_at"`
}
