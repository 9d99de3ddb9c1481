// Package ingest reads uploaded sales files into datasets.
package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"fmcg-dashboard/internal/models"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyFile         = errors.New("file has no header row")
	ErrMalformed         = errors.New("malformed file")
)

// Format is an accepted upload format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DetectFormat picks the reader for a file name by its extension.
func DetectFormat(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".tsv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
}

// Read parses r according to the extension of name. The dataset is named
// after the file's base name.
func Read(r io.Reader, name string) (*models.Dataset, error) {
	format, err := DetectFormat(name)
	if err != nil {
		return nil, err
	}
	var ds *models.Dataset
	switch format {
	case FormatXLSX:
		ds, err = ReadXLSX(r)
	default:
		ds, err = ReadCSV(r)
	}
	if err != nil {
		return nil, err
	}
	ds.Name = filepath.Base(name)
	return ds, nil
}

// ReadCSV parses delimited text. The delimiter (comma, semicolon or tab) is
// sniffed from the header line and a UTF-8 byte order mark is dropped.
func ReadCSV(r io.Reader) (*models.Dataset, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, err
		}
	}

	cr := csv.NewReader(br)
	cr.Comma = sniffDelimiter(firstLine(br))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %w", ErrMalformed, err)
	}

	var rows [][]string
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read row: %w", ErrMalformed, err)
		}
		if blank(record) {
			continue
		}
		rows = append(rows, record)
	}
	return newDataset(header, rows)
}

// ReadXLSX parses the first worksheet of a workbook. Leading empty rows are
// skipped; the first non-empty row is the header.
func ReadXLSX(r io.Reader) (*models.Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %w", ErrMalformed, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	all, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %w", ErrMalformed, sheets[0], err)
	}

	start := 0
	for start < len(all) && blank(all[start]) {
		start++
	}
	if start == len(all) {
		return nil, ErrEmptyFile
	}
	var rows [][]string
	for _, row := range all[start+1:] {
		if !blank(row) {
			rows = append(rows, row)
		}
	}
	return newDataset(all[start], rows)
}

func newDataset(header []string, rows [][]string) (*models.Dataset, error) {
	if blank(header) {
		return nil, ErrEmptyFile
	}
	return &models.Dataset{Columns: uniqueHeaders(header), Rows: rows}, nil
}

// uniqueHeaders trims header cells, names empty ones column_N and suffixes
// repeats, compared case-insensitively, with _2, _3 and so on.
func uniqueHeaders(header []string) []string {
	out := make([]string, len(header))
	used := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "column_" + strconv.Itoa(i+1)
		}
		name := h
		for n := 2; used[strings.ToLower(name)]; n++ {
			name = h + "_" + strconv.Itoa(n)
		}
		used[strings.ToLower(name)] = true
		out[i] = name
	}
	return out
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// firstLine returns the buffered bytes of the first line of br without
// consuming them.
func firstLine(br *bufio.Reader) []byte {
	buf, _ := br.Peek(br.Size())
	if i := bytes.IndexByte(buf, '\n'); i >= 0 {
		return buf[:i]
	}
	return buf
}

func sniffDelimiter(line []byte) rune {
	best, bestCount := ',', 0
	inQuotes := false
	counts := map[rune]int{}
	for _, b := range line {
		switch b {
		case '"':
			inQuotes = !inQuotes
		case ',', ';', '\t':
			if !inQuotes {
				counts[rune(b)]++
			}
		}
	}
	for _, d := range []rune{',', ';', '\t'} {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}
