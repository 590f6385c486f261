package fetcher

import (
	"bytes"
	"encoding/csv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions configures the XLSX parser.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
	SkipRows   int    // number of leading rows to drop
}

// ReadXLSX parses an in-memory XLSX workbook and returns one sheet's rows.
func ReadXLSX(content []byte, opts XLSXOptions) ([][]string, error) {
	f, err := xlsx.OpenBinary(content)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open workbook")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for i, row := range sheet.Rows {
		if i < opts.SkipRows {
			continue
		}
		rows = append(rows, rowToStrings(row))
	}
	return rows, nil
}

// XLSXToCSV converts one sheet of a workbook into CSV text so spreadsheet
// uploads can go through the same row parser as delimited files.
func XLSXToCSV(content []byte, opts XLSXOptions) ([]byte, error) {
	rows, err := ReadXLSX(content, opts)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return nil, eris.Wrap(err, "xlsx: write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, eris.Wrap(err, "xlsx: flush csv")
	}
	return buf.Bytes(), nil
}

// IsXLSX reports whether filename names a spreadsheet workbook.
func IsXLSX(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".xlsx")
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
