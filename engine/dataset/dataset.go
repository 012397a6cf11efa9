// Package dataset reads tabular chart data (CSV or JSON) into a string Table that
// the procedural generators turn into geometry.
package dataset

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrUnknownColumn reports a column lookup by a name the table does not carry.
var ErrUnknownColumn = errors.New("dataset: unknown column")

// Table is a rectangular grid of string cells. Every row has exactly len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Reader decodes one data source format into a Table.
type Reader interface {
	// Read decodes the full contents of r.
	//
	// Parameters:
	//   - r: the source to decode
	//
	// Returns:
	//   - *Table: the decoded table
	//   - error: error if the source is malformed or empty
	Read(r io.Reader) (*Table, error)
}

// ColumnIndex returns the position of the named column or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns the cells of the named column, top to bottom.
//
// Parameters:
//   - name: the column name
//
// Returns:
//   - []string: the column's cells
//   - error: ErrUnknownColumn if no such column exists
func (t *Table) Column(name string) ([]string, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Floats converts the named column to numbers. Blank cells read as zero.
//
// Parameters:
//   - name: the column name
//
// Returns:
//   - []float32: one value per row
//   - error: ErrUnknownColumn, or an error naming the first cell that is not a number
func (t *Table) Floats(name string) ([]float32, error) {
	cells, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(cells))
	for i, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		v, err := strconv.ParseFloat(c, 32)
		if err != nil {
			return nil, fmt.Errorf("dataset: column %q row %d: %w", name, i, err)
		}
		out[i] = float32(v)
	}
	return out, nil
}

// Sum groups the value column by the label column and totals each group, in first-seen label order.
//
// Parameters:
//   - label: the grouping column
//   - value: the numeric column to total
//
// Returns:
//   - []string: the distinct labels
//   - []float32: the total per label
//   - error: error if either column is missing or a value is not a number
func (t *Table) Sum(label, value string) ([]string, []float32, error) {
	labels, err := t.Column(label)
	if err != nil {
		return nil, nil, err
	}
	values, err := t.Floats(value)
	if err != nil {
		return nil, nil, err
	}

	var keys []string
	totals := make(map[string]float32)
	for i, l := range labels {
		if _, ok := totals[l]; !ok {
			keys = append(keys, l)
		}
		totals[l] += values[i]
	}
	sums := make([]float32, len(keys))
	for i, k := range keys {
		sums[i] = totals[k]
	}
	return keys, sums, nil
}

// NumericColumns returns the names of every column whose non-blank cells all parse as numbers.
func (t *Table) NumericColumns() []string {
	var out []string
	for _, c := range t.Columns {
		if _, err := t.Floats(c); err == nil {
			out = append(out, c)
		}
	}
	return out
}

// defaultColumns names n columns "Column0".."Column<n-1>".
func defaultColumns(n int) []string {
	cols := make([]string, n)
	for i := range cols {
		cols[i] = fmt.Sprintf("Column%d", i)
	}
	return cols
}

// fit pads or truncates a row to width cells.
func fit(row []string, width int) []string {
	if len(row) == width {
		return row
	}
	out := make([]string, width)
	copy(out, row)
	return out
}
