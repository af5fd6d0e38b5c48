// Package features holds per-nucleus feature rows and the tabular
// operations the aggregator and CSV writer need.
package features

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Prefix is the namespace token prepended to every feature column to
// disambiguate feature columns from metadata columns added downstream.
const Prefix = "Feature."

// Table is an ordered collection of numeric feature rows sharing one
// column set.
type Table struct {
	columns []string
	rows    [][]float64
}

// NewTable creates an empty table with the given column names.
func NewTable(columns []string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{columns: cols}
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	return t.columns
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Row returns the i-th row.
func (t *Table) Row(i int) []float64 {
	return t.rows[i]
}

// Append adds one row. The row length must match the column count.
func (t *Table) Append(row []float64) error {
	if len(row) != len(t.columns) {
		return fmt.Errorf("row has %d values, table has %d columns", len(row), len(t.columns))
	}
	t.rows = append(t.rows, row)
	return nil
}

// ApplyPrefix namespaces every column with Prefix. Columns that already
// carry the prefix are left untouched, so reapplying is safe.
func (t *Table) ApplyPrefix() {
	for i, col := range t.columns {
		if strings.HasPrefix(col, Prefix) {
			continue
		}
		t.columns[i] = Prefix + col
	}
}

// Concat concatenates tables in order into one table with a fresh row
// index. All non-empty inputs must share the same column set. An empty
// input set yields an empty table rather than an error: a slide with no
// eligible tiles still produces a (headerless) feature file.
func Concat(tables []*Table) (*Table, error) {
	var out *Table
	for _, tbl := range tables {
		if tbl == nil {
			continue
		}
		if out == nil {
			out = NewTable(tbl.columns)
		} else if tbl.Len() > 0 && !sameColumns(out.columns, tbl.columns) {
			return nil, fmt.Errorf("column mismatch: %v vs %v", out.columns, tbl.columns)
		}
		out.rows = append(out.rows, tbl.rows...)
	}
	if out == nil {
		out = NewTable(nil)
	}
	return out, nil
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// WriteCSV writes the table with a leading row-index column. The index
// restarts at 0 regardless of any per-tile indices the rows once had.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := append([]string{""}, t.columns...)
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, len(t.columns)+1)
	for i, row := range t.rows {
		record[0] = strconv.Itoa(i)
		for j, v := range row {
			record[j+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the table to a file path.
func (t *Table) WriteCSVFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := t.WriteCSV(f); err != nil {
		return fmt.Errorf("failed to write feature CSV: %w", err)
	}
	return nil
}
