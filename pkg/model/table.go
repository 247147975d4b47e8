// pkg/model/table.go
package model

import (
	"fmt"
	"strings"
)

// Cell is a single table value. Valid is false for a missing cell.
type Cell struct {
	Value string
	Valid bool
}

// Null returns a missing cell
func Null() Cell {
	return Cell{}
}

// String returns a present cell holding s
func String(s string) Cell {
	return Cell{Value: s, Valid: true}
}

// IsNull reports whether the cell is missing
func (c Cell) IsNull() bool {
	return !c.Valid
}

// Table is an in-memory, column-ordered dataset (rows = respondents)
type Table struct {
	Columns []string
	Rows    [][]Cell
}

// NewTable creates an empty table with the given header
func NewTable(columns []string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{
		Columns: cols,
		Rows:    make([][]Cell, 0),
	}
}

// NumRows returns the number of rows
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// NumColumns returns the number of columns
func (t *Table) NumColumns() int {
	return len(t.Columns)
}

// ColumnIndex returns the position of a column or -1 if absent
func (t *Table) ColumnIndex(name string) int {
	for i, col := range t.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the table contains the named column
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// AppendRow adds a row; its width must match the header
func (t *Table) AppendRow(row []Cell) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Column returns a copy of the named column's cells
func (t *Table) Column(name string) ([]Cell, bool) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	cells := make([]Cell, len(t.Rows))
	for i, row := range t.Rows {
		cells[i] = row[idx]
	}
	return cells, true
}

// AddColumn appends a column with one cell per row
func (t *Table) AddColumn(name string, cells []Cell) error {
	if t.HasColumn(name) {
		return fmt.Errorf("column %q already exists", name)
	}
	if len(cells) != len(t.Rows) {
		return fmt.Errorf("column %q has %d cells, table has %d rows", name, len(cells), len(t.Rows))
	}
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], cells[i])
	}
	return nil
}

// DropColumns removes the named columns, ignoring names that are absent
func (t *Table) DropColumns(names []string) {
	if len(names) == 0 {
		return
	}
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}

	keep := make([]int, 0, len(t.Columns))
	cols := make([]string, 0, len(t.Columns))
	for i, col := range t.Columns {
		if !drop[col] {
			keep = append(keep, i)
			cols = append(cols, col)
		}
	}

	for r, row := range t.Rows {
		newRow := make([]Cell, len(keep))
		for j, idx := range keep {
			newRow[j] = row[idx]
		}
		t.Rows[r] = newRow
	}
	t.Columns = cols
}

// MissingCount returns the number of missing cells in the whole table
func (t *Table) MissingCount() int {
	count := 0
	for _, row := range t.Rows {
		for _, c := range row {
			if !c.Valid {
				count++
			}
		}
	}
	return count
}

// ColumnMissingCount returns the number of missing cells in column idx
func (t *Table) ColumnMissingCount(idx int) int {
	count := 0
	for _, row := range t.Rows {
		if !row[idx].Valid {
			count++
		}
	}
	return count
}

// Clone returns a deep copy of the table
func (t *Table) Clone() *Table {
	clone := NewTable(t.Columns)
	clone.Rows = make([][]Cell, len(t.Rows))
	for i, row := range t.Rows {
		r := make([]Cell, len(row))
		copy(r, row)
		clone.Rows[i] = r
	}
	return clone
}

// RowKey builds a key identifying a row by full-row equality
func RowKey(row []Cell) string {
	var sb strings.Builder
	for _, c := range row {
		if c.Valid {
			sb.WriteByte('v')
			sb.WriteString(fmt.Sprintf("%d:", len(c.Value)))
			sb.WriteString(c.Value)
		} else {
			sb.WriteByte('n')
		}
		sb.WriteByte('|')
	}
	return sb.String()
}

// DuplicateCount returns how many rows equal an earlier row
func (t *Table) DuplicateCount() int {
	seen := make(map[string]struct{}, len(t.Rows))
	dups := 0
	for _, row := range t.Rows {
		key := RowKey(row)
		if _, ok := seen[key]; ok {
			dups++
			continue
		}
		seen[key] = struct{}{}
	}
	return dups
}

// Records returns the rows as strings, writing missing cells as empty strings
func (t *Table) Records() [][]string {
	records := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		rec := make([]string, len(row))
		for j, c := range row {
			if c.Valid {
				rec[j] = c.Value
			}
		}
		records[i] = rec
	}
	return records
}
