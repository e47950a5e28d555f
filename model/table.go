package model

import "fmt"

// Table is the tabular argument of a step. Rows are positional; cell
// lookup by heading is provided for step implementations.
type Table struct {
	headings []string
	rows     [][]string
}

// NewTable builds a table and validates that every row matches the
// heading width.
func NewTable(headings []string, rows [][]string) (*Table, error) {
	if len(headings) == 0 {
		return nil, fmt.Errorf("table has no headings")
	}
	for i, row := range rows {
		if len(row) != len(headings) {
			return nil, fmt.Errorf("table row %d has %d cells, want %d", i+1, len(row), len(headings))
		}
	}
	t := &Table{headings: append([]string(nil), headings...)}
	for _, row := range rows {
		t.rows = append(t.rows, append([]string(nil), row...))
	}
	return t, nil
}

// Headings returns the column names in order.
func (t *Table) Headings() []string {
	return t.headings
}

// Rows returns the data rows in order.
func (t *Table) Rows() [][]string {
	return t.rows
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// RowMap returns row i keyed by heading.
func (t *Table) RowMap(i int) map[string]string {
	row := t.rows[i]
	m := make(map[string]string, len(t.headings))
	for j, heading := range t.headings {
		m[heading] = row[j]
	}
	return m
}

// Cell returns the value of the named column in row i.
func (t *Table) Cell(i int, heading string) (string, bool) {
	for j, h := range t.headings {
		if h == heading {
			return t.rows[i][j], true
		}
	}
	return "", false
}
