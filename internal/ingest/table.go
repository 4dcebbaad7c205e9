package ingest

import "strings"

// Table is an uploaded file decoded into a header and string cells.
// Every row has exactly len(Header) cells.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// NewTable builds a table with trimmed header names and rows padded or cut to the header width.
func NewTable(name string, header []string, rows [][]string) *Table {
	h := make([]string, len(header))
	for i, c := range header {
		h[i] = strings.TrimSpace(c)
	}
	t := &Table{Name: name, Header: h, Rows: make([][]string, 0, len(rows))}
	for _, r := range rows {
		t.Append(r)
	}
	return t
}

// Append copies rec into the table, normalizing its length.
func (t *Table) Append(rec []string) {
	row := make([]string, len(t.Header))
	copy(row, rec)
	t.Rows = append(t.Rows, row)
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Column returns the index of the column whose trimmed name equals name exactly.
func (t *Table) Column(name string) (int, bool) {
	name = strings.TrimSpace(name)
	for i, h := range t.Header {
		if strings.TrimSpace(h) == name {
			return i, true
		}
	}
	return -1, false
}

// Value returns the trimmed cell at (row, col) or "" when out of range.
func (t *Table) Value(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[row][col])
}

// Head returns up to n rows for previews.
func (t *Table) Head(n int) [][]string {
	if n <= 0 || n > len(t.Rows) {
		n = len(t.Rows)
	}
	out := make([][]string, n)
	for i := 0; i < n; i++ {
		out[i] = append([]string(nil), t.Rows[i]...)
	}
	return out
}
