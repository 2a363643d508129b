package table

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrNoColumns is returned when a table is requested with an empty schema.
	ErrNoColumns = errors.New("no columns requested")
	// ErrMissingColumn is returned by operations that require a column the table does not carry.
	ErrMissingColumn = errors.New("missing column")
)

// Record is a single decoded flow record: attribute name to normalized value.
type Record map[string]any

// Table is an ordered, column-oriented collection of flow records sharing a schema.
// Columns can be added but are never removed; rows are only removed by Filter.
type Table struct {
	names []string
	index map[string]int
	cols  [][]any
}

// New creates an empty table with the given ordered schema.
func New(names ...string) *Table {
	t := &Table{index: make(map[string]int, len(names))}
	for _, n := range names {
		if _, dup := t.index[n]; dup {
			continue
		}
		t.index[n] = len(t.names)
		t.names = append(t.names, n)
		t.cols = append(t.cols, nil)
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if len(t.cols) == 0 {
		return 0
	}
	return len(t.cols[0])
}

// Columns returns a copy of the ordered schema.
func (t *Table) Columns() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Has reports whether every named column is present.
func (t *Table) Has(names ...string) bool {
	for _, n := range names {
		if _, ok := t.index[n]; !ok {
			return false
		}
	}
	return true
}

// Column returns the values of a column, or nil and false if it is absent.
// The returned slice is shared with the table.
func (t *Table) Column(name string) ([]any, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.cols[i], true
}

// Value returns a single cell.
func (t *Table) Value(name string, row int) (any, bool) {
	col, ok := t.Column(name)
	if !ok || row < 0 || row >= len(col) {
		return nil, false
	}
	return col[row], true
}

// Row returns the values of a row in schema order.
func (t *Table) Row(row int) []any {
	out := make([]any, len(t.cols))
	for i, c := range t.cols {
		out[i] = c[row]
	}
	return out
}

// Append adds a row. The number of values must match the schema.
func (t *Table) Append(values ...any) error {
	if len(values) != len(t.cols) {
		return fmt.Errorf("row has %d values, table has %d columns", len(values), len(t.cols))
	}
	for i, v := range values {
		t.cols[i] = append(t.cols[i], v)
	}
	return nil
}

// SetColumn adds a column, or replaces it if it already exists.
// The number of values must match the number of rows.
func (t *Table) SetColumn(name string, values []any) error {
	if len(t.cols) > 0 && len(values) != t.Len() {
		return fmt.Errorf("column %s has %d values, table has %d rows", name, len(values), t.Len())
	}
	if i, ok := t.index[name]; ok {
		t.cols[i] = values
		return nil
	}
	t.index[name] = len(t.names)
	t.names = append(t.names, name)
	t.cols = append(t.cols, values)
	return nil
}

// Filter keeps only the rows for which keep returns true, in place.
// It returns the number of rows removed.
func (t *Table) Filter(keep func(row int) bool) int {
	n := t.Len()
	w := 0
	for r := 0; r < n; r++ {
		if !keep(r) {
			continue
		}
		if w != r {
			for _, c := range t.cols {
				c[w] = c[r]
			}
		}
		w++
	}
	for i := range t.cols {
		clear(t.cols[i][w:])
		t.cols[i] = t.cols[i][:w]
	}
	return n - w
}

// Take returns a new table holding the given rows in the given order.
func (t *Table) Take(rows []int) *Table {
	out := New(t.names...)
	for i, c := range t.cols {
		nc := make([]any, len(rows))
		for j, r := range rows {
			nc[j] = c[r]
		}
		out.cols[i] = nc
	}
	return out
}

// Clone returns a shallow copy with independent column slices.
func (t *Table) Clone() *Table {
	rows := make([]int, t.Len())
	for i := range rows {
		rows[i] = i
	}
	return t.Take(rows)
}

// SortedBy returns a new table stably sorted by the given columns in ascending order.
func (t *Table) SortedBy(names ...string) (*Table, error) {
	keys := make([][]any, len(names))
	for i, n := range names {
		col, ok := t.Column(n)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, n)
		}
		keys[i] = col
	}
	rows := make([]int, t.Len())
	for i := range rows {
		rows[i] = i
	}
	sort.SliceStable(rows, func(a, b int) bool {
		for _, k := range keys {
			if c := Compare(k[rows[a]], k[rows[b]]); c != 0 {
				return c < 0
			}
		}
		return false
	})
	return t.Take(rows), nil
}
