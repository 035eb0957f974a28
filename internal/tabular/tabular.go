package tabular

import (
	"fmt"
	"slices"
)

// Record is a single row keyed by column name. Values are plain strings;
// numeric interpretation is the caller's concern.
type Record map[string]string

// Clone returns an independent copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is an ordered collection of records with a stable column order.
// Columns appear in first-seen order; rows keep their append order.
type Table struct {
	columns []string
	rows    []Record
}

// New returns an empty table with the given initial column order.
func New(columns ...string) *Table {
	t := &Table{}
	for _, c := range columns {
		t.ensureColumn(c)
	}
	return t
}

// Columns returns the column names in order. The slice is a copy.
func (t *Table) Columns() []string {
	return slices.Clone(t.columns)
}

// Len reports the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Append adds a row. Keys not yet known become new trailing columns in
// sorted order so repeated appends stay deterministic.
func (t *Table) Append(rec Record) {
	unknown := make([]string, 0)
	for k := range rec {
		if !slices.Contains(t.columns, k) {
			unknown = append(unknown, k)
		}
	}
	slices.Sort(unknown)
	for _, k := range unknown {
		t.columns = append(t.columns, k)
	}
	t.rows = append(t.rows, rec.Clone())
}

// Row returns row i. The returned record is the table's own storage;
// mutating it mutates the table.
func (t *Table) Row(i int) Record {
	return t.rows[i]
}

// Get returns the cell at row i, column name, or "" when the row has no
// value for that column.
func (t *Table) Get(i int, column string) string {
	return t.rows[i][column]
}

// Set stores value at row i, column name, registering the column if new.
func (t *Table) Set(i int, column, value string) {
	t.ensureColumn(column)
	t.rows[i][column] = value
}

// Equal reports whether two tables have identical column order, row count,
// and cell values. Cells missing from a row compare as empty strings.
func (t *Table) Equal(other *Table) bool {
	if other == nil || len(t.rows) != len(other.rows) || !slices.Equal(t.columns, other.columns) {
		return false
	}
	for i := range t.rows {
		for _, c := range t.columns {
			if t.rows[i][c] != other.rows[i][c] {
				return false
			}
		}
	}
	return true
}

// Validate checks structural soundness: no empty or duplicate column names.
func (t *Table) Validate() error {
	seen := make(map[string]struct{}, len(t.columns))
	for _, c := range t.columns {
		if c == "" {
			return fmt.Errorf("empty column name")
		}
		if _, dup := seen[c]; dup {
			return fmt.Errorf("duplicate column %q", c)
		}
		seen[c] = struct{}{}
	}
	return nil
}

func (t *Table) ensureColumn(name string) {
	if !slices.Contains(t.columns, name) {
		t.columns = append(t.columns, name)
	}
}
