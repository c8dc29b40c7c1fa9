package splat

import (
	sferrors "github.com/sogforge/sogforge/internal/errors"
)

// Table is an ordered list of columns with the invariant that all columns
// have equal length. Tables are not copyable by value; Clone is explicit and
// Permute always allocates fresh storage, so a Table produced by a worker in
// the LOD packer's pool (C11) never aliases the table it was cut from.
type Table struct {
	columns []*Column
	index   map[string]int
}

// NewTable builds a Table from the given columns. All columns must already
// share the same length; NewTable does not enforce this at call time beyond
// what AddColumn would — callers assembling a table element-by-element
// should prefer an empty table plus repeated AddColumn calls.
func NewTable(columns ...*Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(columns))}
	for _, c := range columns {
		if err := t.AddColumn(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// RowCount returns the number of rows (the shared column length), or 0 for an
// empty table.
func (t *Table) RowCount() int {
	if len(t.columns) == 0 {
		return 0
	}
	return t.columns[0].Len()
}

// ColumnCount returns the number of columns.
func (t *Table) ColumnCount() int { return len(t.columns) }

// Columns returns the table's columns in order. The returned slice must not
// be mutated by the caller.
func (t *Table) Columns() []*Column { return t.columns }

// Column looks up a column by name, returning a SchemaMismatch error if absent.
func (t *Table) Column(name string) (*Column, error) {
	if i, ok := t.index[name]; ok {
		return t.columns[i], nil
	}
	return nil, sferrors.Newf(sferrors.SchemaMismatch, sferrors.CodeMissingColumn, "table has no column %q", name).WithColumn(name)
}

// HasColumn reports whether the table has a column with the given name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// AddColumn appends a column, which must match the table's existing row
// count (a no-op check for the first column added).
func (t *Table) AddColumn(c *Column) error {
	if _, exists := t.index[c.name]; exists {
		return sferrors.Newf(sferrors.Internal, sferrors.CodeInvariantBroken, "table already has a column named %q", c.name).WithColumn(c.name)
	}
	if len(t.columns) > 0 && c.Len() != t.RowCount() {
		return sferrors.Newf(sferrors.Internal, sferrors.CodeInvariantBroken,
			"column %q has length %d, table row count is %d", c.name, c.Len(), t.RowCount()).WithColumn(c.name)
	}
	t.index[c.name] = len(t.columns)
	t.columns = append(t.columns, c)
	return nil
}

// RemoveColumn drops the named column, if present. Removing an absent column
// is a no-op, matching spec §4.8's FilterBands ("removes columns, not rows").
func (t *Table) RemoveColumn(name string) {
	i, ok := t.index[name]
	if !ok {
		return
	}
	t.columns = append(t.columns[:i], t.columns[i+1:]...)
	delete(t.index, name)
	for n, idx := range t.index {
		if idx > i {
			t.index[n] = idx - 1
		}
	}
}

// ReadRow reads row i into a name -> f32 map.
func (t *Table) ReadRow(i int) (map[string]float32, error) {
	row := make(map[string]float32, len(t.columns))
	for _, c := range t.columns {
		v, err := c.ReadAsF32(i)
		if err != nil {
			return nil, err
		}
		row[c.name] = v
	}
	return row, nil
}

// WriteRow writes values from a name -> f32 map into row i. Columns not
// present in the map are left untouched.
func (t *Table) WriteRow(i int, row map[string]float32) error {
	for name, v := range row {
		idx, ok := t.index[name]
		if !ok {
			continue
		}
		if err := t.columns[idx].WriteF32(i, v); err != nil {
			return err
		}
	}
	return nil
}

// CloneSubset returns a new table containing deep copies of only the named columns.
func (t *Table) CloneSubset(names ...string) (*Table, error) {
	out := &Table{index: make(map[string]int, len(names))}
	for _, name := range names {
		c, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		if err := out.AddColumn(c.Clone()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Clone returns a deep copy of the entire table.
func (t *Table) Clone() *Table {
	out := &Table{index: make(map[string]int, len(t.columns))}
	for _, c := range t.columns {
		out.AddColumn(c.Clone())
	}
	return out
}

// Permute produces a new table whose row i equals the source row indices[i].
// It errors if any index is out of range for the source table. This is the
// single primitive every filter in the pipeline (C8) and every spatial
// reordering (Morton sort, LOD chunk carve) reduces to.
func (t *Table) Permute(indices []int) (*Table, error) {
	n := t.RowCount()
	for _, idx := range indices {
		if idx < 0 || idx >= n {
			return nil, sferrors.Newf(sferrors.Internal, sferrors.CodeIndexOutOfRange,
				"permute index %d out of range for table with %d rows", idx, n)
		}
	}
	out := &Table{index: make(map[string]int, len(t.columns))}
	for _, c := range t.columns {
		nc := NewColumn(c.name, c.typ, len(indices))
		size := c.typ.Size()
		for dst, src := range indices {
			copy(nc.data[dst*size:(dst+1)*size], c.data[src*size:(src+1)*size])
		}
		if err := out.AddColumn(nc); err != nil {
			return nil, err
		}
	}
	return out, nil
}
