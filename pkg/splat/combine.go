package splat

// Combine concatenates tables into one, unioning columns by (name, type)
// (spec §4.12 step 4): a column present in only some inputs is zero-filled
// for the rows contributed by tables that lack it. Grounded on
// _examples/original_source/src/op/combine.cpp.
func Combine(tables []*Table) (*Table, error) {
	if len(tables) == 0 {
		return NewTable()
	}
	if len(tables) == 1 {
		return tables[0], nil
	}

	type colKey struct {
		name string
		typ  ElementType
	}
	var order []colKey
	seen := make(map[colKey]bool)
	for _, t := range tables {
		for _, c := range t.Columns() {
			k := colKey{c.Name(), c.Type()}
			if !seen[k] {
				seen[k] = true
				order = append(order, k)
			}
		}
	}

	totalRows := 0
	for _, t := range tables {
		totalRows += t.RowCount()
	}

	out := make([]*Column, len(order))
	for i, k := range order {
		out[i] = NewColumn(k.name, k.typ, totalRows)
	}

	rowOffset := 0
	for _, t := range tables {
		n := t.RowCount()
		for i, k := range order {
			src, err := t.Column(k.name)
			if err != nil || src.Type() != k.typ {
				continue // column absent in this input: leave the zero-fill in place
			}
			dst := out[i]
			elemSize := k.typ.Size()
			copy(dst.data[rowOffset*elemSize:(rowOffset+n)*elemSize], src.data[:n*elemSize])
		}
		rowOffset += n
	}

	return NewTable(out...)
}
