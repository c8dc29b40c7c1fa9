package splat

import "testing"

func col(name string, vals ...float32) *Column {
	c := NewColumn(name, F32, len(vals))
	for i, v := range vals {
		c.WriteF32(i, v)
	}
	return c
}

func TestCombineUnionsColumnsAndZeroFills(t *testing.T) {
	a, err := NewTable(col("x", 1, 2), col("y", 10, 20))
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewTable(col("x", 3), col("z", 100))
	if err != nil {
		t.Fatal(err)
	}

	out, err := Combine([]*Table{a, b})
	if err != nil {
		t.Fatal(err)
	}
	if out.RowCount() != 3 {
		t.Fatalf("expected 3 rows, got %d", out.RowCount())
	}
	if out.ColumnCount() != 3 {
		t.Fatalf("expected 3 columns (x,y,z), got %d", out.ColumnCount())
	}

	x, _ := out.Column("x")
	for i, want := range []float32{1, 2, 3} {
		v, _ := x.ReadAsF32(i)
		if v != want {
			t.Errorf("x[%d] = %v, want %v", i, v, want)
		}
	}

	y, _ := out.Column("y")
	wantY := []float32{10, 20, 0}
	for i, want := range wantY {
		v, _ := y.ReadAsF32(i)
		if v != want {
			t.Errorf("y[%d] = %v, want %v", i, v, want)
		}
	}

	z, _ := out.Column("z")
	wantZ := []float32{0, 0, 100}
	for i, want := range wantZ {
		v, _ := z.ReadAsF32(i)
		if v != want {
			t.Errorf("z[%d] = %v, want %v", i, v, want)
		}
	}
}

func TestCombineSingleTablePassesThrough(t *testing.T) {
	a, err := NewTable(col("x", 1, 2))
	if err != nil {
		t.Fatal(err)
	}
	out, err := Combine([]*Table{a})
	if err != nil {
		t.Fatal(err)
	}
	if out != a {
		t.Fatal("expected the single input table to be returned as-is")
	}
}

func TestCombineEmptyListReturnsEmptyTable(t *testing.T) {
	out, err := Combine(nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.RowCount() != 0 || out.ColumnCount() != 0 {
		t.Fatalf("expected empty table, got rows=%d cols=%d", out.RowCount(), out.ColumnCount())
	}
}
