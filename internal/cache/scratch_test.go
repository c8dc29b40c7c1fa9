package cache

import (
	"testing"

	"github.com/sogforge/sogforge/pkg/splat"
)

func buildScratchTable(t *testing.T, n int) *splat.Table {
	t.Helper()
	cols := make([]*splat.Column, 0, len(splat.RequiredColumns))
	for _, name := range splat.RequiredColumns {
		c := splat.NewColumn(name, splat.F32, n)
		for r := 0; r < n; r++ {
			if err := c.WriteF32(r, float32(r)*0.5); err != nil {
				t.Fatal(err)
			}
		}
		cols = append(cols, c)
	}
	tbl, err := splat.NewTable(cols...)
	if err != nil {
		t.Fatal(err)
	}
	return tbl
}

func TestScratchCacheSpillAndLoadRoundTrip(t *testing.T) {
	sc, err := NewScratchCache(t.TempDir(), 1024*1024)
	if err != nil {
		t.Fatalf("new scratch cache: %v", err)
	}
	defer sc.Close()

	tbl := buildScratchTable(t, 10)
	if err := sc.Spill("unit_0", tbl); err != nil {
		t.Fatalf("spill: %v", err)
	}

	got, err := sc.Load("unit_0")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.RowCount() != tbl.RowCount() {
		t.Fatalf("expected %d rows, got %d", tbl.RowCount(), got.RowCount())
	}
	if got.ColumnCount() != tbl.ColumnCount() {
		t.Fatalf("expected %d columns, got %d", tbl.ColumnCount(), got.ColumnCount())
	}

	xCol, err := got.Column("x")
	if err != nil {
		t.Fatal(err)
	}
	v, err := xCol.ReadAsF32(4)
	if err != nil {
		t.Fatal(err)
	}
	if v != 2 {
		t.Errorf("expected x[4] == 2, got %v", v)
	}
}

func TestScratchCacheLoadConsumesEntry(t *testing.T) {
	sc, err := NewScratchCache(t.TempDir(), 1024*1024)
	if err != nil {
		t.Fatalf("new scratch cache: %v", err)
	}
	defer sc.Close()

	tbl := buildScratchTable(t, 3)
	if err := sc.Spill("unit_1", tbl); err != nil {
		t.Fatalf("spill: %v", err)
	}
	if _, err := sc.Load("unit_1"); err != nil {
		t.Fatalf("first load: %v", err)
	}
	if _, err := sc.Load("unit_1"); err == nil {
		t.Error("expected second load of the same key to fail")
	}
}

func TestScratchCacheLoadMissingKeyErrors(t *testing.T) {
	sc, err := NewScratchCache(t.TempDir(), 1024*1024)
	if err != nil {
		t.Fatalf("new scratch cache: %v", err)
	}
	defer sc.Close()

	if _, err := sc.Load("does-not-exist"); err == nil {
		t.Error("expected error loading missing key")
	}
}
