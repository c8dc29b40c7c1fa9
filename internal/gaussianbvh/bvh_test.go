package gaussianbvh

import (
	"testing"

	"github.com/sogforge/sogforge/pkg/splat"
)

func makeScatteredTable(n int) *splat.Table {
	names := []string{"x", "y", "z", "rot_0", "rot_1", "rot_2", "rot_3", "scale_0", "scale_1", "scale_2"}
	cols := make([]*splat.Column, len(names))
	for i, nm := range names {
		cols[i] = splat.NewColumn(nm, splat.F32, n)
	}
	tbl, _ := splat.NewTable(cols...)
	for i := 0; i < n; i++ {
		tbl.WriteRow(i, map[string]float32{
			"x": float32(i), "y": float32(i % 7), "z": float32(i % 3),
			"rot_0": 1, "rot_1": 0, "rot_2": 0, "rot_3": 0,
			"scale_0": -2, "scale_1": -2, "scale_2": -2,
		})
	}
	return tbl
}

func indicesOf(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestBuildSmallIsLeaf(t *testing.T) {
	tbl := makeScatteredTable(10)
	root, err := Build(tbl, indicesOf(10))
	if err != nil {
		t.Fatal(err)
	}
	if !root.IsLeaf() {
		t.Fatal("expected leaf for small subset")
	}
	if len(root.Indices) != 10 || len(root.Boxes) != 10 {
		t.Fatalf("expected 10 indices and boxes, got %d/%d", len(root.Indices), len(root.Boxes))
	}
}

func TestBuildLargeSplitsAndPreservesCount(t *testing.T) {
	tbl := makeScatteredTable(1000)
	root, err := Build(tbl, indicesOf(1000))
	if err != nil {
		t.Fatal(err)
	}
	if root.Count != 1000 {
		t.Fatalf("expected count 1000, got %d", root.Count)
	}
	if root.IsLeaf() {
		t.Fatal("expected interior node for 1000 rows")
	}
}

func TestQueryOverlappingFindsExpected(t *testing.T) {
	tbl := makeScatteredTable(500)
	root, err := Build(tbl, indicesOf(500))
	if err != nil {
		t.Fatal(err)
	}
	// Row i sits at x=i, and each splat's half-extent is 3*exp(-2) ~= 0.406,
	// so a query box around x in [0,2] should find rows 0,1,2 at minimum.
	found := root.QueryOverlapping([3]float32{-1, -1, -1}, [3]float32{2, 7, 3})
	seen := make(map[int]bool)
	for _, idx := range found {
		seen[idx] = true
	}
	for _, want := range []int{0, 1, 2} {
		if !seen[want] {
			t.Errorf("expected row %d in overlap query result", want)
		}
	}
	for _, idx := range found {
		if idx > 3 {
			t.Errorf("unexpected far-away row %d in overlap result", idx)
		}
	}
}

func TestQueryOverlappingEmptyWhenDisjoint(t *testing.T) {
	tbl := makeScatteredTable(200)
	root, err := Build(tbl, indicesOf(200))
	if err != nil {
		t.Fatal(err)
	}
	found := root.QueryOverlapping([3]float32{100000, 100000, 100000}, [3]float32{100001, 100001, 100001})
	if len(found) != 0 {
		t.Errorf("expected no overlap, got %d results", len(found))
	}
}
