package btree

import (
	"testing"

	"github.com/sogforge/sogforge/pkg/splat"
)

func tableOfN(n int, spacing float32) *splat.Table {
	x := splat.NewColumn("x", splat.F32, n)
	y := splat.NewColumn("y", splat.F32, n)
	z := splat.NewColumn("z", splat.F32, n)
	for i := 0; i < n; i++ {
		x.WriteF32(i, float32(i)*spacing)
		y.WriteF32(i, 0)
		z.WriteF32(i, 0)
	}
	tbl, _ := splat.NewTable(x, y, z)
	return tbl
}

func indicesOf(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func collectLeaves(n *Node) []int {
	if n.IsLeaf() {
		out := make([]int, len(n.Indices))
		copy(out, n.Indices)
		return out
	}
	out := collectLeaves(n.Left)
	out = append(out, collectLeaves(n.Right)...)
	return out
}

func TestBuildSmallSubsetIsSingleLeaf(t *testing.T) {
	tbl := tableOfN(10, 1)
	root, err := Build(tbl, indicesOf(10))
	if err != nil {
		t.Fatal(err)
	}
	if !root.IsLeaf() {
		t.Fatal("expected a single leaf for a subset under the threshold")
	}
	if root.Count != 10 {
		t.Errorf("expected count 10, got %d", root.Count)
	}
}

func TestBuildLargeSubsetSplitsIntoLeaves(t *testing.T) {
	tbl := tableOfN(1000, 1)
	root, err := Build(tbl, indicesOf(1000))
	if err != nil {
		t.Fatal(err)
	}
	if root.IsLeaf() {
		t.Fatal("expected an interior node for 1000 rows")
	}
	leaves := collectLeaves(root)
	if len(leaves) != 1000 {
		t.Fatalf("expected all 1000 indices preserved across leaves, got %d", len(leaves))
	}
	seen := make(map[int]bool)
	for _, idx := range leaves {
		if seen[idx] {
			t.Fatalf("index %d appeared twice across leaves", idx)
		}
		seen[idx] = true
	}
}

func TestBuildLeftChildBoxOverlapsParent(t *testing.T) {
	tbl := tableOfN(1000, 1)
	root, _ := Build(tbl, indicesOf(1000))
	if !root.Box.Valid() {
		t.Fatal("root box should be valid")
	}
	if root.Left != nil {
		if !root.Box.Overlaps(root.Left.Box) {
			t.Error("left child box should overlap parent box")
		}
	}
}

func TestQuickselectAllEqualValues(t *testing.T) {
	n := 600
	indices := indicesOf(n)
	x := splat.NewColumn("x", splat.F32, n)
	for i := 0; i < n; i++ {
		x.WriteF32(i, 5)
	}
	quickselect(indices, x, 0, n-1, n/2)
	// every position is a valid "median" when all values are equal; the
	// important property is the index set is unchanged and it terminates.
	seen := make(map[int]bool)
	for _, idx := range indices {
		seen[idx] = true
	}
	if len(seen) != n {
		t.Fatalf("expected all %d indices preserved, got %d distinct", n, len(seen))
	}
}

func TestQuickselectTwoElements(t *testing.T) {
	indices := []int{0, 1}
	x := splat.NewColumn("x", splat.F32, 2)
	x.WriteF32(0, 9)
	x.WriteF32(1, 1)
	quickselect(indices, x, 0, 1, 1)
	v0, _ := x.ReadAsF32(indices[0])
	v1, _ := x.ReadAsF32(indices[1])
	if v0 > v1 {
		t.Errorf("expected smaller value first after selecting median of 2, got %v, %v", v0, v1)
	}
}

func TestQuickselectPreSorted(t *testing.T) {
	n := 500
	indices := indicesOf(n)
	x := splat.NewColumn("x", splat.F32, n)
	for i := 0; i < n; i++ {
		x.WriteF32(i, float32(i))
	}
	k := n / 2
	quickselect(indices, x, 0, n-1, k)
	pivotVal, _ := x.ReadAsF32(indices[k])
	for i := 0; i < k; i++ {
		v, _ := x.ReadAsF32(indices[i])
		if v > pivotVal {
			t.Fatalf("left partition value %v exceeds pivot %v at position %d", v, pivotVal, i)
		}
	}
	for i := k + 1; i < n; i++ {
		v, _ := x.ReadAsF32(indices[i])
		if v < pivotVal {
			t.Fatalf("right partition value %v below pivot %v at position %d", v, pivotVal, i)
		}
	}
}
