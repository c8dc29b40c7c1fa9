// Package btree implements the median-split bounding-volume hierarchy used to
// carve a scene into spatial chunks (spec-internal reference "BTree", C4). It
// is not a nearest-neighbor structure: it exists to partition row indices
// into spatially coherent leaves for downstream packing.
package btree

import (
	"github.com/sogforge/sogforge/pkg/splat"
)

// leafThreshold is the subset size at or below which a node becomes a leaf.
const leafThreshold = 256

// Node is one node of the BVH. Leaves carry Indices directly; interior nodes
// carry Left/Right children. Every node caches its bounding box and total
// splat count.
type Node struct {
	Box     splat.Box
	Count   int
	Left    *Node
	Right   *Node
	Indices []int // non-nil only at leaves
}

// IsLeaf reports whether n is a leaf node.
func (n *Node) IsLeaf() bool {
	return n.Left == nil && n.Right == nil
}

// Build constructs a median-split BVH over the given row indices of t, using
// the table's x/y/z columns as centroids.
func Build(t *splat.Table, indices []int) (*Node, error) {
	xc, err := t.Column("x")
	if err != nil {
		return nil, err
	}
	yc, err := t.Column("y")
	if err != nil {
		return nil, err
	}
	zc, err := t.Column("z")
	if err != nil {
		return nil, err
	}
	work := make([]int, len(indices))
	copy(work, indices)
	cols := [3]*splat.Column{xc, yc, zc}
	return build(work, cols), nil
}

func build(indices []int, cols [3]*splat.Column) *Node {
	box := enclose(indices, cols)
	if len(indices) <= leafThreshold {
		leaf := make([]int, len(indices))
		copy(leaf, indices)
		return &Node{Box: box, Count: len(indices), Indices: leaf}
	}

	axis := box.WidestAxis()
	col := cols[axis]
	mid := len(indices) / 2
	quickselect(indices, col, 0, len(indices)-1, mid)

	left := build(indices[:mid], cols)
	right := build(indices[mid:], cols)
	return &Node{Box: box, Count: len(indices), Left: left, Right: right}
}

func enclose(indices []int, cols [3]*splat.Column) splat.Box {
	box := splat.EmptyBox()
	for _, i := range indices {
		x, _ := cols[0].ReadAsF32(i)
		y, _ := cols[1].ReadAsF32(i)
		z, _ := cols[2].ReadAsF32(i)
		box.Encloses([3]float32{x, y, z})
	}
	return box
}

// quickselect partitions indices[lo..hi] in place so that the element that
// would land at position k under a full sort by col's values is at
// indices[k], using a median-of-three pivot choice.
func quickselect(indices []int, col *splat.Column, lo, hi, k int) {
	for lo < hi {
		pivot := medianOfThreePivot(indices, col, lo, hi)
		p := partition(indices, col, lo, hi, pivot)
		if k == p {
			return
		} else if k < p {
			hi = p - 1
		} else {
			lo = p + 1
		}
	}
}

func valueAt(indices []int, col *splat.Column, i int) float32 {
	v, _ := col.ReadAsF32(indices[i])
	return v
}

// medianOfThreePivot picks the median of indices[lo], indices[mid],
// indices[hi] by value and returns its position within [lo,hi].
func medianOfThreePivot(indices []int, col *splat.Column, lo, hi int) int {
	mid := lo + (hi-lo)/2
	a, b, c := valueAt(indices, col, lo), valueAt(indices, col, mid), valueAt(indices, col, hi)
	switch {
	case (a <= b && b <= c) || (c <= b && b <= a):
		return mid
	case (b <= a && a <= c) || (c <= a && a <= b):
		return lo
	default:
		return hi
	}
}

// partition performs Lomuto partitioning of indices[lo..hi] around the value
// at pivotPos, returning the pivot's final position.
func partition(indices []int, col *splat.Column, lo, hi, pivotPos int) int {
	pivotVal := valueAt(indices, col, pivotPos)
	indices[pivotPos], indices[hi] = indices[hi], indices[pivotPos]
	store := lo
	for i := lo; i < hi; i++ {
		if valueAt(indices, col, i) < pivotVal {
			indices[i], indices[store] = indices[store], indices[i]
			store++
		}
	}
	indices[store], indices[hi] = indices[hi], indices[store]
	return store
}
