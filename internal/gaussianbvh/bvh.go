package gaussianbvh

import (
	"github.com/sogforge/sogforge/pkg/splat"
)

const leafThreshold = 256

// Node is a BVH node over Gaussian world-space boxes. Interior nodes split on
// the widest centroid axis, same recursion shape as internal/btree; leaves
// store the row indices they cover.
type Node struct {
	Box     splat.Box
	Count   int
	Left    *Node
	Right   *Node
	Indices []int        // leaf only: row indices
	Boxes   []splat.Box  // leaf only: per-row world-space box, parallel to Indices
}

// IsLeaf reports whether n is a leaf node.
func (n *Node) IsLeaf() bool {
	return n.Left == nil && n.Right == nil
}

type splatBox struct {
	row   int
	box   splat.Box
	pos   [3]float32
}

// Build constructs a Gaussian-BVH over the given row indices of t. Each
// splat's box is pos±extent (spec §4.5), and the BVH splits on the widest
// axis of the enclosing box computed over centroids, matching btree's
// median-split shape.
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

	extents, _, err := Extents(t, indices)
	if err != nil {
		return nil, err
	}

	boxes := make([]splatBox, len(indices))
	for i, row := range indices {
		px, _ := xc.ReadAsF32(row)
		py, _ := yc.ReadAsF32(row)
		pz, _ := zc.ReadAsF32(row)
		pos := [3]float32{px, py, pz}
		ext := extents[i]
		boxes[i] = splatBox{
			row: row,
			pos: pos,
			box: splat.Box{
				Min: [3]float32{pos[0] - ext[0], pos[1] - ext[1], pos[2] - ext[2]},
				Max: [3]float32{pos[0] + ext[0], pos[1] + ext[1], pos[2] + ext[2]},
			},
		}
	}

	return build(boxes), nil
}

func build(boxes []splatBox) *Node {
	enclosing := splat.EmptyBox()
	centroidBox := splat.EmptyBox()
	for _, b := range boxes {
		enclosing.Union(b.box)
		centroidBox.Encloses(b.pos)
	}

	if len(boxes) <= leafThreshold {
		indices := make([]int, len(boxes))
		leafBoxes := make([]splat.Box, len(boxes))
		for i, b := range boxes {
			indices[i] = b.row
			leafBoxes[i] = b.box
		}
		return &Node{Box: enclosing, Count: len(boxes), Indices: indices, Boxes: leafBoxes}
	}

	axis := centroidBox.WidestAxis()
	mid := len(boxes) / 2
	quickselectByPos(boxes, axis, 0, len(boxes)-1, mid)

	left := build(boxes[:mid])
	right := build(boxes[mid:])
	return &Node{Box: enclosing, Count: len(boxes), Left: left, Right: right}
}

func quickselectByPos(boxes []splatBox, axis, lo, hi, k int) {
	for lo < hi {
		pivot := medianOfThree(boxes, axis, lo, hi)
		p := partitionByPos(boxes, axis, lo, hi, pivot)
		if k == p {
			return
		} else if k < p {
			hi = p - 1
		} else {
			lo = p + 1
		}
	}
}

func medianOfThree(boxes []splatBox, axis, lo, hi int) int {
	mid := lo + (hi-lo)/2
	a, b, c := boxes[lo].pos[axis], boxes[mid].pos[axis], boxes[hi].pos[axis]
	switch {
	case (a <= b && b <= c) || (c <= b && b <= a):
		return mid
	case (b <= a && a <= c) || (c <= a && a <= b):
		return lo
	default:
		return hi
	}
}

func partitionByPos(boxes []splatBox, axis, lo, hi, pivotPos int) int {
	pivotVal := boxes[pivotPos].pos[axis]
	boxes[pivotPos], boxes[hi] = boxes[hi], boxes[pivotPos]
	store := lo
	for i := lo; i < hi; i++ {
		if boxes[i].pos[axis] < pivotVal {
			boxes[i], boxes[store] = boxes[store], boxes[i]
			store++
		}
	}
	boxes[store], boxes[hi] = boxes[hi], boxes[store]
	return store
}

// QueryOverlapping returns the row indices whose Gaussian box overlaps
// [min,max], descending only into subtrees whose box overlaps the query.
func (n *Node) QueryOverlapping(min, max [3]float32) []int {
	query := splat.Box{Min: min, Max: max}
	var out []int
	n.queryInto(query, &out)
	return out
}

func (n *Node) queryInto(query splat.Box, out *[]int) {
	if n == nil || !n.Box.Overlaps(query) {
		return
	}
	if n.IsLeaf() {
		for i, idx := range n.Indices {
			if n.Boxes[i].Overlaps(query) {
				*out = append(*out, idx)
			}
		}
		return
	}
	n.Left.queryInto(query, out)
	n.Right.queryInto(query, out)
}
