// Package kdtree builds a balanced k-d tree over a table of centroids and
// answers nearest-neighbor queries with an optional row filter. Structurally
// it follows the recursive build/query shape the teacher's manifest package
// uses for its merge trees, generalized to arbitrary dimension.
package kdtree

import (
	"math"
	"sort"

	"github.com/sogforge/sogforge/pkg/splat"
)

// Tree is a balanced k-d tree over the rows of a centroid table. Each row is
// a point in dim-dimensional space; axes are split in round-robin order by
// tree depth.
type Tree struct {
	root *node
	dim  int
	cols []*splat.Column
}

type node struct {
	index       int // row index into the original table
	left, right *node
}

// Filter decides whether a candidate row index is eligible to be returned by
// FindNearest. A nil Filter accepts every row.
type Filter func(index int) bool

// Build constructs a k-d tree over the given row indices of t, using columns
// as the dimensions (in order). Column count is the tree's dimensionality.
func Build(t *splat.Table, indices []int, columns ...string) (*Tree, error) {
	cols := make([]*splat.Column, len(columns))
	for i, name := range columns {
		c, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}
	work := make([]int, len(indices))
	copy(work, indices)

	tr := &Tree{dim: len(cols), cols: cols}
	tr.root = buildNode(work, 0, cols)
	return tr, nil
}

func buildNode(indices []int, depth int, cols []*splat.Column) *node {
	if len(indices) == 0 {
		return nil
	}
	if len(indices) == 1 {
		return &node{index: indices[0]}
	}

	axis := depth % len(cols)
	col := cols[axis]
	sort.Slice(indices, func(a, b int) bool {
		va, _ := col.ReadAsF32(indices[a])
		vb, _ := col.ReadAsF32(indices[b])
		return va < vb
	})

	mid := len(indices) / 2
	n := &node{index: indices[mid]}
	n.left = buildNode(indices[:mid], depth+1, cols)
	n.right = buildNode(indices[mid+1:], depth+1, cols)
	return n
}

// FindNearest returns the index of the row nearest to point (in the same
// column order the tree was built with), its squared distance, and the
// number of nodes visited during the search. filter may be nil to accept
// every candidate.
func (t *Tree) FindNearest(point []float32, filter Filter) (index int, distSq float64, visited int) {
	index = -1
	distSq = math.Inf(1)
	if t.root == nil || len(point) != t.dim {
		return index, distSq, 0
	}
	idx, d2, v := t.search(t.root, point, 0, filter, -1, math.Inf(1))
	return idx, d2, v
}

func (t *Tree) search(n *node, point []float32, depth int, filter Filter, best int, bestDist float64) (int, float64, int) {
	if n == nil {
		return best, bestDist, 0
	}
	visited := 1
	axis := depth % t.dim
	nodeVal, _ := t.cols[axis].ReadAsF32(n.index)
	diff := float64(point[axis]) - float64(nodeVal)

	var near, far *node
	if diff <= 0 {
		near, far = n.left, n.right
	} else {
		near, far = n.right, n.left
	}

	nb, nd, nv := t.search(near, point, depth+1, filter, best, bestDist)
	best, bestDist = nb, nd
	visited += nv

	if filter == nil || filter(n.index) {
		d2 := t.pointDistSq(n.index, point)
		if d2 < bestDist {
			best, bestDist = n.index, d2
		}
	}

	if diff*diff < bestDist {
		fb, fd, fv := t.search(far, point, depth+1, filter, best, bestDist)
		best, bestDist = fb, fd
		visited += fv
	}

	return best, bestDist, visited
}

func (t *Tree) pointDistSq(index int, point []float32) float64 {
	sum := 0.0
	for a := 0; a < t.dim; a++ {
		v, _ := t.cols[a].ReadAsF32(index)
		d := float64(point[a]) - float64(v)
		sum += d * d
	}
	return sum
}
