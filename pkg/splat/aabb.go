package splat

import "math"

// Box is an axis-aligned bounding box.
type Box struct {
	Min, Max [3]float32
}

// EmptyBox returns a box with inverted bounds, suitable as the seed for a
// running Encloses/Union accumulation.
func EmptyBox() Box {
	return Box{
		Min: [3]float32{float32(math.Inf(1)), float32(math.Inf(1)), float32(math.Inf(1))},
		Max: [3]float32{float32(math.Inf(-1)), float32(math.Inf(-1)), float32(math.Inf(-1))},
	}
}

// Encloses grows the box to include point p.
func (b *Box) Encloses(p [3]float32) {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] {
			b.Min[i] = p[i]
		}
		if p[i] > b.Max[i] {
			b.Max[i] = p[i]
		}
	}
}

// Union grows the box to include another box.
func (b *Box) Union(o Box) {
	b.Encloses(o.Min)
	b.Encloses(o.Max)
}

// Valid reports whether the box has been enclosed around at least one point
// (Min <= Max on every axis).
func (b Box) Valid() bool {
	return b.Min[0] <= b.Max[0] && b.Min[1] <= b.Max[1] && b.Min[2] <= b.Max[2]
}

// Extent returns the box's per-axis size.
func (b Box) Extent() [3]float32 {
	return [3]float32{b.Max[0] - b.Min[0], b.Max[1] - b.Min[1], b.Max[2] - b.Min[2]}
}

// WidestAxis returns the index (0,1,2) of the axis with the largest extent.
func (b Box) WidestAxis() int {
	e := b.Extent()
	axis := 0
	if e[1] > e[axis] {
		axis = 1
	}
	if e[2] > e[axis] {
		axis = 2
	}
	return axis
}

// LargestDim returns the size of the box along its widest axis.
func (b Box) LargestDim() float32 {
	e := b.Extent()
	return e[b.WidestAxis()]
}

// Overlaps reports whether b and o share any volume (touching counts as overlap).
func (b Box) Overlaps(o Box) bool {
	for i := 0; i < 3; i++ {
		if b.Max[i] < o.Min[i] || b.Min[i] > o.Max[i] {
			return false
		}
	}
	return true
}

// Contains reports whether point p lies within the box (inclusive bounds).
func (b Box) Contains(p [3]float32) bool {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] || p[i] > b.Max[i] {
			return false
		}
	}
	return true
}

// EncloseByCentroids builds a Box from the (x,y,z) positions of the given row
// indices of t, which must carry x/y/z columns.
func EncloseByCentroids(t *Table, indices []int) (Box, error) {
	xc, err := t.Column("x")
	if err != nil {
		return Box{}, err
	}
	yc, err := t.Column("y")
	if err != nil {
		return Box{}, err
	}
	zc, err := t.Column("z")
	if err != nil {
		return Box{}, err
	}
	box := EmptyBox()
	for _, i := range indices {
		x, _ := xc.ReadAsF32(i)
		y, _ := yc.ReadAsF32(i)
		z, _ := zc.ReadAsF32(i)
		box.Encloses([3]float32{x, y, z})
	}
	return box, nil
}
