// Package morton provides Z-order (Morton code) spatial ordering: a 10-bit-
// per-axis interleave used to sort a splat table's rows by spatial locality
// (spec §4.2), and a 17-bit-per-axis block codec used by the sparse voxel
// octree (spec §4.6). The bit-spreading trick ("part-1-by-2") is the same
// shape used in _examples/other_examples/VoxelsPlace-VOPL__morton.go, scaled
// from its 10-bit grid to the widths this spec requires.
package morton

import (
	"math"
	"sort"

	"github.com/sogforge/sogforge/pkg/splat"
)

// denseRunThreshold is the run-length above which sortMortonOrder recurses
// into a subrange sharing the same Morton code, per spec §4.2 step 6.
const denseRunThreshold = 256

// spread3_10 interleaves the low 10 bits of v with two zero bits between each,
// producing a 30-bit result used as one axis's contribution to a 3-axis code.
func spread3_10(v uint32) uint64 {
	x := uint64(v) & 0x3FF
	x = (x | (x << 16)) & 0x30000FF
	x = (x | (x << 8)) & 0x300F00F
	x = (x | (x << 4)) & 0x30C30C3
	x = (x | (x << 2)) & 0x9249249
	return x
}

// Encode10 builds the 30-bit Morton code for a point already mapped into
// [0,1023] per axis, per spec §4.2 step 3-4: bit layout
// ...z2y2x2 z1y1x1 z0y0x0.
func Encode10(ix, iy, iz uint32) uint64 {
	return spread3_10(ix) | (spread3_10(iy) << 1) | (spread3_10(iz) << 2)
}

// spread3_17 interleaves the low 17 bits of v, for the 51-bit block codec
// used by the sparse octree (C6).
func spread3_17(v uint64) uint64 {
	x := v & 0x1FFFF
	x = (x | (x << 32)) & 0x1F00000000FFFF
	x = (x | (x << 16)) & 0x1F0000FF0000FF
	x = (x | (x << 8)) & 0x100F00F00F00F00F
	x = (x | (x << 4)) & 0x10C30C30C30C30C3
	x = (x | (x << 2)) & 0x1249249249249249
	return x
}

func compact3_17(v uint64) uint64 {
	x := v & 0x1249249249249249
	x = (x | (x >> 2)) & 0x10C30C30C30C30C3
	x = (x | (x >> 4)) & 0x100F00F00F00F00F
	x = (x | (x >> 8)) & 0x1F0000FF0000FF
	x = (x | (x >> 16)) & 0x1F00000000FFFF
	x = (x | (x >> 32)) & 0x1FFFF
	return x
}

// XYZToMorton interleaves 17-bit-per-axis block coordinates into a single
// Morton code. Stateless helper used by the sparse voxel octree (§4.6).
func XYZToMorton(x, y, z uint32) uint64 {
	return spread3_17(uint64(x)) | (spread3_17(uint64(y)) << 1) | (spread3_17(uint64(z)) << 2)
}

// MortonToXYZ is the inverse of XYZToMorton.
func MortonToXYZ(code uint64) (x, y, z uint32) {
	x = uint32(compact3_17(code))
	y = uint32(compact3_17(code >> 1))
	z = uint32(compact3_17(code >> 2))
	return
}

// axisBounds computes the per-axis min/max over the given row indices.
func axisBounds(xc, yc, zc *splat.Column, indices []int) (min, max [3]float32) {
	min = [3]float32{float32(math.Inf(1)), float32(math.Inf(1)), float32(math.Inf(1))}
	max = [3]float32{float32(math.Inf(-1)), float32(math.Inf(-1)), float32(math.Inf(-1))}
	for _, i := range indices {
		x, _ := xc.ReadAsF32(i)
		y, _ := yc.ReadAsF32(i)
		z, _ := zc.ReadAsF32(i)
		p := [3]float32{x, y, z}
		for a := 0; a < 3; a++ {
			if p[a] < min[a] {
				min[a] = p[a]
			}
			if p[a] > max[a] {
				max[a] = p[a]
			}
		}
	}
	return
}

func quantize(v, lo, extent float32) uint32 {
	if extent == 0 {
		return 0
	}
	q := (v - lo) * 1024 / extent
	qi := int32(math.Floor(float64(q)))
	if qi < 0 {
		qi = 0
	}
	if qi > 1023 {
		qi = 1023
	}
	return uint32(qi)
}

// SortOrder computes the Morton-sorted permutation of the given row indices
// of t, which must carry x/y/z columns. If any axis extent is non-finite or
// all extents are zero, the input order is returned unchanged (spec §4.2
// step 2). The sort is stable, and runs of >256 rows sharing an identical
// Morton code recurse for extra locality (step 6).
func SortOrder(t *splat.Table, indices []int) ([]int, error) {
	out := make([]int, len(indices))
	copy(out, indices)
	if len(out) <= 1 {
		return out, nil
	}

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

	sortRange(out, xc, yc, zc)
	return out, nil
}

// sortRange mutates indices in place (a sub-slice of the caller's buffer) to
// be Morton-ordered, recursing into dense same-code runs.
func sortRange(indices []int, xc, yc, zc *splat.Column) {
	if len(indices) <= 1 {
		return
	}
	min, max := axisBounds(xc, yc, zc, indices)
	extent := [3]float32{max[0] - min[0], max[1] - min[1], max[2] - min[2]}
	for _, e := range extent {
		if math.IsInf(float64(e), 0) || math.IsNaN(float64(e)) {
			return
		}
	}
	if extent[0] == 0 && extent[1] == 0 && extent[2] == 0 {
		return
	}

	codes := make([]uint64, len(indices))
	for i, rowIdx := range indices {
		x, _ := xc.ReadAsF32(rowIdx)
		y, _ := yc.ReadAsF32(rowIdx)
		z, _ := zc.ReadAsF32(rowIdx)
		ix := quantize(x, min[0], extent[0])
		iy := quantize(y, min[1], extent[1])
		iz := quantize(z, min[2], extent[2])
		codes[i] = Encode10(ix, iy, iz)
	}

	type entry struct {
		code     uint64
		original int // position within indices, preserved for stability
		row      int
	}
	entries := make([]entry, len(indices))
	for i, rowIdx := range indices {
		entries[i] = entry{code: codes[i], original: i, row: rowIdx}
	}
	sort.SliceStable(entries, func(a, b int) bool { return entries[a].code < entries[b].code })

	for i, e := range entries {
		indices[i] = e.row
	}

	// Recurse into runs of >256 rows sharing the same code for extra locality.
	i := 0
	for i < len(entries) {
		j := i + 1
		for j < len(entries) && entries[j].code == entries[i].code {
			j++
		}
		if j-i > denseRunThreshold {
			sortRange(indices[i:j], xc, yc, zc)
		}
		i = j
	}
}
