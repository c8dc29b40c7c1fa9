package octree

import (
	"math"

	"github.com/sogforge/sogforge/internal/morton"
	"github.com/sogforge/sogforge/pkg/splat"
)

// Voxelizer turns a set of splat rows into classified leaf blocks. The real
// GPU-backed voxelizer lives outside this package (spec's "opaque solver");
// CPUVoxelizer is a small deterministic default used when no such solver is
// wired in, and for tests.
type Voxelizer interface {
	Voxelize(t *splat.Table, indices []int, resolution float32) (*Accumulator, error)
}

// CPUVoxelizer bins each splat's centroid into a single voxel cell of a
// uniform grid (no footprint rasterization) and accumulates the resulting
// per-block occupancy. It is intentionally simple: a stand-in for the GPU
// solver this package treats as an external collaborator.
type CPUVoxelizer struct{}

// Voxelize implements Voxelizer.
func (CPUVoxelizer) Voxelize(t *splat.Table, indices []int, resolution float32) (*Accumulator, error) {
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
	if resolution <= 0 {
		resolution = 1
	}

	box, err := splat.EncloseByCentroids(t, indices)
	if err != nil {
		return nil, err
	}

	acc := NewAccumulator(len(indices))
	// blockMasks accumulates per-block occupancy before classification,
	// since several splats may land in the same block.
	blockMasks := make(map[uint64][2]uint32)

	for _, row := range indices {
		x, _ := xc.ReadAsF32(row)
		y, _ := yc.ReadAsF32(row)
		z, _ := zc.ReadAsF32(row)

		vx := voxelIndex(x, box.Min[0], resolution)
		vy := voxelIndex(y, box.Min[1], resolution)
		vz := voxelIndex(z, box.Min[2], resolution)

		bx, by, bz := vx/4, vy/4, vz/4
		lx, ly, lz := vx%4, vy%4, vz%4
		bit := uint(lx + 4*ly + 16*lz)

		blockMorton := morton.XYZToMorton(uint32(bx), uint32(by), uint32(bz))
		m := blockMasks[blockMorton]
		if bit < 32 {
			m[0] |= 1 << bit
		} else {
			m[1] |= 1 << (bit - 32)
		}
		blockMasks[blockMorton] = m
	}

	for code, m := range blockMasks {
		acc.Add(code, m[0], m[1])
	}

	return acc, nil
}

func voxelIndex(v, lo, resolution float32) uint32 {
	if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
		return 0
	}
	idx := int64(math.Floor(float64((v - lo) / resolution)))
	if idx < 0 {
		idx = 0
	}
	return uint32(idx)
}
