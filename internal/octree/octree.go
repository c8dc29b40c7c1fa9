package octree

import (
	"github.com/sogforge/sogforge/internal/morton"
	"github.com/sogforge/sogforge/pkg/splat"
)

func blockCoordToMorton(bx, by, bz int32) uint64 {
	return morton.XYZToMorton(uint32(bx), uint32(by), uint32(bz))
}

func blockCoordFromMorton(code uint64) (bx, by, bz uint32) {
	return morton.MortonToXYZ(code)
}

// BuildOptions configures Build.
type BuildOptions struct {
	Voxelizer       Voxelizer // defaults to CPUVoxelizer{} when nil
	VoxelResolution float32
	ApplyFilter     bool // run the optional neighbor smoothing pass (§4.6 "Block filter")
}

// Build runs the full sparse voxel octree pipeline over a splat scene: it
// voxelizes, optionally smooths, merges bottom-up, and flattens into the
// Laine-Karras array (spec §4.6).
func Build(t *splat.Table, indices []int, opts BuildOptions) (*Tree, error) {
	voxelizer := opts.Voxelizer
	if voxelizer == nil {
		voxelizer = CPUVoxelizer{}
	}
	resolution := opts.VoxelResolution
	if resolution <= 0 {
		resolution = 1
	}

	acc, err := voxelizer.Voxelize(t, indices, resolution)
	if err != nil {
		return nil, err
	}

	sceneBox, err := splat.EncloseByCentroids(t, indices)
	if err != nil {
		return nil, err
	}

	if opts.ApplyFilter {
		mixedBlocks := make([]MixedBlock, len(acc.mixedMorton))
		for i, m := range acc.mixedMorton {
			mixedBlocks[i] = MixedBlock{Morton: m, Lo: acc.mixedMasks[i][0], Hi: acc.mixedMasks[i][1]}
		}
		lookup := func(bx, by, bz int32) (lo, hi uint32, ok bool) {
			code := blockCoordToMorton(bx, by, bz)
			if lo, hi, found := acc.Mask(code); found {
				return lo, hi, true
			}
			if acc.solidIndex[code] {
				return 0xFFFFFFFF, 0xFFFFFFFF, true
			}
			return 0, 0, false
		}
		filtered := ApplyNeighborFilter(mixedBlocks, lookup)
		for i, fb := range filtered {
			acc.mixedMasks[i] = [2]uint32{fb.Lo, fb.Hi}
		}
	}

	entries := acc.sortedEntries()
	root := buildLevels(entries, acc)

	nodes, leafData, interiorCount, mixedLeafCount := flatten(root)

	gridSideBlocks := 1
	for _, e := range entries {
		bx, by, bz := blockCoordFromMorton(e.morton)
		for _, c := range [3]uint32{bx, by, bz} {
			if int(c)+1 > gridSideBlocks {
				gridSideBlocks = int(c) + 1
			}
		}
	}

	return &Tree{
		Nodes:           nodes,
		LeafData:        leafData,
		SceneBoundsMin:  sceneBox.Min,
		SceneBoundsMax:  sceneBox.Max,
		VoxelResolution: resolution,
		LeafSize:        4,
		TreeDepth:       TreeDepth(gridSideBlocks),
		InteriorCount:   interiorCount,
		MixedLeafCount:  mixedLeafCount,
	}, nil
}
