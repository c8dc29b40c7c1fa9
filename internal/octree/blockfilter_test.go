package octree

import "testing"

func TestApplyNeighborFilterRemovesIsolatedVoxel(t *testing.T) {
	// A single occupied voxel at (0,0,0), bit 0, with no occupied neighbors
	// anywhere (no adjacent blocks).
	blocks := []MixedBlock{{Morton: 0, Lo: 1, Hi: 0}}
	out := ApplyNeighborFilter(blocks, nil)
	lo, hi := out[0].Lo, out[0].Hi
	if lo != 0 || hi != 0 {
		t.Errorf("expected isolated voxel to be removed, got lo=%x hi=%x", lo, hi)
	}
}

func TestApplyNeighborFilterFillsFullySurroundedVoxel(t *testing.T) {
	// Voxel at local (1,1,1) -> bit = 1+4+16 = 21. All six face neighbors
	// within the same block occupied, center itself unoccupied.
	center := uint(1 + 4*1 + 16*1)
	var mask uint64
	neighbors := []uint{
		uint(0 + 4*1 + 16*1), // x-1
		uint(2 + 4*1 + 16*1), // x+1
		uint(1 + 4*0 + 16*1), // y-1
		uint(1 + 4*2 + 16*1), // y+1
		uint(1 + 4*1 + 16*0), // z-1
		uint(1 + 4*1 + 16*2), // z+1
	}
	for _, b := range neighbors {
		mask |= 1 << b
	}
	lo, hi := split(mask)
	blocks := []MixedBlock{{Morton: 0, Lo: lo, Hi: hi}}
	out := ApplyNeighborFilter(blocks, nil)
	outMask := combine(out[0].Lo, out[0].Hi)
	if outMask&(1<<center) == 0 {
		t.Error("expected fully-surrounded voxel to be filled")
	}
}

func TestApplyNeighborFilterKeepsOccupiedWithSomeNeighbors(t *testing.T) {
	a := uint(0)
	b := uint(1) // x neighbor of a
	mask := uint64(1<<a | 1<<b)
	lo, hi := split(mask)
	blocks := []MixedBlock{{Morton: 0, Lo: lo, Hi: hi}}
	out := ApplyNeighborFilter(blocks, nil)
	outMask := combine(out[0].Lo, out[0].Hi)
	if outMask&(1<<a) == 0 || outMask&(1<<b) == 0 {
		t.Error("occupied voxels with at least one occupied neighbor should survive")
	}
}
