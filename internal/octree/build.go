package octree

import "math"

type levelNode struct {
	morton   uint64
	typ      BlockType // BlockMixed, BlockSolid, or blockInterior
	children [8]*levelNode
	lo, hi   uint32 // valid only for typ == BlockMixed
}

const blockInterior BlockType = 100 // distinct from BlockEmpty/BlockSolid/BlockMixed; internal to this package

// TreeDepth computes max(1, ceil(log2(gridSideInBlocks))) per spec §4.6 step
// 2, where gridSideInBlocks is the scene's voxel grid side length divided by
// the 4-voxel leaf block size.
func TreeDepth(gridSideInBlocks int) int {
	if gridSideInBlocks <= 1 {
		return 1
	}
	depth := int(math.Ceil(math.Log2(float64(gridSideInBlocks))))
	if depth < 1 {
		depth = 1
	}
	return depth
}

// buildLevels performs the bottom-up merge of spec §4.6 steps 1-3, returning
// the root levelNode. entries must already be Morton-sorted ascending.
func buildLevels(entries []blockEntry, acc *Accumulator) *levelNode {
	if len(entries) == 0 {
		return nil
	}

	level := make([]*levelNode, len(entries))
	for i, e := range entries {
		n := &levelNode{morton: e.morton, typ: e.typ}
		if e.typ == BlockMixed {
			n.lo, n.hi = acc.mixedMasks[e.maskIdx][0], acc.mixedMasks[e.maskIdx][1]
		}
		level[i] = n
	}

	for {
		if len(level) == 1 && level[0].morton == 0 {
			return level[0]
		}
		if len(level) == 0 {
			return nil
		}

		var next []*levelNode
		i := 0
		for i < len(level) {
			parentMorton := level[i].morton / 8
			j := i
			parent := &levelNode{morton: parentMorton, typ: blockInterior}
			allSolid := true
			for j < len(level) && level[j].morton/8 == parentMorton {
				octant := int(level[j].morton % 8)
				parent.children[octant] = level[j]
				if level[j].typ != BlockSolid {
					allSolid = false
				}
				j++
			}
			if allSolid && countChildren(parent) == 8 {
				parent.typ = BlockSolid
				parent.children = [8]*levelNode{}
			}
			next = append(next, parent)
			i = j
		}

		if len(next) == len(level) {
			// No further grouping possible (every node already at morton 0,
			// or a pathological single-entry level); avoid an infinite loop.
			if len(next) == 1 {
				return next[0]
			}
		}
		level = next
	}
}

func countChildren(n *levelNode) int {
	c := 0
	for _, ch := range n.children {
		if ch != nil {
			c++
		}
	}
	return c
}
