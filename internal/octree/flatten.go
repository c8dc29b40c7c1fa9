package octree

// solidLeafSentinel marks a solid leaf node: child mask 0xFF, base offset 0.
// Unambiguous against a real interior node because a real interior node's
// base offset is always > 0 (spec §4.6).
const solidLeafSentinel = 0xFF000000

// Tree is the flattened Laine-Karras sparse voxel octree.
type Tree struct {
	Nodes    []uint32
	LeafData []uint32 // (lo,hi) pairs, two u32 per mixed leaf

	GridBoundsMin, GridBoundsMax [3]float32
	SceneBoundsMin, SceneBoundsMax [3]float32
	VoxelResolution float32
	LeafSize        int
	TreeDepth       int
	InteriorCount   int
	MixedLeafCount  int
}

// Flatten performs the breadth-first Laine-Karras flatten of spec §4.6:
// one u32 per node in emission order, children of one parent contiguous and
// ordered by ascending present octant.
func flatten(root *levelNode) (nodes []uint32, leafData []uint32, interiorCount, mixedLeafCount int) {
	if root == nil {
		return nil, nil, 0, 0
	}

	nodes = append(nodes, 0) // placeholder for root, index 0
	queue := []*levelNode{root}
	queuePos := []int{0}

	for len(queue) > 0 {
		n := queue[0]
		idx := queuePos[0]
		queue = queue[1:]
		queuePos = queuePos[1:]

		switch n.typ {
		case BlockSolid:
			nodes[idx] = solidLeafSentinel
		case BlockMixed:
			leafIdx := len(leafData) / 2
			nodes[idx] = uint32(leafIdx) & 0x00FFFFFF
			leafData = append(leafData, n.lo, n.hi)
			mixedLeafCount++
		case blockInterior:
			interiorCount++
			var childMask uint32
			var present []*levelNode
			for octant := 0; octant < 8; octant++ {
				if n.children[octant] != nil {
					childMask |= 1 << uint(octant)
					present = append(present, n.children[octant])
				}
			}
			baseOffset := uint32(len(nodes))
			nodes[idx] = (childMask << 24) | (baseOffset & 0x00FFFFFF)
			for _, child := range present {
				childIdx := len(nodes)
				nodes = append(nodes, 0)
				queue = append(queue, child)
				queuePos = append(queuePos, childIdx)
			}
		}
	}

	return nodes, leafData, interiorCount, mixedLeafCount
}
