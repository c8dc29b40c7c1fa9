package octree

import "testing"

func TestFlattenSingleMixedLeaf(t *testing.T) {
	root := &levelNode{morton: 0, typ: BlockMixed, lo: 0x1, hi: 0x2}
	nodes, leafData, interior, mixedLeaves := flatten(root)
	if len(nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(nodes))
	}
	if nodes[0]>>24 != 0 {
		t.Errorf("expected child mask 0 for a mixed leaf, got %x", nodes[0]>>24)
	}
	if interior != 0 || mixedLeaves != 1 {
		t.Errorf("expected interior=0 mixedLeaves=1, got %d, %d", interior, mixedLeaves)
	}
	if len(leafData) != 2 || leafData[0] != 0x1 || leafData[1] != 0x2 {
		t.Errorf("unexpected leaf data: %v", leafData)
	}
}

func TestFlattenSingleSolidLeaf(t *testing.T) {
	root := &levelNode{morton: 0, typ: BlockSolid}
	nodes, _, _, _ := flatten(root)
	if nodes[0] != solidLeafSentinel {
		t.Errorf("expected solid sentinel, got %x", nodes[0])
	}
}

func TestFlattenInteriorWithTwoChildren(t *testing.T) {
	leafA := &levelNode{morton: 0, typ: BlockMixed, lo: 0xAA, hi: 0}
	leafB := &levelNode{morton: 0, typ: BlockSolid}
	root := &levelNode{morton: 0, typ: blockInterior}
	root.children[0] = leafA
	root.children[5] = leafB

	nodes, leafData, interior, mixedLeaves := flatten(root)
	if interior != 1 || mixedLeaves != 1 {
		t.Fatalf("expected interior=1 mixedLeaves=1, got %d, %d", interior, mixedLeaves)
	}
	wantMask := uint32(1<<0 | 1<<5)
	if nodes[0]>>24 != wantMask {
		t.Errorf("expected child mask %x, got %x", wantMask, nodes[0]>>24)
	}
	baseOffset := nodes[0] & 0x00FFFFFF
	if baseOffset <= 0 {
		t.Error("interior node base offset must be > position(n)")
	}
	if int(baseOffset) != 1 {
		t.Errorf("expected children written at index 1, got %d", baseOffset)
	}
	// children written in ascending octant order: octant 0 (mixed) first, then octant 5 (solid)
	if nodes[1]>>24 != 0 {
		t.Errorf("expected first child to be the mixed leaf, got %x", nodes[1])
	}
	if nodes[2] != solidLeafSentinel {
		t.Errorf("expected second child to be the solid leaf, got %x", nodes[2])
	}
	if len(leafData) != 2 {
		t.Errorf("expected 2 leaf data words, got %d", len(leafData))
	}
}

func TestFlattenNilRoot(t *testing.T) {
	nodes, leafData, interior, mixedLeaves := flatten(nil)
	if nodes != nil || leafData != nil || interior != 0 || mixedLeaves != 0 {
		t.Error("expected all-zero result for nil root")
	}
}
