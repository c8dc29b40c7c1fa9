package octree

import "testing"

func TestBuildLevelsSingleBlockIsRootMorton0(t *testing.T) {
	acc := NewAccumulator(4)
	acc.Add(0, 1, 0)
	entries := acc.sortedEntries()
	root := buildLevels(entries, acc)
	if root == nil {
		t.Fatal("expected a root node")
	}
	if root.typ != BlockMixed {
		t.Errorf("expected single block to stay mixed at the root, got %v", root.typ)
	}
}

func TestBuildLevelsCollapsesAllSolidSiblings(t *testing.T) {
	acc := NewAccumulator(8)
	for i := uint64(0); i < 8; i++ {
		acc.Add(i, 0xFFFFFFFF, 0xFFFFFFFF)
	}
	entries := acc.sortedEntries()
	root := buildLevels(entries, acc)
	if root == nil {
		t.Fatal("expected a root node")
	}
	if root.typ != BlockSolid {
		t.Fatalf("expected 8 all-solid siblings to collapse to a solid parent, got %v", root.typ)
	}
}

func TestBuildLevelsPartialSiblingsStayInterior(t *testing.T) {
	acc := NewAccumulator(8)
	acc.Add(0, 0xFFFFFFFF, 0xFFFFFFFF)
	acc.Add(1, 1, 0) // mixed, breaks the all-solid collapse
	entries := acc.sortedEntries()
	root := buildLevels(entries, acc)
	if root.typ != blockInterior {
		t.Fatalf("expected interior node when not all children are solid, got %v", root.typ)
	}
	if countChildren(root) != 2 {
		t.Errorf("expected 2 children, got %d", countChildren(root))
	}
}

func TestTreeDepth(t *testing.T) {
	cases := map[int]int{1: 1, 2: 1, 3: 2, 8: 3, 9: 4}
	for side, want := range cases {
		if got := TreeDepth(side); got != want {
			t.Errorf("TreeDepth(%d) = %d, want %d", side, got, want)
		}
	}
}
