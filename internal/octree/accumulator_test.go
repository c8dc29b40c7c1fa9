package octree

import "testing"

func TestClassify(t *testing.T) {
	if Classify(0, 0) != BlockEmpty {
		t.Error("expected empty classification for zero mask")
	}
	if Classify(0xFFFFFFFF, 0xFFFFFFFF) != BlockSolid {
		t.Error("expected solid classification for all-ones mask")
	}
	if Classify(1, 0) != BlockMixed {
		t.Error("expected mixed classification for partial mask")
	}
}

func TestAccumulatorAddEmptyIsDropped(t *testing.T) {
	acc := NewAccumulator(10)
	acc.Add(42, 0, 0)
	mixed, solid := acc.Count()
	if mixed != 0 || solid != 0 {
		t.Fatalf("expected empty blocks to be dropped, got mixed=%d solid=%d", mixed, solid)
	}
}

func TestAccumulatorAddSolidAndMixed(t *testing.T) {
	acc := NewAccumulator(10)
	acc.Add(1, 0xFFFFFFFF, 0xFFFFFFFF)
	acc.Add(2, 1, 0)
	mixed, solid := acc.Count()
	if mixed != 1 || solid != 1 {
		t.Fatalf("expected 1 mixed + 1 solid, got mixed=%d solid=%d", mixed, solid)
	}
}

func TestAccumulatorMergesRepeatedMixedBlock(t *testing.T) {
	acc := NewAccumulator(10)
	acc.Add(7, 0x1, 0)
	acc.Add(7, 0x2, 0)
	lo, hi, ok := acc.Mask(7)
	if !ok {
		t.Fatal("expected block 7 to be present")
	}
	if lo != 0x3 || hi != 0 {
		t.Errorf("expected merged mask 0x3, got lo=%x hi=%x", lo, hi)
	}
	mixed, _ := acc.Count()
	if mixed != 1 {
		t.Fatalf("expected a single merged entry, got %d", mixed)
	}
}

func TestAccumulatorMergeToFullPromotesSolid(t *testing.T) {
	acc := NewAccumulator(10)
	acc.Add(3, 0xFFFFFFFF, 0)
	acc.Add(3, 0, 0xFFFFFFFF)
	mixed, solid := acc.Count()
	if mixed != 0 || solid != 1 {
		t.Fatalf("expected promotion to solid, got mixed=%d solid=%d", mixed, solid)
	}
}

func TestAccumulatorClear(t *testing.T) {
	acc := NewAccumulator(10)
	acc.Add(1, 1, 0)
	acc.Add(2, 0xFFFFFFFF, 0xFFFFFFFF)
	acc.Clear()
	mixed, solid := acc.Count()
	if mixed != 0 || solid != 0 {
		t.Fatalf("expected empty accumulator after Clear, got mixed=%d solid=%d", mixed, solid)
	}
}

func TestSortedEntriesAscending(t *testing.T) {
	acc := NewAccumulator(10)
	acc.Add(100, 1, 0)
	acc.Add(5, 1, 0)
	acc.Add(50, 0xFFFFFFFF, 0xFFFFFFFF)
	entries := acc.sortedEntries()
	for i := 1; i < len(entries); i++ {
		if entries[i-1].morton > entries[i].morton {
			t.Fatalf("entries not sorted ascending: %v", entries)
		}
	}
}
