package splat

import "testing"

func TestBoxEnclosesAndUnion(t *testing.T) {
	b := EmptyBox()
	b.Encloses([3]float32{1, 2, 3})
	b.Encloses([3]float32{-1, 5, 0})
	if b.Min != [3]float32{-1, 2, 0} {
		t.Errorf("unexpected min: %v", b.Min)
	}
	if b.Max != [3]float32{1, 5, 3} {
		t.Errorf("unexpected max: %v", b.Max)
	}

	other := EmptyBox()
	other.Encloses([3]float32{10, -10, 10})
	b.Union(other)
	if b.Max[0] != 10 || b.Min[1] != -10 {
		t.Errorf("union failed: %+v", b)
	}
}

func TestBoxWidestAxisAndOverlap(t *testing.T) {
	b := Box{Min: [3]float32{0, 0, 0}, Max: [3]float32{1, 5, 2}}
	if b.WidestAxis() != 1 {
		t.Errorf("expected widest axis 1, got %d", b.WidestAxis())
	}
	if b.LargestDim() != 5 {
		t.Errorf("expected largest dim 5, got %v", b.LargestDim())
	}

	touching := Box{Min: [3]float32{1, 0, 0}, Max: [3]float32{2, 1, 1}}
	if !b.Overlaps(touching) {
		t.Error("touching boxes should overlap")
	}
	disjoint := Box{Min: [3]float32{100, 100, 100}, Max: [3]float32{200, 200, 200}}
	if b.Overlaps(disjoint) {
		t.Error("disjoint boxes should not overlap")
	}
}

func TestEncloseByCentroids(t *testing.T) {
	tbl := makeXYZTable(4)
	box, err := EncloseByCentroids(tbl, []int{0, 1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if box.Min[0] != 0 || box.Max[0] != 3 {
		t.Errorf("unexpected box: %+v", box)
	}
}
