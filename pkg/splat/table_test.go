package splat

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func makeXYZTable(n int) *Table {
	x := NewColumn("x", F32, n)
	y := NewColumn("y", F32, n)
	z := NewColumn("z", F32, n)
	for i := 0; i < n; i++ {
		x.WriteF32(i, float32(i))
		y.WriteF32(i, float32(i*2))
		z.WriteF32(i, float32(i*3))
	}
	t, _ := NewTable(x, y, z)
	return t
}

func TestTableAddColumnLengthMismatch(t *testing.T) {
	tbl, _ := NewTable(NewColumn("x", F32, 3))
	err := tbl.AddColumn(NewColumn("y", F32, 2))
	if err == nil {
		t.Fatal("expected error adding mismatched-length column")
	}
}

func TestTableRemoveColumn(t *testing.T) {
	tbl := makeXYZTable(3)
	tbl.RemoveColumn("y")
	if tbl.HasColumn("y") {
		t.Error("y should have been removed")
	}
	if tbl.ColumnCount() != 2 {
		t.Errorf("expected 2 columns, got %d", tbl.ColumnCount())
	}
	if _, err := tbl.Column("z"); err != nil {
		t.Errorf("z should still be reachable after removing y: %v", err)
	}
}

func TestTableReadWriteRow(t *testing.T) {
	tbl := makeXYZTable(2)
	row, err := tbl.ReadRow(1)
	if err != nil {
		t.Fatal(err)
	}
	if row["x"] != 1 || row["y"] != 2 || row["z"] != 3 {
		t.Errorf("unexpected row: %+v", row)
	}
	if err := tbl.WriteRow(1, map[string]float32{"x": 100}); err != nil {
		t.Fatal(err)
	}
	row, _ = tbl.ReadRow(1)
	if row["x"] != 100 || row["y"] != 2 {
		t.Errorf("WriteRow should only touch named columns: %+v", row)
	}
}

func TestTablePermuteBasic(t *testing.T) {
	tbl := makeXYZTable(4)
	out, err := tbl.Permute([]int{3, 1, 0, 2})
	if err != nil {
		t.Fatal(err)
	}
	xc, _ := out.Column("x")
	want := []float32{3, 1, 0, 2}
	for i, w := range want {
		got, _ := xc.ReadAsF32(i)
		if got != w {
			t.Errorf("row %d: got %v want %v", i, got, w)
		}
	}
}

func TestTablePermuteOutOfRange(t *testing.T) {
	tbl := makeXYZTable(2)
	if _, err := tbl.Permute([]int{0, 5}); err == nil {
		t.Fatal("expected error for out-of-range permutation index")
	}
}

// TestProperty_PermutationIsBijection validates invariant 2 from spec §8:
// permute(T, pi) for a permutation pi of 0..n-1 preserves the multiset of rows.
func TestProperty_PermutationIsBijection(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("permute preserves the row multiset", prop.ForAll(
		func(n int) bool {
			tbl := makeXYZTable(n)
			perm := randPermutation(n)
			out, err := tbl.Permute(perm)
			if err != nil {
				return false
			}
			if out.RowCount() != n {
				return false
			}
			xc, _ := tbl.Column("x")
			oc, _ := out.Column("x")
			seen := make(map[float32]int, n)
			for i := 0; i < n; i++ {
				v, _ := xc.ReadAsF32(i)
				seen[v]++
			}
			for i := 0; i < n; i++ {
				v, _ := oc.ReadAsF32(i)
				seen[v]--
			}
			for _, c := range seen {
				if c != 0 {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 64),
	))

	properties.TestingRun(t)
}

// TestProperty_TableWidthInvariant validates invariant 1 from spec §8: every
// operation preserves equal column lengths.
func TestProperty_TableWidthInvariant(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("permute and cloneSubset preserve equal column lengths", prop.ForAll(
		func(n int) bool {
			tbl := makeXYZTable(n)
			perm := randPermutation(n)
			out, err := tbl.Permute(perm)
			if err != nil {
				return false
			}
			rc := out.RowCount()
			for _, c := range out.Columns() {
				if c.Len() != rc {
					return false
				}
			}
			sub, err := tbl.CloneSubset("x", "z")
			if err != nil {
				return false
			}
			rc2 := sub.RowCount()
			for _, c := range sub.Columns() {
				if c.Len() != rc2 {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 32),
	))

	properties.TestingRun(t)
}

// randPermutation returns a deterministic-ish Fisher-Yates shuffle of 0..n-1.
// Deterministic seeding keeps property-test failures reproducible without
// pulling a full PRNG dependency into the test: we derive randomness from n
// itself via a simple LCG, which is all a shuffle-soundness check needs.
func randPermutation(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	state := uint32(n*2654435761 + 1)
	for i := n - 1; i > 0; i-- {
		state = state*1664525 + 1013904223
		j := int(state % uint32(i+1))
		p[i], p[j] = p[j], p[i]
	}
	return p
}
