package gaussianbvh

import (
	"math"
	"testing"

	"github.com/sogforge/sogforge/pkg/splat"
)

func makeGaussianTable(rows int) *splat.Table {
	names := []string{"x", "y", "z", "rot_0", "rot_1", "rot_2", "rot_3", "scale_0", "scale_1", "scale_2"}
	cols := make([]*splat.Column, len(names))
	for i, n := range names {
		cols[i] = splat.NewColumn(n, splat.F32, rows)
	}
	tbl, _ := splat.NewTable(cols...)
	for i := 0; i < rows; i++ {
		tbl.WriteRow(i, map[string]float32{
			"x": 0, "y": 0, "z": 0,
			"rot_0": 1, "rot_1": 0, "rot_2": 0, "rot_3": 0,
			"scale_0": 0, "scale_1": 0, "scale_2": 0,
		})
	}
	return tbl
}

func TestExtentsIdentityRotationUnitScale(t *testing.T) {
	tbl := makeGaussianTable(1)
	ext, invalid, err := Extents(tbl, []int{0})
	if err != nil {
		t.Fatal(err)
	}
	if invalid != 0 {
		t.Fatalf("expected no invalid rows, got %d", invalid)
	}
	want := float32(3) // sigma=exp(0)=1, half-extent = 3*sigma
	for a := 0; a < 3; a++ {
		if math.Abs(float64(ext[0][a]-want)) > 1e-4 {
			t.Errorf("axis %d: expected half-extent %v, got %v", a, want, ext[0][a])
		}
	}
}

func TestExtentsScalesWithLogScale(t *testing.T) {
	tbl := makeGaussianTable(1)
	tbl.WriteRow(0, map[string]float32{"scale_0": float32(math.Log(2))})
	ext, _, err := Extents(tbl, []int{0})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(float64(ext[0][0]-6)) > 1e-3 {
		t.Errorf("expected half-extent 6 for sigma=2, got %v", ext[0][0])
	}
}

func TestExtentsNonFiniteProducesZeroAndIncrementsInvalid(t *testing.T) {
	tbl := makeGaussianTable(1)
	tbl.WriteRow(0, map[string]float32{"scale_0": float32(math.Inf(1))})
	ext, invalid, err := Extents(tbl, []int{0})
	if err != nil {
		t.Fatal(err)
	}
	if invalid != 1 {
		t.Fatalf("expected 1 invalid row, got %d", invalid)
	}
	if ext[0] != [3]float32{0, 0, 0} {
		t.Errorf("expected zero half-extent for invalid row, got %v", ext[0])
	}
}

func TestExtentsTranslationIndependence(t *testing.T) {
	tbl := makeGaussianTable(1)
	tbl.WriteRow(0, map[string]float32{"x": 100, "y": -50, "z": 7})
	ext, _, err := Extents(tbl, []int{0})
	if err != nil {
		t.Fatal(err)
	}
	want := float32(3)
	for a := 0; a < 3; a++ {
		if math.Abs(float64(ext[0][a]-want)) > 1e-4 {
			t.Errorf("translation should not affect half-extent; axis %d got %v", a, ext[0][a])
		}
	}
}
