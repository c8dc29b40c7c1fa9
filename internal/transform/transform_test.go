package transform

import (
	"math"
	"testing"

	"github.com/sogforge/sogforge/internal/quat"
	"github.com/sogforge/sogforge/pkg/splat"
)

func approxEq(a, b, tol float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func baseTable(t *testing.T, bands int) *splat.Table {
	t.Helper()
	names := []string{"x", "y", "z", "rot_0", "rot_1", "rot_2", "rot_3", "scale_0", "scale_1", "scale_2", "f_dc_0", "f_dc_1", "f_dc_2", "opacity"}
	counts := map[int]int{1: 9, 2: 24, 3: 45}
	if n, ok := counts[bands]; ok {
		for i := 0; i < n; i++ {
			names = append(names, "f_rest_"+itoa(i))
		}
	}
	cols := make([]*splat.Column, len(names))
	for i, name := range names {
		cols[i] = splat.NewColumn(name, splat.F32, 1)
	}
	tbl, err := splat.NewTable(cols...)
	if err != nil {
		t.Fatal(err)
	}
	row := map[string]float32{
		"x": 1, "y": 0, "z": 0,
		"rot_0": 1, "rot_1": 0, "rot_2": 0, "rot_3": 0,
		"scale_0": 0, "scale_1": 0, "scale_2": 0,
		"f_dc_0": 0.1, "f_dc_1": 0.2, "f_dc_2": 0.3,
		"opacity": 0,
	}
	if err := tbl.WriteRow(0, row); err != nil {
		t.Fatal(err)
	}
	return tbl
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

func TestApplyIdentityTransformLeavesPositionUnchanged(t *testing.T) {
	tbl := baseTable(t, 0)
	err := Apply(tbl, Options{Rotation: quat.Quat{W: 1}, Scale: 1})
	if err != nil {
		t.Fatal(err)
	}
	x, _ := tbl.Column("x")
	v, _ := x.ReadAsF32(0)
	if !approxEq(v, 1, 1e-5) {
		t.Errorf("expected x unchanged at 1, got %v", v)
	}
}

func TestApplyTranslation(t *testing.T) {
	tbl := baseTable(t, 0)
	err := Apply(tbl, Options{Translation: [3]float32{5, 5, 5}, Rotation: quat.Quat{W: 1}, Scale: 1})
	if err != nil {
		t.Fatal(err)
	}
	x, _ := tbl.Column("x")
	y, _ := tbl.Column("y")
	vx, _ := x.ReadAsF32(0)
	vy, _ := y.ReadAsF32(0)
	if !approxEq(vx, 6, 1e-5) || !approxEq(vy, 5, 1e-5) {
		t.Errorf("expected translated position (6,5,5), got (%v,%v)", vx, vy)
	}
}

func TestApplyScaleUpdatesLogScale(t *testing.T) {
	tbl := baseTable(t, 0)
	err := Apply(tbl, Options{Rotation: quat.Quat{W: 1}, Scale: 2})
	if err != nil {
		t.Fatal(err)
	}
	sc, _ := tbl.Column("scale_0")
	v, _ := sc.ReadAsF32(0)
	want := float32(math.Log(2))
	if !approxEq(v, want, 1e-5) {
		t.Errorf("expected scale_0 = log(2) = %v, got %v", want, v)
	}
	x, _ := tbl.Column("x")
	vx, _ := x.ReadAsF32(0)
	if !approxEq(vx, 2, 1e-5) {
		t.Errorf("expected position scaled to 2, got %v", vx)
	}
}

func TestApplyRejectsNonPositiveScale(t *testing.T) {
	tbl := baseTable(t, 0)
	if err := Apply(tbl, Options{Rotation: quat.Quat{W: 1}, Scale: 0}); err == nil {
		t.Error("expected error for zero scale")
	}
	if err := Apply(tbl, Options{Rotation: quat.Quat{W: 1}, Scale: -1}); err == nil {
		t.Error("expected error for negative scale")
	}
}

func TestApplyRotationComposesQuaternion(t *testing.T) {
	tbl := baseTable(t, 0)
	rot := quat.FromEulerXYZIntrinsic(0, 0, 90)
	if err := Apply(tbl, Options{Rotation: rot, Scale: 1}); err != nil {
		t.Fatal(err)
	}
	rw, _ := tbl.Column("rot_0")
	w, _ := rw.ReadAsF32(0)
	// starting quaternion was identity, so result should equal `rot`
	// normalized; just check it's no longer identity and has unit norm.
	rx, _ := tbl.Column("rot_1")
	ry, _ := tbl.Column("rot_2")
	rz, _ := tbl.Column("rot_3")
	x, _ := rx.ReadAsF32(0)
	y, _ := ry.ReadAsF32(0)
	z, _ := rz.ReadAsF32(0)
	norm := math.Sqrt(float64(w*w + x*x + y*y + z*z))
	if !approxEq(float32(norm), 1, 1e-4) {
		t.Errorf("expected unit quaternion after composition, norm=%v", norm)
	}
}

func TestApplyRotatesBand1SHCoefficients(t *testing.T) {
	tbl := baseTable(t, 1)
	row := map[string]float32{
		"f_rest_0": 1, "f_rest_1": 0, "f_rest_2": 0,
		"f_rest_3": 0, "f_rest_4": 1, "f_rest_5": 0,
		"f_rest_6": 0, "f_rest_7": 0, "f_rest_8": 1,
	}
	if err := tbl.WriteRow(0, row); err != nil {
		t.Fatal(err)
	}
	rot := quat.FromEulerXYZIntrinsic(0, 0, 90)
	if err := Apply(tbl, Options{Rotation: rot, Scale: 1}); err != nil {
		t.Fatal(err)
	}
	// band-1 rotation should not silently leave everything unchanged for a
	// 90-degree rotation.
	changed := false
	for i := 0; i < 9; i++ {
		c, _ := tbl.Column("f_rest_" + itoa(i))
		v, _ := c.ReadAsF32(0)
		if i < 3 && !approxEq(v, row["f_rest_"+itoa(i)], 1e-6) {
			changed = true
		}
	}
	if !changed {
		t.Error("expected band-1 SH coefficients to change under a 90-degree rotation")
	}
}

func TestApplyBand0SkipsSHRotation(t *testing.T) {
	tbl := baseTable(t, 0)
	rot := quat.FromEulerXYZIntrinsic(45, 10, 5)
	if err := Apply(tbl, Options{Rotation: rot, Scale: 1}); err != nil {
		t.Fatal(err)
	}
}

func TestChannelColumnsGathersBandMajorChannelMajorLayout(t *testing.T) {
	tbl := baseTable(t, 3)
	cols, err := channelColumns(tbl, 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(cols) != 15 {
		t.Fatalf("expected 15 columns for R channel at 3 bands, got %d", len(cols))
	}
	// R channel's L1 triplet occupies f_rest_0..2, L2 occupies f_rest_9..13,
	// L3 occupies f_rest_24..30.
	wantNames := []string{"f_rest_0", "f_rest_1", "f_rest_2", "f_rest_9", "f_rest_10", "f_rest_11", "f_rest_12", "f_rest_13", "f_rest_24", "f_rest_25", "f_rest_26", "f_rest_27", "f_rest_28", "f_rest_29", "f_rest_30"}
	for i, name := range wantNames {
		want, _ := tbl.Column(name)
		if cols[i] != want {
			t.Errorf("column %d: expected %s", i, name)
		}
	}
}
