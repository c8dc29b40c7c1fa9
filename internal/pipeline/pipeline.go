// Package pipeline applies an ordered list of process actions to a splat
// table (spec §4.8): transforms compose through internal/transform, filters
// build a keep-mask and permute.
package pipeline

import (
	"fmt"
	"math"

	sferrors "github.com/sogforge/sogforge/internal/errors"
	"github.com/sogforge/sogforge/internal/quat"
	"github.com/sogforge/sogforge/internal/transform"
	"github.com/sogforge/sogforge/pkg/splat"
)

// Comparator is a FilterByValue comparison operator.
type Comparator string

const (
	Lt  Comparator = "lt"
	Lte Comparator = "lte"
	Gt  Comparator = "gt"
	Gte Comparator = "gte"
	Eq  Comparator = "eq"
	Neq Comparator = "neq"
)

// Action is a single pipeline step. Run returns the (possibly unchanged)
// table after applying the action; filters return a new, permuted table.
type Action interface {
	Run(t *splat.Table) (*splat.Table, error)
}

// Translate adds V to every row's (x,y,z).
type Translate struct{ V [3]float32 }

func (a Translate) Run(t *splat.Table) (*splat.Table, error) {
	err := transform.Apply(t, transform.Options{Translation: a.V, Rotation: quat.Quat{W: 1}, Scale: 1})
	return t, err
}

// Rotate converts EulerDeg (XYZ intrinsic, degrees) to a quaternion and
// applies the composed TRS/SH-rotation transform.
type Rotate struct{ EulerDeg [3]float32 }

func (a Rotate) Run(t *splat.Table) (*splat.Table, error) {
	r := quat.FromEulerXYZIntrinsic(a.EulerDeg[0], a.EulerDeg[1], a.EulerDeg[2])
	err := transform.Apply(t, transform.Options{Rotation: r, Scale: 1})
	return t, err
}

// Scale scales positions by S and adds log(S) to every scale_* column. SH
// coefficients are left untouched (no rotation component).
type Scale struct{ S float32 }

func (a Scale) Run(t *splat.Table) (*splat.Table, error) {
	err := transform.Apply(t, transform.Options{Rotation: quat.Quat{W: 1}, Scale: a.S})
	return t, err
}

// FilterNaN drops rows where any position, rotation, scale, opacity, or SH
// coefficient column is non-finite.
type FilterNaN struct{}

func (FilterNaN) Run(t *splat.Table) (*splat.Table, error) {
	keep := make([]int, 0, t.RowCount())
	cols := t.Columns()
	for row := 0; row < t.RowCount(); row++ {
		finite := true
		for _, c := range cols {
			if c.Name() == "lod" {
				continue
			}
			v, err := c.ReadAsF32(row)
			if err != nil {
				return nil, err
			}
			if isNonFinite(v) {
				finite = false
				break
			}
		}
		if finite {
			keep = append(keep, row)
		}
	}
	return t.Permute(keep)
}

func isNonFinite(v float32) bool {
	f := float64(v)
	return math.IsNaN(f) || math.IsInf(f, 0)
}

// FilterByValue keeps rows where Column's value satisfies Cmp against V.
type FilterByValue struct {
	Column string
	Cmp    Comparator
	V      float32
}

func (a FilterByValue) Run(t *splat.Table) (*splat.Table, error) {
	col, err := t.Column(a.Column)
	if err != nil {
		return nil, err
	}
	pred, err := comparatorFunc(a.Cmp)
	if err != nil {
		return nil, err
	}
	keep := make([]int, 0, t.RowCount())
	for row := 0; row < t.RowCount(); row++ {
		v, err := col.ReadAsF32(row)
		if err != nil {
			return nil, err
		}
		if pred(v, a.V) {
			keep = append(keep, row)
		}
	}
	return t.Permute(keep)
}

func comparatorFunc(c Comparator) (func(a, b float32) bool, error) {
	switch c {
	case Lt:
		return func(a, b float32) bool { return a < b }, nil
	case Lte:
		return func(a, b float32) bool { return a <= b }, nil
	case Gt:
		return func(a, b float32) bool { return a > b }, nil
	case Gte:
		return func(a, b float32) bool { return a >= b }, nil
	case Eq:
		return func(a, b float32) bool { return a == b }, nil
	case Neq:
		return func(a, b float32) bool { return a != b }, nil
	default:
		return nil, sferrors.Newf(sferrors.UserInput, sferrors.CodeBadArgs, "unknown FilterByValue comparator %q", c)
	}
}

// FilterBands drops every f_rest_* column belonging to a band beyond N
// (0..3). Row count is unchanged.
type FilterBands struct{ N int }

func (a FilterBands) Run(t *splat.Table) (*splat.Table, error) {
	if a.N < 0 || a.N > 3 {
		return nil, sferrors.Newf(sferrors.UserInput, sferrors.CodeBadArgs, "FilterBands n must be 0..3, got %d", a.N)
	}
	bands, err := splat.BandCount(t)
	if err != nil {
		return nil, err
	}
	if a.N >= bands {
		return t, nil
	}
	keepCount := splat.BandCoeffCount(a.N) * 3
	total := splat.BandCoeffCount(bands) * 3
	for i := keepCount; i < total; i++ {
		t.RemoveColumn(fmt.Sprintf("f_rest_%d", i))
	}
	return t, nil
}

// FilterBox keeps rows whose position lies within [Min,Max]. Missing bounds
// (±Inf) impose no constraint on that side of that axis.
type FilterBox struct{ Min, Max [3]float32 }

func (a FilterBox) Run(t *splat.Table) (*splat.Table, error) {
	xc, err := t.Column("x")
	if err != nil {
		return nil, err
	}
	yc, err := t.Column("y")
	if err != nil {
		return nil, err
	}
	zc, err := t.Column("z")
	if err != nil {
		return nil, err
	}
	box := splat.Box{Min: a.Min, Max: a.Max}
	keep := make([]int, 0, t.RowCount())
	for row := 0; row < t.RowCount(); row++ {
		x, _ := xc.ReadAsF32(row)
		y, _ := yc.ReadAsF32(row)
		z, _ := zc.ReadAsF32(row)
		if box.Contains([3]float32{x, y, z}) {
			keep = append(keep, row)
		}
	}
	return t.Permute(keep)
}

// FilterSphere keeps rows within Radius of Center.
type FilterSphere struct {
	Center [3]float32
	Radius float32
}

func (a FilterSphere) Run(t *splat.Table) (*splat.Table, error) {
	xc, err := t.Column("x")
	if err != nil {
		return nil, err
	}
	yc, err := t.Column("y")
	if err != nil {
		return nil, err
	}
	zc, err := t.Column("z")
	if err != nil {
		return nil, err
	}
	r2 := a.Radius * a.Radius
	keep := make([]int, 0, t.RowCount())
	for row := 0; row < t.RowCount(); row++ {
		x, _ := xc.ReadAsF32(row)
		y, _ := yc.ReadAsF32(row)
		z, _ := zc.ReadAsF32(row)
		dx, dy, dz := x-a.Center[0], y-a.Center[1], z-a.Center[2]
		if dx*dx+dy*dy+dz*dz <= r2 {
			keep = append(keep, row)
		}
	}
	return t.Permute(keep)
}

// Param is stashed for generator readers; it has no effect on the table.
type Param struct {
	Key, Value string
}

func (Param) Run(t *splat.Table) (*splat.Table, error) { return t, nil }

// Lod sets (creating if absent) the lod column to N for every row.
type Lod struct{ N int }

func (a Lod) Run(t *splat.Table) (*splat.Table, error) {
	if !t.HasColumn(splat.LodColumn) {
		col := splat.NewColumn(splat.LodColumn, splat.F32, t.RowCount())
		if err := t.AddColumn(col); err != nil {
			return nil, err
		}
	}
	col, err := t.Column(splat.LodColumn)
	if err != nil {
		return nil, err
	}
	for row := 0; row < t.RowCount(); row++ {
		col.WriteF32(row, float32(a.N))
	}
	return t, nil
}

// Run applies every action in actions, left-to-right, to t.
func Run(t *splat.Table, actions []Action) (*splat.Table, error) {
	cur := t
	for i, act := range actions {
		next, err := act.Run(cur)
		if err != nil {
			return nil, fmt.Errorf("pipeline action %d (%T): %w", i, act, err)
		}
		cur = next
	}
	return cur, nil
}
