// Package gaussianbvh computes per-splat world-space extents (spec §4.5) and
// builds a bounding-volume hierarchy over them, reusing btree's median-split
// recursion over splat centroids.
package gaussianbvh

import (
	"math"

	"github.com/sogforge/sogforge/internal/quat"
	"github.com/sogforge/sogforge/pkg/splat"
)

// sigmaMultiple is the number of standard deviations the local bounding box
// extends to in each direction before being transformed into world space.
const sigmaMultiple = 3

var unitCorners = [8][3]float32{
	{-1, -1, -1}, {1, -1, -1}, {-1, 1, -1}, {1, 1, -1},
	{-1, -1, 1}, {1, -1, 1}, {-1, 1, 1}, {1, 1, 1},
}

// Extents computes, for every row index given, the world-space AABB
// half-extents of that splat's 3σ box (spec §4.5 steps 1-5). Rows whose
// result is non-finite get zero half-extents and increment invalidCount.
func Extents(t *splat.Table, indices []int) (halfExtents [][3]float32, invalidCount int, err error) {
	xc, err := t.Column("x")
	if err != nil {
		return nil, 0, err
	}
	yc, err := t.Column("y")
	if err != nil {
		return nil, 0, err
	}
	zc, err := t.Column("z")
	if err != nil {
		return nil, 0, err
	}
	rot := make([]*splat.Column, 4)
	for i := 0; i < 4; i++ {
		rot[i], err = t.Column(rotColumnName(i))
		if err != nil {
			return nil, 0, err
		}
	}
	scale := make([]*splat.Column, 3)
	for i := 0; i < 3; i++ {
		scale[i], err = t.Column(scaleColumnName(i))
		if err != nil {
			return nil, 0, err
		}
	}

	out := make([][3]float32, len(indices))
	for n, row := range indices {
		px, _ := xc.ReadAsF32(row)
		py, _ := yc.ReadAsF32(row)
		pz, _ := zc.ReadAsF32(row)
		pos := [3]float32{px, py, pz}

		var sigma [3]float32
		for a := 0; a < 3; a++ {
			logScale, _ := scale[a].ReadAsF32(row)
			sigma[a] = float32(math.Exp(float64(logScale)))
		}

		var rw, rx, ry, rz float32
		rw, _ = rot[0].ReadAsF32(row)
		rx, _ = rot[1].ReadAsF32(row)
		ry, _ = rot[2].ReadAsF32(row)
		rz, _ = rot[3].ReadAsF32(row)
		q := quat.Quat{W: rw, X: rx, Y: ry, Z: rz}.Normalized()

		worldBox := splat.EmptyBox()
		valid := true
		for _, corner := range unitCorners {
			local := [3]float32{
				corner[0] * sigmaMultiple * sigma[0],
				corner[1] * sigmaMultiple * sigma[1],
				corner[2] * sigmaMultiple * sigma[2],
			}
			rotated := quat.RotateVector(q, local)
			world := [3]float32{rotated[0] + pos[0], rotated[1] + pos[1], rotated[2] + pos[2]}
			if !finite3(world) {
				valid = false
				break
			}
			worldBox.Encloses(world)
		}

		if !valid || !finite3(worldBox.Min) || !finite3(worldBox.Max) {
			out[n] = [3]float32{0, 0, 0}
			invalidCount++
			continue
		}

		ext := worldBox.Extent()
		out[n] = [3]float32{ext[0] / 2, ext[1] / 2, ext[2] / 2}
	}

	return out, invalidCount, nil
}

func finite3(v [3]float32) bool {
	for _, c := range v {
		if math.IsNaN(float64(c)) || math.IsInf(float64(c), 0) {
			return false
		}
	}
	return true
}

func rotColumnName(i int) string {
	names := [4]string{"rot_0", "rot_1", "rot_2", "rot_3"}
	return names[i]
}

func scaleColumnName(i int) string {
	names := [3]string{"scale_0", "scale_1", "scale_2"}
	return names[i]
}
