package sogwriter

import (
	"image/color"
	"math"

	"github.com/sogforge/sogforge/internal/quat"
	"github.com/sogforge/sogforge/internal/storage"
	"github.com/sogforge/sogforge/internal/texture"
	"github.com/sogforge/sogforge/pkg/splat"
)

// quatComponentOrder lists, for each possible largest-magnitude component
// index i* (0=w,1=x,2=y,3=z), the order the three remaining components are
// packed into the R,G,B channels.
var quatComponentOrder = [4][3]int{
	{1, 2, 3},
	{0, 2, 3},
	{0, 1, 3},
	{0, 1, 2},
}

var sqrt2 = math.Sqrt2

// writeQuaternions writes the quats texture: each row's rotation normalized, its
// largest-magnitude component dropped (it is always >= 1/sqrt(4), so it is
// recoverable from the other three plus a sign), and the remaining three
// scaled by sqrt(2) and packed as unorm8.
func writeQuaternions(t *splat.Table, sink storage.Sink, opts Options, width, height int, meta *Meta) error {
	n := t.RowCount()
	cols := make([]*splat.Column, 4)
	for i, name := range []string{"rot_0", "rot_1", "rot_2", "rot_3"} {
		c, err := requireColumn(t, name)
		if err != nil {
			return err
		}
		cols[i] = c
	}

	grid := texture.NewGrid(width, height)
	for r := 0; r < n; r++ {
		var raw [4]float32
		for i, c := range cols {
			v, err := c.ReadAsF32(r)
			if err != nil {
				return err
			}
			raw[i] = v
		}
		q := quat.Quat{W: raw[0], X: raw[1], Y: raw[2], Z: raw[3]}.Normalized()
		idx := quat.LargestComponentIndex(q)
		q = quat.CanonicalSign(q)
		vals := [4]float32{q.W, q.X, q.Y, q.Z}

		order := quatComponentOrder[idx]
		var rgb [3]uint8
		for j, ci := range order {
			scaled := float64(vals[ci]) * sqrt2
			rgb[j] = clampU8((0.5*scaled + 0.5) * 255)
		}
		x, y := r%width, r/width
		grid.Set(x, y, color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: uint8(252 + idx)})
	}

	name, err := writeTexture(sink, opts, "quats", grid)
	if err != nil {
		return err
	}
	meta.Quats = QuatsMeta{Files: []string{name}}
	return nil
}
