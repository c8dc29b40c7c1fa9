package sogwriter

import (
	"image/color"
	"math"

	"github.com/sogforge/sogforge/internal/storage"
	"github.com/sogforge/sogforge/internal/texture"
	"github.com/sogforge/sogforge/pkg/splat"
)

// logTransform matches sog_writer.cpp's position pre-conditioning: a
// symmetric log that compresses large magnitudes without a sign ambiguity at
// zero.
func logTransform(v float32) float32 {
	return float32(math.Copysign(1, float64(v)) * math.Log1p(math.Abs(float64(v))))
}

// writeMeans writes means_l/means_u: position packed as two RGBA textures,
// low and high bytes of a per-axis-normalized 16-bit log-transformed value.
func writeMeans(t *splat.Table, sink storage.Sink, opts Options, width, height int, meta *Meta) error {
	n := t.RowCount()
	axisCols := make([]*splat.Column, 3)
	for i, name := range []string{"x", "y", "z"} {
		c, err := requireColumn(t, name)
		if err != nil {
			return err
		}
		axisCols[i] = c
	}

	transformed := make([][]float32, 3)
	mins := [3]float32{float32(math.Inf(1)), float32(math.Inf(1)), float32(math.Inf(1))}
	maxs := [3]float32{float32(math.Inf(-1)), float32(math.Inf(-1)), float32(math.Inf(-1))}
	for a := 0; a < 3; a++ {
		transformed[a] = make([]float32, n)
		for r := 0; r < n; r++ {
			v, err := axisCols[a].ReadAsF32(r)
			if err != nil {
				return err
			}
			m := logTransform(v)
			transformed[a][r] = m
			if m < mins[a] {
				mins[a] = m
			}
			if m > maxs[a] {
				maxs[a] = m
			}
		}
	}

	low := texture.NewGrid(width, height)
	high := texture.NewGrid(width, height)
	for r := 0; r < n; r++ {
		x, y := r%width, r/width
		var lo, hi [3]uint8
		for a := 0; a < 3; a++ {
			span := maxs[a] - mins[a]
			var q float64
			if span > 0 {
				q = clamp01(float64((transformed[a][r] - mins[a]) / span))
			}
			u16 := clampU16(q * 65535)
			lo[a] = uint8(u16)
			hi[a] = uint8(u16 >> 8)
		}
		low.Set(x, y, color.RGBA{R: lo[0], G: lo[1], B: lo[2], A: 255})
		high.Set(x, y, color.RGBA{R: hi[0], G: hi[1], B: hi[2], A: 255})
	}

	lowName, err := writeTexture(sink, opts, "means_l", low)
	if err != nil {
		return err
	}
	highName, err := writeTexture(sink, opts, "means_u", high)
	if err != nil {
		return err
	}

	meta.Means = MeansMeta{Mins: mins, Maxs: maxs, Files: []string{lowName, highName}}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
