// Package transform applies a single rigid-body TRS (translation, rotation,
// scale) to every row of a splat table, including the corresponding
// rotation of spherical-harmonic coefficients (spec §4.9).
package transform

import (
	"fmt"
	"math"

	sferrors "github.com/sogforge/sogforge/internal/errors"
	"github.com/sogforge/sogforge/internal/quat"
	"github.com/sogforge/sogforge/pkg/splat"
)

// Options is one composed rigid transform: p -> R*(s*p) + t, quaternion
// q_new = r (x) q_old, and scale_i += log(s).
type Options struct {
	Translation [3]float32
	Rotation    quat.Quat
	Scale       float32
}

// Apply mutates t in place, applying opts to every row's position,
// rotation quaternion, log-scale, and (if present) f_rest SH coefficients.
func Apply(t *splat.Table, opts Options) error {
	if opts.Scale <= 0 || math.IsNaN(float64(opts.Scale)) || math.IsInf(float64(opts.Scale), 0) {
		return sferrors.Newf(sferrors.UserInput, sferrors.CodeBadArgs, "transform scale must be a finite positive number, got %v", opts.Scale)
	}
	r := opts.Rotation.Normalized()
	rotMat := quat.ToMat3(r)
	logScale := math.Log(float64(opts.Scale))

	bands, err := splat.BandCount(t)
	if err != nil {
		return err
	}
	var rotator *SHRotator
	if bands > 0 {
		rotator = NewSHRotator(rotMat)
	}

	xs, err := requireColumn(t, "x")
	if err != nil {
		return err
	}
	ys, err := requireColumn(t, "y")
	if err != nil {
		return err
	}
	zs, err := requireColumn(t, "z")
	if err != nil {
		return err
	}
	rotCols := [4]*splat.Column{}
	for i := 0; i < 4; i++ {
		rotCols[i], err = requireColumn(t, fmt.Sprintf("rot_%d", i))
		if err != nil {
			return err
		}
	}
	scaleCols := [3]*splat.Column{}
	for i := 0; i < 3; i++ {
		scaleCols[i], err = requireColumn(t, fmt.Sprintf("scale_%d", i))
		if err != nil {
			return err
		}
	}

	var channelCols [3][]*splat.Column
	if bands > 0 {
		coeffCount := splat.BandCoeffCount(bands)
		for ch := 0; ch < 3; ch++ {
			cols, cerr := channelColumns(t, bands, ch)
			if cerr != nil {
				return cerr
			}
			if len(cols) != coeffCount {
				return sferrors.Newf(sferrors.Internal, sferrors.CodeInvariantBroken,
					"resolved %d f_rest columns for channel %d, expected %d", len(cols), ch, coeffCount)
			}
			channelCols[ch] = cols
		}
	}

	n := t.RowCount()
	for row := 0; row < n; row++ {
		px, _ := xs.ReadAsF32(row)
		py, _ := ys.ReadAsF32(row)
		pz, _ := zs.ReadAsF32(row)
		sp := [3]float64{float64(px) * float64(opts.Scale), float64(py) * float64(opts.Scale), float64(pz) * float64(opts.Scale)}
		wp := applyMat3(rotMat, sp)
		xs.WriteF32(row, float32(wp[0])+opts.Translation[0])
		ys.WriteF32(row, float32(wp[1])+opts.Translation[1])
		zs.WriteF32(row, float32(wp[2])+opts.Translation[2])

		var oldQ quat.Quat
		oldW, _ := rotCols[0].ReadAsF32(row)
		oldX, _ := rotCols[1].ReadAsF32(row)
		oldY, _ := rotCols[2].ReadAsF32(row)
		oldZ, _ := rotCols[3].ReadAsF32(row)
		oldQ = quat.Quat{W: oldW, X: oldX, Y: oldY, Z: oldZ}
		newQ := quat.Mul(r, oldQ).Normalized()
		rotCols[0].WriteF32(row, newQ.W)
		rotCols[1].WriteF32(row, newQ.X)
		rotCols[2].WriteF32(row, newQ.Y)
		rotCols[3].WriteF32(row, newQ.Z)

		for i := 0; i < 3; i++ {
			sv, _ := scaleCols[i].ReadAsF32(row)
			scaleCols[i].WriteF32(row, sv+float32(logScale))
		}

		if rotator != nil {
			for ch := 0; ch < 3; ch++ {
				cols := channelCols[ch]
				coeffs := make([]float64, len(cols))
				for i, c := range cols {
					v, _ := c.ReadAsF32(row)
					coeffs[i] = float64(v)
				}
				rotator.Apply(coeffs)
				for i, c := range cols {
					c.WriteF32(row, float32(coeffs[i]))
				}
			}
		}
	}

	return nil
}

func requireColumn(t *splat.Table, name string) (*splat.Column, error) {
	c, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func applyMat3(m [3][3]float64, v [3]float64) [3]float64 {
	return [3]float64{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}

// channelColumns resolves, in rotation order, the f_rest_* columns holding
// channel ch's (0=R,1=G,2=B) coefficients across every present band. Columns
// are stored band-major then channel-major (spec §3: "all L1 of channel R,
// all L1 of channel G, all L1 of channel B, then L2, then L3"), so a single
// channel's coefficients are not contiguous in the table and must be
// gathered band by band.
func channelColumns(t *splat.Table, bands, ch int) ([]*splat.Column, error) {
	bandSizes := []int{3, 5, 7}
	bandStart := 0
	var cols []*splat.Column
	for b := 0; b < bands; b++ {
		size := bandSizes[b]
		base := bandStart + ch*size
		for i := 0; i < size; i++ {
			name := fmt.Sprintf("f_rest_%d", base+i)
			c, err := t.Column(name)
			if err != nil {
				return nil, err
			}
			cols = append(cols, c)
		}
		bandStart += size * 3
	}
	return cols, nil
}
