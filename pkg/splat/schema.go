package splat

import (
	"fmt"
	"math"

	sferrors "github.com/sogforge/sogforge/internal/errors"
)

// SHC0 is the zeroth-order spherical-harmonic normalization constant.
const SHC0 = 0.28209479177387814

// RequiredColumns are the columns a table must carry, all as F32, to be
// recognized as a Gaussian splat scene (spec §3).
var RequiredColumns = []string{
	"x", "y", "z",
	"rot_0", "rot_1", "rot_2", "rot_3",
	"scale_0", "scale_1", "scale_2",
	"f_dc_0", "f_dc_1", "f_dc_2",
	"opacity",
}

// LodColumn is the optional per-row LOD tag; -1 marks an environment splat.
const LodColumn = "lod"

// EnvironmentLod is the sentinel lod value marking an environment splat.
const EnvironmentLod = float32(-1)

// ValidateSchema checks that t carries every required splat column as F32,
// and that any f_rest_* columns present form one of the canonical band
// counts (9, 24, 45). A partial, non-canonical subset is a SchemaMismatch,
// per the decision recorded in SPEC_FULL.md for the ambiguous "first missing
// index" open question in spec §9.
func ValidateSchema(t *Table) error {
	if t.RowCount() == 0 {
		return sferrors.New(sferrors.UserInput, sferrors.CodeNoSplats, "table has no rows")
	}
	for _, name := range RequiredColumns {
		c, err := t.Column(name)
		if err != nil {
			return sferrors.Newf(sferrors.SchemaMismatch, sferrors.CodeMissingColumn,
				"unsupported data in file: missing required column %q", name).WithColumn(name)
		}
		if c.Type() != F32 {
			return sferrors.Newf(sferrors.SchemaMismatch, sferrors.CodeColumnTypeMismatch,
				"column %q must be f32, got %s", name, c.Type()).WithColumn(name)
		}
	}
	if _, err := BandCount(t); err != nil {
		return err
	}
	return nil
}

// BandCount returns the number of SH bands (0..3) present in t, detected from
// which f_rest_* columns exist per spec §4.9's table. Any non-canonical
// partial set of f_rest_* columns is rejected as a SchemaMismatch.
func BandCount(t *Table) (int, error) {
	counts := map[int]int{9: 1, 24: 2, 45: 3}
	present := 0
	for present < 45 && t.HasColumn(fmt.Sprintf("f_rest_%d", present)) {
		present++
	}
	if present == 0 {
		return 0, nil
	}
	if bands, ok := counts[present]; ok {
		return bands, nil
	}
	return 0, sferrors.Newf(sferrors.SchemaMismatch, sferrors.CodePartialSHBands,
		"table has %d f_rest_* columns, which is not one of the canonical band sizes 9/24/45", present)
}

// BandCoeffCount returns the number of SH coefficients per color channel for
// a given band count (0 -> 0, 1 -> 3, 2 -> 8, 3 -> 15).
func BandCoeffCount(bands int) int {
	switch bands {
	case 1:
		return 3
	case 2:
		return 8
	case 3:
		return 15
	default:
		return 0
	}
}

// Sigmoid computes the logistic function, used to turn a logit opacity into
// a linear [0,1] opacity.
func Sigmoid(x float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(-float64(x))))
}
