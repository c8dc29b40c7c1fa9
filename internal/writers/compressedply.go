package writers

import (
	"bufio"
	"fmt"
	"io"
	"math"

	sferrors "github.com/sogforge/sogforge/internal/errors"
	"github.com/sogforge/sogforge/internal/quat"
	"github.com/sogforge/sogforge/pkg/splat"
)

// compressedChunkSize is the number of vertices sharing one chunk's
// min/max normalization range, per compressed_chunk.cpp.
const compressedChunkSize = 256

// scaleClamp bounds log-scale values before a chunk's min/max is computed,
// per compressed_chunk.cpp's clamp to [-20, 20].
const scaleClamp = 20

// rotComponentOrder mirrors sogwriter's quaternion packing order: for each
// largest-magnitude component index, the order the remaining three are
// written in.
var rotComponentOrder = [4][3]int{
	{1, 2, 3},
	{0, 2, 3},
	{0, 1, 3},
	{0, 1, 2},
}

func packUnorm(v float64, bits int) uint32 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	max := float64((uint32(1) << uint(bits)) - 1)
	return uint32(v*max + 0.5)
}

func normalize(x, min, max float32) float64 {
	if x < min {
		x = min
	}
	if x > max {
		x = max
	}
	if max <= min {
		return 0
	}
	return float64((x - min) / (max - min))
}

func pack111011(x, y, z float64) uint32 {
	return packUnorm(x, 11) | packUnorm(y, 10)<<11 | packUnorm(z, 11)<<21
}

func pack8888(r, g, b, a float64) uint32 {
	return packUnorm(r, 8) | packUnorm(g, 8)<<8 | packUnorm(b, 8)<<16 | packUnorm(a, 8)<<24
}

// packRot quantizes a normalized quaternion into the 2/10/10/10 layout: the
// top 2 bits tag which of the 4 components was dropped (the
// largest-magnitude one, always recoverable up to sign), the remaining
// three are each scaled by sqrt(2)/2 to fit [0,1] before a 10-bit unorm pack.
func packRot(w, x, y, z float32) uint32 {
	q := quat.CanonicalSign(quat.Quat{W: w, X: x, Y: y, Z: z}.Normalized())
	idx := quat.LargestComponentIndex(q)
	vals := [4]float32{q.W, q.X, q.Y, q.Z}
	order := rotComponentOrder[idx]

	// Bit layout mirrors decompress_ply.cpp's unpackRot: the first remaining
	// component (ascending index) lands in the top 10 bits, the last in the
	// bottom 10 bits.
	shifts := [3]uint{20, 10, 0}
	const s = math.Sqrt2 / 2
	var packed uint32
	for j, ci := range order {
		v := float64(vals[ci])*s + 0.5
		packed |= packUnorm(v, 10) << shifts[j]
	}
	packed |= uint32(idx) << 30
	return packed
}

type chunkRange struct {
	posMin, posMax     [3]float32
	scaleMin, scaleMax [3]float32
	colorMin, colorMax [3]float32
}

func calcChunkRange(t *splat.Table, start, end int, posCols, scaleCols, dcCols [3]*splat.Column) (chunkRange, error) {
	var cr chunkRange
	for a := 0; a < 3; a++ {
		cr.posMin[a] = float32(math.Inf(1))
		cr.posMax[a] = float32(math.Inf(-1))
		cr.scaleMin[a] = float32(math.Inf(1))
		cr.scaleMax[a] = float32(math.Inf(-1))
		cr.colorMin[a] = float32(math.Inf(1))
		cr.colorMax[a] = float32(math.Inf(-1))
	}
	for r := start; r < end; r++ {
		for a := 0; a < 3; a++ {
			p, err := posCols[a].ReadAsF32(r)
			if err != nil {
				return cr, err
			}
			if p < cr.posMin[a] {
				cr.posMin[a] = p
			}
			if p > cr.posMax[a] {
				cr.posMax[a] = p
			}

			s, err := scaleCols[a].ReadAsF32(r)
			if err != nil {
				return cr, err
			}
			if s < -scaleClamp {
				s = -scaleClamp
			}
			if s > scaleClamp {
				s = scaleClamp
			}
			if s < cr.scaleMin[a] {
				cr.scaleMin[a] = s
			}
			if s > cr.scaleMax[a] {
				cr.scaleMax[a] = s
			}

			dc, err := dcCols[a].ReadAsF32(r)
			if err != nil {
				return cr, err
			}
			col := float32(dc)*float32(splat.SHC0) + 0.5
			if col < 0 {
				col = 0
			}
			if col > 1 {
				col = 1
			}
			if col < cr.colorMin[a] {
				cr.colorMin[a] = col
			}
			if col > cr.colorMax[a] {
				cr.colorMax[a] = col
			}
		}
	}
	return cr, nil
}

// WriteCompressedPLY writes t as the compressed PLY variant (spec §6): a
// "chunk" element carrying 18 f32s of per-256-vertex min/max normalization
// range, a "vertex" element of four packed uint32s (position 11/10/11,
// rotation 2/10/10/10, scale 11/10/11, color+opacity 8/8/8/8), and an
// optional "sh" element of per-coefficient unsigned bytes when the scene
// carries higher SH bands. Grounded directly on
// _examples/original_source/src/writers/compressed_chunk.cpp.
func WriteCompressedPLY(t *splat.Table, w io.Writer) error {
	n := t.RowCount()
	posCols, err := columnTriple(t, "x", "y", "z")
	if err != nil {
		return err
	}
	scaleCols, err := columnTriple(t, "scale_0", "scale_1", "scale_2")
	if err != nil {
		return err
	}
	dcCols, err := columnTriple(t, "f_dc_0", "f_dc_1", "f_dc_2")
	if err != nil {
		return err
	}
	rotCols, err := columnQuad(t, "rot_0", "rot_1", "rot_2", "rot_3")
	if err != nil {
		return err
	}
	opacityCol, err := t.Column("opacity")
	if err != nil {
		return err
	}

	bands, err := splat.BandCount(t)
	if err != nil {
		return err
	}
	shCoeffCount := splat.BandCoeffCount(bands) * 3

	numChunks := (n + compressedChunkSize - 1) / compressedChunkSize
	ranges := make([]chunkRange, numChunks)
	for ci := 0; ci < numChunks; ci++ {
		start := ci * compressedChunkSize
		end := start + compressedChunkSize
		if end > n {
			end = n
		}
		cr, err := calcChunkRange(t, start, end, posCols, scaleCols, dcCols)
		if err != nil {
			return err
		}
		ranges[ci] = cr
	}

	bw := bufio.NewWriter(w)
	fmt.Fprint(bw, "ply\n")
	fmt.Fprint(bw, "format binary_little_endian 1.0\n")
	fmt.Fprint(bw, "comment generated by sogforge\n")
	fmt.Fprintf(bw, "element chunk %d\n", numChunks)
	for _, name := range []string{
		"min_x", "min_y", "min_z", "max_x", "max_y", "max_z",
		"min_scale_x", "min_scale_y", "min_scale_z", "max_scale_x", "max_scale_y", "max_scale_z",
		"min_r", "min_g", "min_b", "max_r", "max_g", "max_b",
	} {
		fmt.Fprintf(bw, "property float %s\n", name)
	}
	fmt.Fprintf(bw, "element vertex %d\n", n)
	for _, name := range []string{"packed_position", "packed_rotation", "packed_scale", "packed_color"} {
		fmt.Fprintf(bw, "property uint %s\n", name)
	}
	if bands > 0 {
		fmt.Fprintf(bw, "element sh %d\n", n)
		for i := 0; i < shCoeffCount; i++ {
			fmt.Fprintf(bw, "property uchar f_rest_%d\n", i)
		}
	}
	fmt.Fprint(bw, "end_header\n")

	for _, cr := range ranges {
		vals := []float32{
			cr.posMin[0], cr.posMin[1], cr.posMin[2], cr.posMax[0], cr.posMax[1], cr.posMax[2],
			cr.scaleMin[0], cr.scaleMin[1], cr.scaleMin[2], cr.scaleMax[0], cr.scaleMax[1], cr.scaleMax[2],
			cr.colorMin[0], cr.colorMin[1], cr.colorMin[2], cr.colorMax[0], cr.colorMax[1], cr.colorMax[2],
		}
		for _, v := range vals {
			if err := writeLE32(bw, math.Float32bits(v)); err != nil {
				return err
			}
		}
	}

	for r := 0; r < n; r++ {
		cr := ranges[r/compressedChunkSize]

		var pos [3]float32
		var scale [3]float32
		var dc [3]float32
		for a := 0; a < 3; a++ {
			pos[a], err = posCols[a].ReadAsF32(r)
			if err != nil {
				return err
			}
			scale[a], err = scaleCols[a].ReadAsF32(r)
			if err != nil {
				return err
			}
			dc[a], err = dcCols[a].ReadAsF32(r)
			if err != nil {
				return err
			}
		}
		packedPos := pack111011(
			normalize(pos[0], cr.posMin[0], cr.posMax[0]),
			normalize(pos[1], cr.posMin[1], cr.posMax[1]),
			normalize(pos[2], cr.posMin[2], cr.posMax[2]),
		)

		var rot [4]float32
		for a := 0; a < 4; a++ {
			rot[a], err = rotCols[a].ReadAsF32(r)
			if err != nil {
				return err
			}
		}
		packedRot := packRot(rot[0], rot[1], rot[2], rot[3])

		clampedScale := [3]float32{}
		for a := 0; a < 3; a++ {
			v := scale[a]
			if v < -scaleClamp {
				v = -scaleClamp
			}
			if v > scaleClamp {
				v = scaleClamp
			}
			clampedScale[a] = v
		}
		packedScale := pack111011(
			normalize(clampedScale[0], cr.scaleMin[0], cr.scaleMax[0]),
			normalize(clampedScale[1], cr.scaleMin[1], cr.scaleMax[1]),
			normalize(clampedScale[2], cr.scaleMin[2], cr.scaleMax[2]),
		)

		color := [3]float32{}
		for a := 0; a < 3; a++ {
			c := dc[a]*float32(splat.SHC0) + 0.5
			if c < 0 {
				c = 0
			}
			if c > 1 {
				c = 1
			}
			color[a] = c
		}
		op, err := opacityCol.ReadAsF32(r)
		if err != nil {
			return err
		}
		packedColor := pack8888(
			normalize(color[0], cr.colorMin[0], cr.colorMax[0]),
			normalize(color[1], cr.colorMin[1], cr.colorMax[1]),
			normalize(color[2], cr.colorMin[2], cr.colorMax[2]),
			float64(splat.Sigmoid(op)),
		)

		for _, v := range []uint32{packedPos, packedRot, packedScale, packedColor} {
			if err := writeLE32(bw, v); err != nil {
				return err
			}
		}
	}

	if bands > 0 {
		shNames := make([]string, shCoeffCount)
		for i := range shNames {
			shNames[i] = fmt.Sprintf("f_rest_%d", i)
		}
		shCols := make([]*splat.Column, shCoeffCount)
		for i, name := range shNames {
			c, err := t.Column(name)
			if err != nil {
				return err
			}
			shCols[i] = c
		}
		for r := 0; r < n; r++ {
			for _, c := range shCols {
				v, err := c.ReadAsF32(r)
				if err != nil {
					return err
				}
				scaled := (float64(v)/8 + 0.5) * 255
				if scaled < 0 {
					scaled = 0
				}
				if scaled > 255 {
					scaled = 255
				}
				if err := bw.WriteByte(byte(scaled + 0.5)); err != nil {
					return sferrors.Wrapf(sferrors.Resource, sferrors.CodeFileWriteFailed, err, "write sh byte")
				}
			}
		}
	}

	if err := bw.Flush(); err != nil {
		return sferrors.Wrapf(sferrors.Resource, sferrors.CodeFileWriteFailed, err, "flush compressed ply")
	}
	return nil
}

func columnTriple(t *splat.Table, a, b, c string) ([3]*splat.Column, error) {
	var out [3]*splat.Column
	for i, name := range []string{a, b, c} {
		col, err := t.Column(name)
		if err != nil {
			return out, err
		}
		out[i] = col
	}
	return out, nil
}

func columnQuad(t *splat.Table, a, b, c, d string) ([4]*splat.Column, error) {
	var out [4]*splat.Column
	for i, name := range []string{a, b, c, d} {
		col, err := t.Column(name)
		if err != nil {
			return out, err
		}
		out[i] = col
	}
	return out, nil
}

func writeLE32(w *bufio.Writer, v uint32) error {
	var b [4]byte
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	if _, err := w.Write(b[:]); err != nil {
		return sferrors.Wrapf(sferrors.Resource, sferrors.CodeFileWriteFailed, err, "write binary field")
	}
	return nil
}
