package readers

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"io"
	"math"

	sferrors "github.com/sogforge/sogforge/internal/errors"
	"github.com/sogforge/sogforge/pkg/splat"
)

const (
	spzHeaderSize = 16
	spzMagic      = 0x5053474E // "NGSP"
	spzSHC0_2     = 0.15
)

// ReadSPZ reads a .spz scene (optionally gzip-wrapped), decoding its
// 24-bit fixed-point positions, quantized scale/color/rotation, and quantized
// SH coefficients. Grounded on
// _examples/original_source/src/io/spz_reader.cpp. The gzip unwrap uses the
// standard library: no pack repo imports a gzip/zlib library directly for
// its own code (github.com/klauspost/compress shows up only as an indirect
// dependency pulled in by something else), so there is no ecosystem
// convention here to follow instead.
func ReadSPZ(r io.Reader) (*splat.Table, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, sferrors.Wrapf(sferrors.FormatError, sferrors.CodeTruncatedData, err, "read spz file")
	}
	if len(buf) > 2 && buf[0] == 0x1F && buf[1] == 0x8B {
		gz, err := gzip.NewReader(bytes.NewReader(buf))
		if err != nil {
			return nil, sferrors.Wrapf(sferrors.FormatError, sferrors.CodeDecodeFailed, err, "open spz gzip stream")
		}
		defer gz.Close()
		buf, err = io.ReadAll(gz)
		if err != nil {
			return nil, sferrors.Wrapf(sferrors.FormatError, sferrors.CodeDecodeFailed, err, "decompress spz gzip stream")
		}
	}

	if len(buf) < spzHeaderSize {
		return nil, sferrors.New(sferrors.FormatError, sferrors.CodeTruncatedData, "spz file too small")
	}
	if magic := binary.LittleEndian.Uint32(buf[0:4]); magic != spzMagic {
		return nil, sferrors.New(sferrors.FormatError, sferrors.CodeUnknownMagic, "invalid spz magic")
	}
	version := binary.LittleEndian.Uint32(buf[4:8])
	numSplats := int(binary.LittleEndian.Uint32(buf[8:12]))
	shDegree := int(buf[12])
	fractionalBits := buf[13]

	degreeIdx := shDegree
	if degreeIdx > 3 {
		degreeIdx = 0
	}
	harmonicsCount := ksplatHarmonicsComponentCount[degreeIdx]

	offset := spzHeaderSize
	posBase := buf[offset:]
	offset += numSplats * 3 * 3
	alphaBase := buf[offset:]
	offset += numSplats
	colorBase := buf[offset:]
	offset += numSplats * 3
	scaleBase := buf[offset:]
	offset += numSplats * 3
	rotBase := buf[offset:]
	rotStride := 3
	if version == 3 {
		rotStride = 4
	}
	offset += numSplats * rotStride
	shBase := buf[offset:]

	if len(shBase) < numSplats*harmonicsCount {
		return nil, sferrors.New(sferrors.FormatError, sferrors.CodeTruncatedData, "spz file truncated before sh block")
	}

	names := []string{
		"x", "y", "z",
		"scale_0", "scale_1", "scale_2",
		"f_dc_0", "f_dc_1", "f_dc_2", "opacity",
		"rot_0", "rot_1", "rot_2", "rot_3",
	}
	for i := 0; i < harmonicsCount; i++ {
		names = append(names, shColumnName(i))
	}
	cols := make([]*splat.Column, len(names))
	for i, name := range names {
		cols[i] = splat.NewColumn(name, splat.F32, numSplats)
	}
	const baseColumnIndex = 14

	posScale := float32(1) / float32(uint32(1)<<fractionalBits)

	for i := 0; i < numSplats; i++ {
		cols[0].WriteF32(i, float32(spzFixed24(posBase, i, 0))*posScale)
		cols[1].WriteF32(i, float32(spzFixed24(posBase, i, 1))*posScale)
		cols[2].WriteF32(i, float32(spzFixed24(posBase, i, 2))*posScale)

		cols[3].WriteF32(i, float32(scaleBase[i*3+0])/16-10)
		cols[4].WriteF32(i, float32(scaleBase[i*3+1])/16-10)
		cols[5].WriteF32(i, float32(scaleBase[i*3+2])/16-10)

		cols[6].WriteF32(i, spzInverseColor(colorBase[i*3+0]))
		cols[7].WriteF32(i, spzInverseColor(colorBase[i*3+1]))
		cols[8].WriteF32(i, spzInverseColor(colorBase[i*3+2]))

		normAlpha := float32(alphaBase[i]) / 255
		if normAlpha < 1e-6 {
			normAlpha = 1e-6
		}
		if normAlpha > 1-1e-6 {
			normAlpha = 1 - 1e-6
		}
		cols[9].WriteF32(i, float32(math.Log(float64(normAlpha/(1-normAlpha)))))

		q := [4]float32{1, 0, 0, 0}
		switch version {
		case 2:
			q[1] = float32(rotBase[i*3+0])/127.5 - 1
			q[2] = float32(rotBase[i*3+1])/127.5 - 1
			q[3] = float32(rotBase[i*3+2])/127.5 - 1
			dot := q[1]*q[1] + q[2]*q[2] + q[3]*q[3]
			q[0] = float32(math.Sqrt(math.Max(0, float64(1-dot))))
		case 3:
			packed := binary.LittleEndian.Uint32(rotBase[i*4:])
			largestIndex := packed >> 30
			var sumSq float32
			temp := packed
			for j := 3; j >= 0; j-- {
				if uint32(j) != largestIndex {
					mag := temp & 511
					val := float32(0.70710678) * float32(mag) / 511
					if (temp>>9)&1 == 1 {
						val = -val
					}
					q[j] = val
					sumSq += val * val
					temp >>= 10
				}
			}
			q[largestIndex] = float32(math.Sqrt(math.Max(0, float64(1-sumSq))))
		}
		cols[10].WriteF32(i, q[0])
		cols[11].WriteF32(i, q[1])
		cols[12].WriteF32(i, q[2])
		cols[13].WriteF32(i, q[3])

		for sh := 0; sh < harmonicsCount; sh++ {
			channel := sh % 3
			coeff := sh / 3
			colIdx := baseColumnIndex + channel*(harmonicsCount/3) + coeff
			shVal := shBase[i*harmonicsCount+sh]
			cols[colIdx].WriteF32(i, (float32(shVal)-128)/128)
		}
	}

	return splat.NewTable(cols...)
}

// spzFixed24 reads a 24-bit little-endian two's-complement fixed-point
// member, per spz_reader.cpp's getFixed24 (stride 9 bytes per element, 3
// bytes per member).
func spzFixed24(buf []byte, elementIndex, memberIndex int) int32 {
	const stride = 9
	off := elementIndex*stride + memberIndex*3
	v := uint32(buf[off]) | uint32(buf[off+1])<<8 | uint32(buf[off+2])<<16
	if v&0x800000 != 0 {
		v |= 0xFF000000
	}
	return int32(v)
}

func spzInverseColor(y byte) float32 {
	return (float32(y)/255 - 0.5) / spzSHC0_2
}
