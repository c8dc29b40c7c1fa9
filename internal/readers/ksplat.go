package readers

import (
	"encoding/binary"
	"io"
	"math"
	"strconv"

	sferrors "github.com/sogforge/sogforge/internal/errors"
	"github.com/sogforge/sogforge/pkg/splat"
)

const (
	ksplatMainHeaderSize    = 4096
	ksplatSectionHeaderSize = 1024
)

// ksplatCompressionMode describes one of the three fixed per-splat byte
// layouts a .ksplat section can use.
type ksplatCompressionMode struct {
	centerBytes        int
	scaleBytes         int
	rotationBytes      int
	colorBytes         int
	harmonicsBytes     int
	scaleStartByte     int
	rotationStartByte  int
	colorStartByte     int
	harmonicsStartByte int
	scaleQuantRange    uint32
}

var ksplatCompressionModes = [3]ksplatCompressionMode{
	{12, 12, 16, 4, 4, 12, 24, 40, 44, 1},
	{6, 6, 8, 4, 2, 6, 12, 20, 24, 32767},
	{6, 6, 8, 4, 1, 6, 12, 20, 24, 32767},
}

var ksplatHarmonicsComponentCount = [4]int{0, 9, 24, 45}

// decodeFloat16 expands an IEEE754 half-precision value to float32.
func decodeFloat16(encoded uint16) float32 {
	sign := uint32(encoded>>15) & 1
	exponent := uint32(encoded>>10) & 0x1f
	mantissa := uint32(encoded) & 0x3ff

	if exponent == 0 {
		if mantissa == 0 {
			return math.Float32frombits(sign << 31)
		}
		m := mantissa
		exp := -14
		for m&0x400 == 0 {
			m <<= 1
			exp--
		}
		m &= 0x3ff
		bits := (sign << 31) | (uint32(exp+127) << 23) | (m << 13)
		return math.Float32frombits(bits)
	}
	if exponent == 0x1f {
		if mantissa == 0 {
			bits := (sign << 31) | (0xff << 23)
			return math.Float32frombits(bits)
		}
		bits := (sign << 31) | (0xff << 23) | 1
		return math.Float32frombits(bits)
	}
	bits := (sign << 31) | (uint32(int(exponent)-15+127) << 23) | (mantissa << 13)
	return math.Float32frombits(bits)
}

func ku32(b []byte, off int) uint32  { return binary.LittleEndian.Uint32(b[off:]) }
func ku16(b []byte, off int) uint16  { return binary.LittleEndian.Uint16(b[off:]) }
func kf32(b []byte, off int) float32 { return math.Float32frombits(ku32(b, off)) }

// ReadKSPLAT reads a .ksplat file (the antimatter15/splat streaming format),
// decoding whichever of its three compression modes the main header
// declares. Grounded on
// _examples/original_source/src/readers/ksplat_reader.cpp, fixing that
// source's section-level quantization-range fallback, which used `||`
// (producing 0 or 1) where a zero-check was clearly intended.
func ReadKSPLAT(r io.Reader) (*splat.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, sferrors.Wrapf(sferrors.FormatError, sferrors.CodeTruncatedData, err, "read ksplat file")
	}
	if len(data) < ksplatMainHeaderSize {
		return nil, sferrors.New(sferrors.FormatError, sferrors.CodeTruncatedData, "file too small to be a valid .ksplat")
	}

	main := data[:ksplatMainHeaderSize]
	majorVersion := main[0]
	minorVersion := main[1]
	if majorVersion != 0 || minorVersion < 1 {
		return nil, sferrors.Newf(sferrors.FormatError, sferrors.CodeUnknownMagic,
			"unsupported ksplat version %d.%d", majorVersion, minorVersion)
	}

	maxSections := int(ku32(main, 4))
	numSplats := int(ku32(main, 16))
	compressionMode := int(ku16(main, 20))
	if compressionMode > 2 {
		return nil, sferrors.Newf(sferrors.FormatError, sferrors.CodeMalformedHeader, "invalid ksplat compression mode %d", compressionMode)
	}
	if numSplats == 0 {
		return nil, sferrors.New(sferrors.UserInput, sferrors.CodeNoSplats, "ksplat file is empty")
	}

	minHarmonicsValue := kf32(main, 36)
	maxHarmonicsValue := kf32(main, 40)

	sectionHeaderAt := func(idx int) ([]byte, bool) {
		off := ksplatMainHeaderSize + idx*ksplatSectionHeaderSize
		if off+ksplatSectionHeaderSize > len(data) {
			return nil, false
		}
		return data[off : off+ksplatSectionHeaderSize], true
	}

	maxHarmonicsDegree := 0
	for i := 0; i < maxSections; i++ {
		hdr, ok := sectionHeaderAt(i)
		if !ok {
			return nil, sferrors.New(sferrors.FormatError, sferrors.CodeTruncatedData, "failed to read section header")
		}
		if ku32(hdr, 0) == 0 {
			continue
		}
		if deg := int(ku16(hdr, 40)); deg > maxHarmonicsDegree {
			maxHarmonicsDegree = deg
		}
	}
	maxHarmonicsComponentCount := ksplatHarmonicsComponentCount[maxHarmonicsDegree]

	names := []string{
		"x", "y", "z",
		"scale_0", "scale_1", "scale_2",
		"f_dc_0", "f_dc_1", "f_dc_2", "opacity",
		"rot_0", "rot_1", "rot_2", "rot_3",
	}
	for i := 0; i < maxHarmonicsComponentCount; i++ {
		names = append(names, shColumnName(i))
	}
	cols := make([]*splat.Column, len(names))
	for i, name := range names {
		cols[i] = splat.NewColumn(name, splat.F32, numSplats)
	}
	const baseColumnIndex = 14

	mode := ksplatCompressionModes[compressionMode]

	currentDataOffset := ksplatMainHeaderSize + maxSections*ksplatSectionHeaderSize
	splatIndex := 0

	for sectionIdx := 0; sectionIdx < maxSections; sectionIdx++ {
		hdr, ok := sectionHeaderAt(sectionIdx)
		if !ok {
			break
		}

		sectionSplatCount := int(ku32(hdr, 0))
		bucketCapacity := int(ku32(hdr, 8))
		bucketCount := int(ku32(hdr, 12))
		spatialBlockSize := kf32(hdr, 16)
		bucketStorageSize := int(ku16(hdr, 20))
		rawQuantRange := ku32(hdr, 24)
		quantizationRange := rawQuantRange
		if quantizationRange == 0 {
			quantizationRange = mode.scaleQuantRange
		}
		fullBuckets := int(ku32(hdr, 32))
		partialBuckets := int(ku32(hdr, 36))
		harmonicsDegree := int(ku16(hdr, 40))

		fullBucketSplats := fullBuckets * bucketCapacity
		partialBucketMetaSize := partialBuckets * 4
		totalBucketStorageSize := bucketStorageSize*bucketCount + partialBucketMetaSize
		harmonicsComponentCount := ksplatHarmonicsComponentCount[harmonicsDegree]
		bytesPerSplat := mode.centerBytes + mode.scaleBytes + mode.rotationBytes + mode.colorBytes +
			harmonicsComponentCount*mode.harmonicsBytes
		sectionDataSize := bytesPerSplat * sectionSplatCount

		positionScale := spatialBlockSize / 2 / float32(quantizationRange)

		off := currentDataOffset + partialBucketMetaSize
		if off+bucketCount*3*4 > len(data) {
			return nil, sferrors.New(sferrors.FormatError, sferrors.CodeTruncatedData, "failed to read bucket centers")
		}
		bucketCenters := make([]float32, bucketCount*3)
		for i := range bucketCenters {
			bucketCenters[i] = kf32(data, off+i*4)
		}
		off += bucketCount * 3 * 4

		partialBucketSizes := make([]uint32, partialBuckets)
		partialOff := currentDataOffset
		if partialOff+partialBuckets*4 > len(data) {
			return nil, sferrors.New(sferrors.FormatError, sferrors.CodeTruncatedData, "failed to read partial bucket sizes")
		}
		for i := range partialBucketSizes {
			partialBucketSizes[i] = ku32(data, partialOff+i*4)
		}

		splatDataOff := off
		if splatDataOff+sectionDataSize > len(data) {
			return nil, sferrors.New(sferrors.FormatError, sferrors.CodeTruncatedData, "failed to read splat data")
		}
		splatData := data[splatDataOff : splatDataOff+sectionDataSize]

		decodeHarmonic := func(byteOffset, component int) float32 {
			switch compressionMode {
			case 0:
				return kf32(splatData, byteOffset+mode.harmonicsStartByte+component*4)
			case 1:
				return decodeFloat16(ku16(splatData, byteOffset+mode.harmonicsStartByte+component*2))
			default:
				normalized := splatData[byteOffset+mode.harmonicsStartByte+component]
				return minHarmonicsValue + float32(normalized)/255*(maxHarmonicsValue-minHarmonicsValue)
			}
		}

		currentPartialBucket := fullBuckets
		currentPartialBase := fullBucketSplats

		for splatIdx := 0; splatIdx < sectionSplatCount; splatIdx++ {
			byteOffset := splatIdx * bytesPerSplat

			var bucketIdx int
			if splatIdx < fullBucketSplats {
				bucketIdx = splatIdx / bucketCapacity
			} else {
				bucketRelIdx := currentPartialBucket - fullBuckets
				currentBucketSize := int(partialBucketSizes[bucketRelIdx])
				if splatIdx >= currentPartialBase+currentBucketSize {
					currentPartialBucket++
					currentPartialBase += currentBucketSize
				}
				bucketIdx = currentPartialBucket
			}

			var x, y, z float32
			if compressionMode == 0 {
				x = kf32(splatData, byteOffset+0)
				y = kf32(splatData, byteOffset+4)
				z = kf32(splatData, byteOffset+8)
			} else {
				x = (float32(ku16(splatData, byteOffset+0))-float32(quantizationRange))*positionScale + bucketCenters[bucketIdx*3]
				y = (float32(ku16(splatData, byteOffset+2))-float32(quantizationRange))*positionScale + bucketCenters[bucketIdx*3+1]
				z = (float32(ku16(splatData, byteOffset+4))-float32(quantizationRange))*positionScale + bucketCenters[bucketIdx*3+2]
			}

			var scaleX, scaleY, scaleZ float32
			if compressionMode == 0 {
				scaleX = kf32(splatData, byteOffset+mode.scaleStartByte+0)
				scaleY = kf32(splatData, byteOffset+mode.scaleStartByte+4)
				scaleZ = kf32(splatData, byteOffset+mode.scaleStartByte+8)
			} else {
				scaleX = decodeFloat16(ku16(splatData, byteOffset+mode.scaleStartByte+0))
				scaleY = decodeFloat16(ku16(splatData, byteOffset+mode.scaleStartByte+2))
				scaleZ = decodeFloat16(ku16(splatData, byteOffset+mode.scaleStartByte+4))
			}

			var rot0, rot1, rot2, rot3 float32
			if compressionMode == 0 {
				rot0 = kf32(splatData, byteOffset+mode.rotationStartByte+0)
				rot1 = kf32(splatData, byteOffset+mode.rotationStartByte+4)
				rot2 = kf32(splatData, byteOffset+mode.rotationStartByte+8)
				rot3 = kf32(splatData, byteOffset+mode.rotationStartByte+12)
			} else {
				rot0 = decodeFloat16(ku16(splatData, byteOffset+mode.rotationStartByte+0))
				rot1 = decodeFloat16(ku16(splatData, byteOffset+mode.rotationStartByte+2))
				rot2 = decodeFloat16(ku16(splatData, byteOffset+mode.rotationStartByte+4))
				rot3 = decodeFloat16(ku16(splatData, byteOffset+mode.rotationStartByte+6))
			}

			red := splatData[byteOffset+mode.colorStartByte+0]
			green := splatData[byteOffset+mode.colorStartByte+1]
			blue := splatData[byteOffset+mode.colorStartByte+2]
			opacity := splatData[byteOffset+mode.colorStartByte+3]

			cols[0].WriteF32(splatIndex, x)
			cols[1].WriteF32(splatIndex, y)
			cols[2].WriteF32(splatIndex, z)

			logScale := func(v float32) float32 {
				if v > 0 {
					return float32(math.Log(float64(v)))
				}
				return -10
			}
			cols[3].WriteF32(splatIndex, logScale(scaleX))
			cols[4].WriteF32(splatIndex, logScale(scaleY))
			cols[5].WriteF32(splatIndex, logScale(scaleZ))

			cols[6].WriteF32(splatIndex, (float32(red)/255-0.5)/splat.SHC0)
			cols[7].WriteF32(splatIndex, (float32(green)/255-0.5)/splat.SHC0)
			cols[8].WriteF32(splatIndex, (float32(blue)/255-0.5)/splat.SHC0)

			const epsilon = 1e-6
			normalizedOpacity := float32(opacity) / 255
			if normalizedOpacity < epsilon {
				normalizedOpacity = epsilon
			}
			if normalizedOpacity > 1-epsilon {
				normalizedOpacity = 1 - epsilon
			}
			cols[9].WriteF32(splatIndex, float32(math.Log(float64(normalizedOpacity/(1-normalizedOpacity)))))

			cols[10].WriteF32(splatIndex, rot0)
			cols[11].WriteF32(splatIndex, rot1)
			cols[12].WriteF32(splatIndex, rot2)
			cols[13].WriteF32(splatIndex, rot3)

			for i := 0; i < harmonicsComponentCount; i++ {
				var channel, coeff int
				switch {
				case i < 9:
					channel, coeff = i/3, i%3
				case i < 24:
					channel, coeff = (i-9)/5, (i-9)%5+3
				default:
					channel, coeff = (i-24)/7, (i-24)%7+8
				}
				col := channel*(maxHarmonicsComponentCount/3) + coeff
				cols[baseColumnIndex+col].WriteF32(splatIndex, decodeHarmonic(byteOffset, i))
			}

			splatIndex++
		}

		currentDataOffset = splatDataOff + sectionDataSize + totalBucketStorageSize
	}

	if splatIndex != numSplats {
		return nil, sferrors.Newf(sferrors.FormatError, sferrors.CodeTruncatedData,
			"ksplat splat count mismatch: header declares %d, processed %d", numSplats, splatIndex)
	}

	return splat.NewTable(cols...)
}

func shColumnName(i int) string {
	return "f_rest_" + strconv.Itoa(i)
}
