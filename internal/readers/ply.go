// Package readers implements the input-side formats a scene can be loaded
// from (spec §4.2/§6): PLY (both plain and the compressed chunked variant),
// CSV, KSPLAT, SPZ, and the partial LCC format. Grounded directly on
// _examples/original_source/src/io/*.cpp and
// _examples/original_source/src/readers/*.cpp.
package readers

import (
	"bufio"
	"bytes"
	"io"
	"math"
	"strconv"
	"strings"

	sferrors "github.com/sogforge/sogforge/internal/errors"
	"github.com/sogforge/sogforge/pkg/splat"
)

var plyMagic = []byte("ply\n")
var endHeaderMarker = []byte("\nend_header\n")

const maxPlyHeaderSize = 128 * 1024

// plyElement is one parsed "element" block of a PLY header.
type plyElement struct {
	name  string
	count int
	props []plyProperty
}

type plyProperty struct {
	name string
	typ  splat.ElementType
}

// plyTypeByName maps PLY header type keywords to our element type, per
// ply_reader.cpp's getDataTypeMapping.
var plyTypeByName = map[string]splat.ElementType{
	"char": splat.I8, "uchar": splat.U8,
	"short": splat.I16, "ushort": splat.U16,
	"int": splat.I32, "uint": splat.U32,
	"float": splat.F32, "float32": splat.F32,
	"double": splat.F64, "float64": splat.F64,
}

// ReadPLY reads a binary-little-endian PLY file and returns its "vertex"
// element as a Table, transparently decompressing the chunked compressed-PLY
// variant (spec §4.2) when the file's element shape matches it.
func ReadPLY(r io.Reader) (*splat.Table, error) {
	br := bufio.NewReader(r)

	header, err := readPlyHeader(br)
	if err != nil {
		return nil, err
	}

	elements := make(map[string]*splat.Table, len(header))
	order := make([]string, 0, len(header))
	for _, el := range header {
		t, err := readPlyElementData(br, el)
		if err != nil {
			return nil, err
		}
		elements[el.name] = t
		order = append(order, el.name)
	}

	if isCompressedPly(elements) {
		return decompressPly(elements)
	}

	vertex, ok := elements["vertex"]
	if !ok {
		return nil, sferrors.New(sferrors.FormatError, sferrors.CodeMalformedHeader, "ply file does not contain a vertex element")
	}
	return vertex, nil
}

// readPlyHeader reads and parses the text header, leaving br positioned at
// the start of the binary data section. Mirrors ply_reader.cpp's
// byte-at-a-time scan for the "end_header" marker.
func readPlyHeader(br *bufio.Reader) ([]plyElement, error) {
	magic := make([]byte, len(plyMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, sferrors.Wrapf(sferrors.FormatError, sferrors.CodeTruncatedData, err, "read ply magic")
	}
	if !bytes.Equal(magic, plyMagic) {
		return nil, sferrors.New(sferrors.FormatError, sferrors.CodeUnknownMagic, "invalid ply header: missing 'ply'")
	}

	buf := make([]byte, 0, 4096)
	buf = append(buf, magic...)
	for len(buf) < maxPlyHeaderSize {
		b, err := br.ReadByte()
		if err != nil {
			return nil, sferrors.Wrapf(sferrors.FormatError, sferrors.CodeTruncatedData, err, "read ply header: unexpected eof")
		}
		buf = append(buf, b)
		if len(buf) >= len(endHeaderMarker) && bytes.Equal(buf[len(buf)-len(endHeaderMarker):], endHeaderMarker) {
			return parsePlyHeader(buf)
		}
	}
	return nil, sferrors.New(sferrors.FormatError, sferrors.CodeMalformedHeader, "ply header too large (>128KB) or missing end_header")
}

func parsePlyHeader(buf []byte) ([]plyElement, error) {
	lines := strings.Split(string(buf), "\n")
	var elements []plyElement
	var current *plyElement

	for _, line := range lines[1:] { // skip leading "ply"
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "format", "end_header":
			// skip
		case "comment":
			// skip; comments carry no schema information we need
		case "element":
			if len(fields) != 3 {
				return nil, sferrors.New(sferrors.FormatError, sferrors.CodeMalformedHeader, "invalid ply header: 'element' syntax error")
			}
			count, err := strconv.Atoi(fields[2])
			if err != nil {
				return nil, sferrors.Wrapf(sferrors.FormatError, sferrors.CodeMalformedHeader, err, "invalid ply header: element count")
			}
			elements = append(elements, plyElement{name: fields[1], count: count})
			current = &elements[len(elements)-1]
		case "property":
			if current == nil {
				return nil, sferrors.New(sferrors.FormatError, sferrors.CodeMalformedHeader, "invalid ply header: 'property' outside 'element'")
			}
			if len(fields) != 3 {
				return nil, sferrors.New(sferrors.FormatError, sferrors.CodeMalformedHeader, "invalid ply header: 'property' syntax error")
			}
			typ, ok := plyTypeByName[fields[1]]
			if !ok {
				return nil, sferrors.Newf(sferrors.FormatError, sferrors.CodeUnknownMagic, "unsupported ply data type: %s", fields[1])
			}
			current.props = append(current.props, plyProperty{name: fields[2], typ: typ})
		default:
			return nil, sferrors.Newf(sferrors.FormatError, sferrors.CodeMalformedHeader, "unrecognized header value %q in ply header", fields[0])
		}
	}
	return elements, nil
}

// readPlyElementData reads one element's binary rows in 1024-row chunks,
// matching ply_reader.cpp's read loop.
func readPlyElementData(br *bufio.Reader, el plyElement) (*splat.Table, error) {
	cols := make([]*splat.Column, len(el.props))
	for i, p := range el.props {
		cols[i] = splat.NewColumn(p.name, p.typ, el.count)
	}

	const chunkRows = 1024
	rowSize := 0
	for _, c := range cols {
		rowSize += c.Type().Size()
	}

	chunk := make([]byte, chunkRows*rowSize)
	for start := 0; start < el.count; start += chunkRows {
		rows := chunkRows
		if start+rows > el.count {
			rows = el.count - start
		}
		buf := chunk[:rows*rowSize]
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, sferrors.Wrapf(sferrors.FormatError, sferrors.CodeTruncatedData, err, "read ply element %q data", el.name)
		}
		off := 0
		for r := 0; r < rows; r++ {
			rowIndex := start + r
			for _, c := range cols {
				size := c.Type().Size()
				copy(c.Bytes()[rowIndex*size:(rowIndex+1)*size], buf[off:off+size])
				off += size
			}
		}
	}

	t, err := splat.NewTable(cols...)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// chunkProperties and vertexPackedProperties are the compressed-PLY column
// signature checked by decompress_ply.cpp's isCompressedPly.
var chunkProperties = []string{
	"min_x", "min_y", "min_z", "max_x", "max_y", "max_z",
	"min_scale_x", "min_scale_y", "min_scale_z", "max_scale_x", "max_scale_y", "max_scale_z",
	"min_r", "min_g", "min_b", "max_r", "max_g", "max_b",
}

var vertexPackedProperties = []string{"packed_position", "packed_rotation", "packed_scale", "packed_color"}

func isCompressedPly(elements map[string]*splat.Table) bool {
	if len(elements) != 2 && len(elements) != 3 {
		return false
	}
	chunk, ok := elements["chunk"]
	if !ok || !hasShape(chunk, chunkProperties, splat.F32) {
		return false
	}
	vertex, ok := elements["vertex"]
	if !ok || !hasShape(vertex, vertexPackedProperties, splat.U32) {
		return false
	}
	expectedChunkRows := (vertex.RowCount() + compressedChunkSize - 1) / compressedChunkSize
	if expectedChunkRows != chunk.RowCount() {
		return false
	}
	if len(elements) == 3 {
		sh, ok := elements["sh"]
		if !ok {
			return false
		}
		n := sh.ColumnCount()
		if n != 9 && n != 24 && n != 45 {
			return false
		}
		for _, c := range sh.Columns() {
			if c.Type() != splat.U8 {
				return false
			}
		}
		if sh.RowCount() != vertex.RowCount() {
			return false
		}
	}
	return true
}

func hasShape(t *splat.Table, names []string, typ splat.ElementType) bool {
	for _, name := range names {
		if !t.HasColumn(name) {
			return false
		}
		c, err := t.Column(name)
		if err != nil || c.Type() != typ {
			return false
		}
	}
	return true
}

const compressedChunkSize = 256

// decompressPly reverses the packing performed by
// writers.WriteCompressedPLY / _examples/original_source/src/readers/decompress_ply.cpp.
func decompressPly(elements map[string]*splat.Table) (*splat.Table, error) {
	chunk, ok := elements["chunk"]
	if !ok {
		return nil, sferrors.New(sferrors.FormatError, sferrors.CodeMalformedHeader, "missing 'chunk' element")
	}
	vertex, ok := elements["vertex"]
	if !ok {
		return nil, sferrors.New(sferrors.FormatError, sferrors.CodeMalformedHeader, "missing 'vertex' element")
	}

	n := vertex.RowCount()
	targets := []string{"x", "y", "z", "f_dc_0", "f_dc_1", "f_dc_2", "opacity",
		"rot_0", "rot_1", "rot_2", "rot_3", "scale_0", "scale_1", "scale_2"}
	cols := make(map[string]*splat.Column, len(targets))
	out := make([]*splat.Column, 0, len(targets))
	for _, name := range targets {
		c := splat.NewColumn(name, splat.F32, n)
		cols[name] = c
		out = append(out, c)
	}

	packedPos, err := vertex.Column("packed_position")
	if err != nil {
		return nil, err
	}
	packedRot, err := vertex.Column("packed_rotation")
	if err != nil {
		return nil, err
	}
	packedScale, err := vertex.Column("packed_scale")
	if err != nil {
		return nil, err
	}
	packedColor, err := vertex.Column("packed_color")
	if err != nil {
		return nil, err
	}

	chunkF32 := func(name string, ci int) (float32, error) {
		c, err := chunk.Column(name)
		if err != nil {
			return 0, err
		}
		return c.ReadAsF32(ci)
	}

	const shC0 = 0.28209479177387814

	for i := 0; i < n; i++ {
		ci := i / compressedChunkSize

		// The packed columns are full 32-bit bitfields: reading them through
		// ReadAsF32 would silently lose precision above 2^24, so they're
		// decoded straight from the column's raw little-endian bytes instead.
		px, py, pz := unpack111011(readU32(packedPos, i))
		rw, rx, ry, rz := unpackRot(readU32(packedRot, i))
		sx, sy, sz := unpack111011(readU32(packedScale, i))
		cr, cg, cb, ca := unpack8888(readU32(packedColor, i))

		minX, _ := chunkF32("min_x", ci)
		maxX, _ := chunkF32("max_x", ci)
		minY, _ := chunkF32("min_y", ci)
		maxY, _ := chunkF32("max_y", ci)
		minZ, _ := chunkF32("min_z", ci)
		maxZ, _ := chunkF32("max_z", ci)

		cols["x"].WriteF32(i, lerp(minX, maxX, px))
		cols["y"].WriteF32(i, lerp(minY, maxY, py))
		cols["z"].WriteF32(i, lerp(minZ, maxZ, pz))

		cols["rot_0"].WriteF32(i, rw)
		cols["rot_1"].WriteF32(i, rx)
		cols["rot_2"].WriteF32(i, ry)
		cols["rot_3"].WriteF32(i, rz)

		minSX, _ := chunkF32("min_scale_x", ci)
		maxSX, _ := chunkF32("max_scale_x", ci)
		minSY, _ := chunkF32("min_scale_y", ci)
		maxSY, _ := chunkF32("max_scale_y", ci)
		minSZ, _ := chunkF32("min_scale_z", ci)
		maxSZ, _ := chunkF32("max_scale_z", ci)
		cols["scale_0"].WriteF32(i, lerp(minSX, maxSX, sx))
		cols["scale_1"].WriteF32(i, lerp(minSY, maxSY, sy))
		cols["scale_2"].WriteF32(i, lerp(minSZ, maxSZ, sz))

		minR, _ := chunkF32("min_r", ci)
		maxR, _ := chunkF32("max_r", ci)
		minG, _ := chunkF32("min_g", ci)
		maxG, _ := chunkF32("max_g", ci)
		minB, _ := chunkF32("min_b", ci)
		maxB, _ := chunkF32("max_b", ci)

		r := lerp(minR, maxR, cr)
		g := lerp(minG, maxG, cg)
		b := lerp(minB, maxB, cb)

		cols["f_dc_0"].WriteF32(i, (r-0.5)/shC0)
		cols["f_dc_1"].WriteF32(i, (g-0.5)/shC0)
		cols["f_dc_2"].WriteF32(i, (b-0.5)/shC0)

		opacity := float32(-math.Log(1/math.Max(1e-7, float64(ca))-1))
		cols["opacity"].WriteF32(i, opacity)
	}

	if sh, ok := elements["sh"]; ok {
		for _, c := range sh.Columns() {
			dst := splat.NewColumn(c.Name(), splat.F32, n)
			for i := 0; i < n; i++ {
				raw, err := c.ReadAsF32(i)
				if err != nil {
					return nil, err
				}
				b := uint8(raw)
				var nrm float32
				switch b {
				case 0:
					nrm = 0
				case 255:
					nrm = 1
				default:
					nrm = (float32(b) + 0.5) / 256
				}
				if err := dst.WriteF32(i, (nrm-0.5)*8); err != nil {
					return nil, err
				}
			}
			out = append(out, dst)
		}
	}

	return splat.NewTable(out...)
}

// readU32 decodes element i of a U32 column directly from its raw
// little-endian bytes, avoiding the float32 precision loss ReadAsF32 would
// introduce for values above 2^24 (packed_rotation in particular uses the
// full 32-bit range).
func readU32(c *splat.Column, i int) uint32 {
	b := c.Bytes()
	off := i * 4
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
}

func unpackUnorm(value uint32, bits uint) float32 {
	mask := uint32(1)<<bits - 1
	return float32(value&mask) / float32(mask)
}

func unpack111011(v uint32) (a, b, c float32) {
	return unpackUnorm(v>>21, 11), unpackUnorm(v>>11, 10), unpackUnorm(v, 11)
}

func unpack8888(v uint32) (a, b, c, d float32) {
	return unpackUnorm(v>>24, 8), unpackUnorm(v>>16, 8), unpackUnorm(v>>8, 8), unpackUnorm(v, 8)
}

func unpackRot(v uint32) (a, b, c, d float32) {
	norm := float32(1 / (math.Sqrt2 * 0.5))
	x := (unpackUnorm(v>>20, 10) - 0.5) * norm
	y := (unpackUnorm(v>>10, 10) - 0.5) * norm
	z := (unpackUnorm(v, 10) - 0.5) * norm
	m := float32(math.Sqrt(math.Max(0, float64(1-(x*x+y*y+z*z)))))

	switch v >> 30 {
	case 0:
		return m, x, y, z
	case 1:
		return x, m, y, z
	case 2:
		return x, y, m, z
	default:
		return x, y, z, m
	}
}

func lerp(a, b, t float32) float32 { return a*(1-t) + b*t }
