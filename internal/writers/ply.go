package writers

import (
	"bufio"
	"fmt"
	"io"

	sferrors "github.com/sogforge/sogforge/internal/errors"
	"github.com/sogforge/sogforge/pkg/splat"
)

// plyRowChunk is the number of rows per pass of the body write loop,
// matching ply_writer.cpp's chunked write loop; within a pass each element
// is written separately through the buffered writer.
const plyRowChunk = 1024

// columnTypeToPlyType maps a column's element type to its PLY binary
// property type name.
func columnTypeToPlyType(t splat.ElementType) (string, error) {
	switch t {
	case splat.I8:
		return "char", nil
	case splat.U8:
		return "uchar", nil
	case splat.I16:
		return "short", nil
	case splat.U16:
		return "ushort", nil
	case splat.I32:
		return "int", nil
	case splat.U32:
		return "uint", nil
	case splat.F32:
		return "float", nil
	case splat.F64:
		return "double", nil
	default:
		return "", sferrors.Newf(sferrors.Internal, sferrors.CodeInvariantBroken, "no PLY type for column element type %v", t)
	}
}

// WritePLY writes t as a binary-little-endian PLY file with a single
// "vertex" element, one property per column in table order. Grounded
// directly on _examples/original_source/src/writers/ply_writer.cpp.
func WritePLY(t *splat.Table, w io.Writer) error {
	bw := bufio.NewWriter(w)
	cols := t.Columns()
	n := t.RowCount()

	fmt.Fprint(bw, "ply\n")
	fmt.Fprint(bw, "format binary_little_endian 1.0\n")
	fmt.Fprint(bw, "comment generated by sogforge\n")
	fmt.Fprintf(bw, "element vertex %d\n", n)
	for _, c := range cols {
		plyType, err := columnTypeToPlyType(c.Type())
		if err != nil {
			return err
		}
		fmt.Fprintf(bw, "property %s %s\n", plyType, c.Name())
	}
	fmt.Fprint(bw, "end_header\n")

	for start := 0; start < n; start += plyRowChunk {
		end := start + plyRowChunk
		if end > n {
			end = n
		}
		for r := start; r < end; r++ {
			for _, c := range cols {
				size := c.Type().Size()
				data := c.Bytes()
				off := r * size
				if _, err := bw.Write(data[off : off+size]); err != nil {
					return sferrors.Wrapf(sferrors.Resource, sferrors.CodeFileWriteFailed, err, "write ply row %d", r)
				}
			}
		}
	}

	if err := bw.Flush(); err != nil {
		return sferrors.Wrapf(sferrors.Resource, sferrors.CodeFileWriteFailed, err, "flush ply")
	}
	return nil
}
