// Package writers implements the flat single-file output formats (spec §6):
// CSV, binary PLY, and the compressed PLY variant. The .sog bundle format
// lives in internal/sogwriter instead, since it needs the storage.Sink
// abstraction these single-file formats don't.
package writers

import (
	"bufio"
	"io"
	"strings"

	sferrors "github.com/sogforge/sogforge/internal/errors"
	"github.com/sogforge/sogforge/pkg/splat"
)

// WriteCSV writes t as a header row of column names followed by one row per
// splat, each value formatted via its column's native representation.
// Grounded directly on _examples/original_source/src/writers/csv_writer.cpp.
func WriteCSV(t *splat.Table, w io.Writer) error {
	bw := bufio.NewWriter(w)
	cols := t.Columns()

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name()
	}
	if _, err := bw.WriteString(strings.Join(names, ",")); err != nil {
		return sferrors.Wrapf(sferrors.Resource, sferrors.CodeFileWriteFailed, err, "write csv header")
	}
	if err := bw.WriteByte('\n'); err != nil {
		return sferrors.Wrapf(sferrors.Resource, sferrors.CodeFileWriteFailed, err, "write csv header")
	}

	n := t.RowCount()
	fields := make([]string, len(cols))
	for r := 0; r < n; r++ {
		for i, c := range cols {
			fields[i] = c.FormatElement(r)
		}
		if _, err := bw.WriteString(strings.Join(fields, ",")); err != nil {
			return sferrors.Wrapf(sferrors.Resource, sferrors.CodeFileWriteFailed, err, "write csv row %d", r)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return sferrors.Wrapf(sferrors.Resource, sferrors.CodeFileWriteFailed, err, "write csv row %d", r)
		}
	}
	if err := bw.Flush(); err != nil {
		return sferrors.Wrapf(sferrors.Resource, sferrors.CodeFileWriteFailed, err, "flush csv")
	}
	return nil
}
