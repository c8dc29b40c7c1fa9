package readers

import (
	"encoding/csv"
	"io"

	sferrors "github.com/sogforge/sogforge/internal/errors"
	"github.com/sogforge/sogforge/pkg/splat"
)

// ReadCSV reads a header row of column names followed by one row per splat,
// the textual counterpart of writers.WriteCSV. Every column is parsed as
// F32, matching the schema every splat table column other than an explicit
// integer index column is expected to carry (spec §4.1). No third-party CSV
// library appears anywhere in the retrieved pack, so this uses the standard
// library's quoting-aware encoding/csv rather than a hand-rolled split.
func ReadCSV(r io.Reader) (*splat.Table, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, sferrors.New(sferrors.FormatError, sferrors.CodeTruncatedData, "csv file has no header row")
		}
		return nil, sferrors.Wrapf(sferrors.FormatError, sferrors.CodeParseFailed, err, "read csv header")
	}
	names := append([]string(nil), header...)

	var rows [][]string
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, sferrors.Wrapf(sferrors.FormatError, sferrors.CodeParseFailed, err, "read csv row %d", len(rows))
		}
		rows = append(rows, append([]string(nil), record...))
	}

	cols := make([]*splat.Column, len(names))
	for i, name := range names {
		cols[i] = splat.NewColumn(name, splat.F32, len(rows))
	}

	for r, record := range rows {
		if len(record) != len(names) {
			return nil, sferrors.Newf(sferrors.FormatError, sferrors.CodeMalformedHeader,
				"csv row %d has %d fields, header has %d", r, len(record), len(names))
		}
		for i, field := range record {
			v, err := splat.F32.ParseElement(field)
			if err != nil {
				return nil, err
			}
			if err := cols[i].WriteF32(r, float32(v)); err != nil {
				return nil, err
			}
		}
	}

	return splat.NewTable(cols...)
}
