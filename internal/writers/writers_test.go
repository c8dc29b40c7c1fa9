package writers

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sogforge/sogforge/pkg/splat"
)

func buildSimpleTable(t *testing.T, n int) *splat.Table {
	t.Helper()
	cols := make([]*splat.Column, 0, len(splat.RequiredColumns))
	for _, name := range splat.RequiredColumns {
		c := splat.NewColumn(name, splat.F32, n)
		for r := 0; r < n; r++ {
			v := float32(r) * 0.1
			if name == "rot_0" {
				v = 1
			}
			if err := c.WriteF32(r, v); err != nil {
				t.Fatal(err)
			}
		}
		cols = append(cols, c)
	}
	table, err := splat.NewTable(cols...)
	if err != nil {
		t.Fatal(err)
	}
	return table
}

func TestWriteCSVHeaderAndRowCount(t *testing.T) {
	table := buildSimpleTable(t, 5)
	var buf bytes.Buffer
	if err := WriteCSV(table, &buf); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 6 { // header + 5 rows
		t.Fatalf("expected 6 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "x,y,z") {
		t.Errorf("expected header to contain column names, got %q", lines[0])
	}
}

func TestWritePLYHeaderFields(t *testing.T) {
	table := buildSimpleTable(t, 3)
	var buf bytes.Buffer
	if err := WritePLY(table, &buf); err != nil {
		t.Fatal(err)
	}
	s := buf.String()
	if !strings.HasPrefix(s, "ply\nformat binary_little_endian 1.0\n") {
		t.Fatalf("unexpected ply header start: %q", s[:40])
	}
	if !strings.Contains(s, "element vertex 3\n") {
		t.Errorf("expected element vertex 3 in header")
	}
	if !strings.Contains(s, "property float x\n") {
		t.Errorf("expected property float x in header")
	}
	if !strings.Contains(s, "end_header\n") {
		t.Errorf("expected end_header marker")
	}
}

func TestWriteCompressedPLYProducesChunkAndVertexElements(t *testing.T) {
	table := buildSimpleTable(t, 300)
	var buf bytes.Buffer
	if err := WriteCompressedPLY(table, &buf); err != nil {
		t.Fatal(err)
	}
	s := buf.String()
	if !strings.Contains(s, "element chunk 2\n") {
		t.Errorf("expected 2 chunks for 300 vertices, got header: %q", s[:200])
	}
	if !strings.Contains(s, "element vertex 300\n") {
		t.Errorf("expected element vertex 300 in header")
	}
	if strings.Contains(s, "element sh") {
		t.Errorf("did not expect sh element for band-0 scene")
	}
}
