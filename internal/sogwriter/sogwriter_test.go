package sogwriter

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/sogforge/sogforge/internal/storage"
	"github.com/sogforge/sogforge/pkg/splat"
)

func buildTestTable(t *testing.T, n int, bands int) *splat.Table {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	names := append([]string{}, splat.RequiredColumns...)
	if bands > 0 {
		counts := map[int]int{1: 9, 2: 24, 3: 45}
		for i := 0; i < counts[bands]; i++ {
			names = append(names, "f_rest_"+itoa(i))
		}
	}

	cols := make([]*splat.Column, len(names))
	for i, name := range names {
		c := splat.NewColumn(name, splat.F32, n)
		for r := 0; r < n; r++ {
			v := float32(rng.NormFloat64())
			if name == "rot_0" {
				v = 1
			}
			if name[0] == 'r' && len(name) > 4 && name[:4] == "rot_" && name != "rot_0" {
				v = float32(rng.NormFloat64()) * 0.1
			}
			if err := c.WriteF32(r, v); err != nil {
				t.Fatalf("write %s[%d]: %v", name, r, err)
			}
		}
		cols[i] = c
	}
	table, err := splat.NewTable(cols...)
	if err != nil {
		t.Fatal(err)
	}
	return table
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

func TestWriteBand0Scene(t *testing.T) {
	table := buildTestTable(t, 50, 0)
	dir := t.TempDir()
	sink, err := storage.NewDirSink(filepath.Join(dir, "bundle"), false)
	if err != nil {
		t.Fatal(err)
	}

	meta, err := Write(table, sink, Options{Iterations: 3, Seed: 7})
	if err != nil {
		t.Fatal(err)
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	if meta.Count != 50 {
		t.Errorf("expected count 50, got %d", meta.Count)
	}
	if meta.SHN != nil {
		t.Errorf("expected nil SHN for band-0 scene, got %+v", meta.SHN)
	}
	if len(meta.Means.Files) != 2 {
		t.Errorf("expected 2 means files, got %v", meta.Means.Files)
	}
	if len(meta.Scales.Codebook) == 0 {
		t.Errorf("expected non-empty scales codebook")
	}
}

func TestWriteBand1Scene(t *testing.T) {
	table := buildTestTable(t, 2000, 1)
	dir := t.TempDir()
	sink, err := storage.NewDirSink(filepath.Join(dir, "bundle"), false)
	if err != nil {
		t.Fatal(err)
	}

	meta, err := Write(table, sink, Options{Iterations: 3, Seed: 7})
	if err != nil {
		t.Fatal(err)
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	if meta.SHN == nil {
		t.Fatal("expected non-nil SHN for band-1 scene")
	}
	if meta.SHN.Bands != 1 {
		t.Errorf("expected band count 1, got %d", meta.SHN.Bands)
	}
	if len(meta.SHN.Files) != 2 {
		t.Errorf("expected 2 shN files, got %v", meta.SHN.Files)
	}
}

func TestWriteRejectsEmptyTable(t *testing.T) {
	cols := make([]*splat.Column, 0)
	for _, name := range splat.RequiredColumns {
		cols = append(cols, splat.NewColumn(name, splat.F32, 0))
	}
	table, err := splat.NewTable(cols...)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	sink, err := storage.NewDirSink(filepath.Join(dir, "bundle"), false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Write(table, sink, Options{}); err == nil {
		t.Fatal("expected error writing empty scene")
	}
}
