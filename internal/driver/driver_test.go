package driver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sogforge/sogforge/internal/cli"
	"github.com/sogforge/sogforge/pkg/splat"
)

func buildTable(t *testing.T, n int, lod func(row int) float32) *splat.Table {
	t.Helper()
	cols := make([]*splat.Column, 0, len(splat.RequiredColumns)+1)
	for _, name := range splat.RequiredColumns {
		c := splat.NewColumn(name, splat.F32, n)
		for r := 0; r < n; r++ {
			v := float32(0)
			if name == "rot_0" {
				v = 1
			}
			if err := c.WriteF32(r, v); err != nil {
				t.Fatalf("write %s[%d]: %v", name, r, err)
			}
		}
		cols = append(cols, c)
	}
	if lod != nil {
		c := splat.NewColumn(splat.LodColumn, splat.F32, n)
		for r := 0; r < n; r++ {
			if err := c.WriteF32(r, lod(r)); err != nil {
				t.Fatalf("write lod[%d]: %v", r, err)
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

func TestOutputFormatOrdering(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"out.csv", "csv"},
		{"out/lod-meta.json", "lod-meta.json"},
		{"out.sog", "sog"},
		{"out/meta.json", "meta.json"},
		{"out.compressed.ply", "compressed.ply"},
		{"out.ply", "ply"},
	}
	for _, c := range cases {
		got, err := outputFormat(c.path)
		if err != nil {
			t.Fatalf("outputFormat(%q): %v", c.path, err)
		}
		if got != c.want {
			t.Errorf("outputFormat(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}

func TestOutputFormatRejectsHTMLAndUnknown(t *testing.T) {
	for _, path := range []string{"viewer.html", "scene.obj"} {
		if _, err := outputFormat(path); err == nil {
			t.Errorf("outputFormat(%q): expected error, got nil", path)
		}
	}
}

func TestSplitEnvironmentAllNegativeOneIsEnvironment(t *testing.T) {
	envTable := buildTable(t, 5, func(int) float32 { return -1 })
	nonEnvTable := buildTable(t, 5, func(row int) float32 { return float32(row % 2) })
	noLodTable := buildTable(t, 3, nil)

	env, nonEnv := splitEnvironment([]*splat.Table{envTable, nonEnvTable, noLodTable})

	if len(env) != 1 || env[0] != envTable {
		t.Fatalf("expected exactly the all -1 table in env, got %d tables", len(env))
	}
	if len(nonEnv) != 2 {
		t.Fatalf("expected 2 non-environment tables, got %d", len(nonEnv))
	}
	for _, tbl := range nonEnv {
		if tbl == envTable {
			t.Fatal("environment table must not also appear in nonEnv")
		}
	}
}

func TestFilterLodSelectKeepsOnlyRequestedLevels(t *testing.T) {
	table := buildTable(t, 4, func(row int) float32 { return float32(row) })

	out, err := filterLodSelect(table, []int{0, 2})
	if err != nil {
		t.Fatal(err)
	}
	if out.RowCount() != 2 {
		t.Fatalf("expected 2 rows, got %d", out.RowCount())
	}
	col, err := out.Column(splat.LodColumn)
	if err != nil {
		t.Fatal(err)
	}
	v0, _ := col.ReadAsF32(0)
	v1, _ := col.ReadAsF32(1)
	if v0 != 0 || v1 != 2 {
		t.Fatalf("expected rows [0,2], got [%v,%v]", v0, v1)
	}
}

func TestFilterLodSelectNoOpWithoutLodColumn(t *testing.T) {
	table := buildTable(t, 3, nil)
	out, err := filterLodSelect(table, []int{0})
	if err != nil {
		t.Fatal(err)
	}
	if out != table {
		t.Fatal("expected the same table back when there is no lod column")
	}
}

func TestLoadViewerSettingsParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "viewer.yaml")
	if err := os.WriteFile(path, []byte("background: black\nfov: 60\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	raw, err := loadViewerSettings(path)
	if err != nil {
		t.Fatal(err)
	}
	if raw == nil {
		t.Fatal("expected non-nil raw JSON")
	}
	got := string(raw)
	if !contains(got, `"background":"black"`) || !contains(got, `"fov":60`) {
		t.Fatalf("unexpected viewer settings JSON: %s", got)
	}
}

func TestLoadViewerSettingsEmptyPath(t *testing.T) {
	raw, err := loadViewerSettings("")
	if err != nil {
		t.Fatal(err)
	}
	if raw != nil {
		t.Fatal("expected nil for an empty path")
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func TestWriteOutputCSVRoundTrip(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "scene.csv")
	table := buildTable(t, 3, nil)

	d := New(nil, true)
	g := cli.Global{Overwrite: false}
	if err := d.writeOutput(out, table, nil, g, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected output file to exist: %v", err)
	}
}

func TestWriteOutputCSVRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "scene.csv")
	if err := os.WriteFile(out, []byte("existing"), 0o644); err != nil {
		t.Fatal(err)
	}
	table := buildTable(t, 3, nil)

	d := New(nil, true)
	g := cli.Global{Overwrite: false}
	if err := d.writeOutput(out, table, nil, g, nil); err == nil {
		t.Fatal("expected an error when the target already exists without --overwrite")
	}
}
