// Package driver orchestrates a sogforge run end to end (spec §4.12):
// parse-time options in, readers dispatched by extension, per-file and
// per-output actions run through internal/pipeline, environment/non-
// environment tables combined, and the result routed to the writer its
// output extension selects. Grounded on
// _examples/original_source/transform/main.cpp and writer.cpp.
package driver

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sogforge/sogforge/internal/cache"
	"github.com/sogforge/sogforge/internal/cli"
	sferrors "github.com/sogforge/sogforge/internal/errors"
	"github.com/sogforge/sogforge/internal/gpu"
	"github.com/sogforge/sogforge/internal/lodpacker"
	"github.com/sogforge/sogforge/internal/pipeline"
	"github.com/sogforge/sogforge/internal/readers"
	"github.com/sogforge/sogforge/internal/sogwriter"
	"github.com/sogforge/sogforge/internal/storage"
	"github.com/sogforge/sogforge/internal/writers"
	"github.com/sogforge/sogforge/pkg/splat"
	"gopkg.in/yaml.v3"
)

// Driver runs a single sogforge invocation.
type Driver struct {
	Logger *log.Logger
}

// New builds a Driver that logs to logger. If quiet is true, the logger is
// pointed at io.Discard — matching "--quiet suppresses everything but
// errors" (errors are always returned, not logged, so the caller prints them).
func New(logger *log.Logger, quiet bool) *Driver {
	if quiet {
		logger = log.New(io.Discard, "", 0)
	}
	return &Driver{Logger: logger}
}

// Run executes the parsed command line. It implements spec §4.12 steps 2-5;
// step 1 (parsing) has already happened by the time Run is called.
func (d *Driver) Run(p *cli.Parsed) error {
	if p.Global.ListGPUs {
		d.printAdapters()
		return nil
	}

	if _, err := gpu.ResolveDevice(p.Global.GPU); err != nil {
		return err
	}

	viewerSettings, err := loadViewerSettings(p.Global.ViewerSettings)
	if err != nil {
		return err
	}

	collected := make([]*splat.Table, 0, len(p.Inputs))
	for _, in := range p.Inputs {
		t, err := d.readInput(in, p.Global)
		if err != nil {
			return err
		}
		collected = append(collected, t)
	}

	envTables, nonEnvTables := splitEnvironment(collected)

	var envTable *splat.Table
	if len(envTables) > 0 {
		envTable, err = splat.Combine(envTables)
		if err != nil {
			return err
		}
	}

	var nonEnvTable *splat.Table
	if len(nonEnvTables) > 0 {
		nonEnvTable, err = splat.Combine(nonEnvTables)
		if err != nil {
			return err
		}
	}
	if nonEnvTable == nil {
		nonEnvTable, err = splat.NewTable()
		if err != nil {
			return err
		}
	}

	nonEnvTable, err = pipeline.Run(nonEnvTable, p.Output.Actions)
	if err != nil {
		return fmt.Errorf("output actions: %w", err)
	}

	return d.writeOutput(p.Output.Path, nonEnvTable, envTable, p.Global, viewerSettings)
}

func (d *Driver) printAdapters() {
	adapters := gpu.Adapters()
	if len(adapters) == 0 {
		d.Logger.Printf("No GPU adapters found.")
		return
	}
	for _, a := range adapters {
		d.Logger.Printf("[%d] %s", a.Index, a.Name)
	}
}

// readInput dispatches path to the matching reader, validates the result
// against the Gaussian schema, applies any --lod-select restriction (LCC
// inputs only), and runs the input's own action list.
func (d *Driver) readInput(in cli.FileSpec, g cli.Global) (*splat.Table, error) {
	t, isLCC, err := dispatchRead(in.Path)
	if err != nil {
		return nil, err
	}

	if err := splat.ValidateSchema(t); err != nil {
		return nil, err.(*sferrors.SplatError).WithPath(in.Path)
	}

	if isLCC && len(g.LodSelect) > 0 {
		t, err = filterLodSelect(t, g.LodSelect)
		if err != nil {
			return nil, err
		}
	}

	d.Logger.Printf("read %s (%d splats)", in.Path, t.RowCount())

	t, err = pipeline.Run(t, in.Actions)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", in.Path, err)
	}
	return t, nil
}

func dispatchRead(path string) (t *splat.Table, isLCC bool, err error) {
	if filepath.Base(path) == "meta.json" {
		t, err := readers.ReadLCC(path)
		return t, true, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, false, sferrors.Wrapf(sferrors.UserInput, sferrors.CodeUnreadablePath, err, "open %s", path)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".ply":
		t, err = readers.ReadPLY(f)
	case ".csv":
		t, err = readers.ReadCSV(f)
	case ".ksplat":
		t, err = readers.ReadKSPLAT(f)
	case ".spz":
		t, err = readers.ReadSPZ(f)
	default:
		return nil, false, sferrors.Newf(sferrors.UserInput, sferrors.CodeUnsupportedType, "unsupported input file type: %s", path)
	}
	if err != nil {
		if se, ok := err.(*sferrors.SplatError); ok {
			return nil, false, se.WithPath(path)
		}
		return nil, false, err
	}
	return t, false, nil
}

// filterLodSelect keeps only the rows whose lod column matches one of
// levels, per --lod-select (spec §6).
func filterLodSelect(t *splat.Table, levels []int) (*splat.Table, error) {
	if !t.HasColumn(splat.LodColumn) {
		return t, nil
	}
	col, err := t.Column(splat.LodColumn)
	if err != nil {
		return nil, err
	}
	want := make(map[int]bool, len(levels))
	for _, l := range levels {
		want[l] = true
	}
	keep := make([]int, 0, t.RowCount())
	for row := 0; row < t.RowCount(); row++ {
		v, err := col.ReadAsF32(row)
		if err != nil {
			return nil, err
		}
		if want[int(v)] {
			keep = append(keep, row)
		}
	}
	return t.Permute(keep)
}

// splitEnvironment separates tables whose lod column is -1 on every row
// (environment splats) from the rest (spec §4.12 step 4).
func splitEnvironment(tables []*splat.Table) (env, nonEnv []*splat.Table) {
	for _, t := range tables {
		if t.HasColumn(splat.LodColumn) {
			col, err := t.Column(splat.LodColumn)
			if err == nil && col.Every(float64(splat.EnvironmentLod)) {
				env = append(env, t)
				continue
			}
		}
		nonEnv = append(nonEnv, t)
	}
	return env, nonEnv
}

func loadViewerSettings(path string) (json.RawMessage, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, sferrors.Wrapf(sferrors.UserInput, sferrors.CodeUnreadablePath, err, "open --viewer-settings %s", path)
	}
	var v interface{}
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return nil, sferrors.Wrapf(sferrors.FormatError, sferrors.CodeParseFailed, err, "parse --viewer-settings %s", path)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, sferrors.Wrapf(sferrors.FormatError, sferrors.CodeParseFailed, err, "re-encode --viewer-settings %s", path)
	}
	return out, nil
}

// outputFormat classifies an output path by extension, in the same
// precedence order as writer.cpp's getOutputFormat: lod-meta.json and .sog
// must be checked before the bare "meta.json" and ".compressed.ply" before
// ".ply".
func outputFormat(path string) (string, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".csv"):
		return "csv", nil
	case strings.HasSuffix(lower, "lod-meta.json"):
		return "lod-meta.json", nil
	case strings.HasSuffix(lower, ".sog"):
		return "sog", nil
	case strings.HasSuffix(lower, "meta.json"):
		return "meta.json", nil
	case strings.HasSuffix(lower, ".compressed.ply"):
		return "compressed.ply", nil
	case strings.HasSuffix(lower, ".ply"):
		return "ply", nil
	case strings.HasSuffix(lower, ".html"):
		return "", sferrors.Newf(sferrors.UserInput, sferrors.CodeUnsupportedType, "HTML viewer output is out of scope: %s", path)
	default:
		return "", sferrors.Newf(sferrors.UserInput, sferrors.CodeUnsupportedType, "unsupported output file type: %s", path)
	}
}

func (d *Driver) writeOutput(path string, t, env *splat.Table, g cli.Global, viewerSettings json.RawMessage) error {
	format, err := outputFormat(path)
	if err != nil {
		return err
	}

	switch format {
	case "csv":
		return writeSingleFile(path, g.Overwrite, func(w io.Writer) error {
			return writers.WriteCSV(t, w)
		})
	case "ply":
		return writeSingleFile(path, g.Overwrite, func(w io.Writer) error {
			return writers.WritePLY(t, w)
		})
	case "compressed.ply":
		return writeSingleFile(path, g.Overwrite, func(w io.Writer) error {
			return writers.WriteCompressedPLY(t, w)
		})
	case "sog":
		sink, err := storage.NewZipSink(path, g.Overwrite)
		if err != nil {
			return translateSinkErr(err, path)
		}
		if _, err := sogwriter.Write(t, sink, sogwriter.Options{Iterations: g.Iterations, ViewerSettings: viewerSettings}); err != nil {
			sink.Close()
			return err
		}
		d.Logger.Printf("wrote %s", path)
		return sink.Close()
	case "meta.json":
		sink, err := storage.NewDirSink(filepath.Dir(path), g.Overwrite)
		if err != nil {
			return translateSinkErr(err, path)
		}
		if _, err := sogwriter.Write(t, sink, sogwriter.Options{Iterations: g.Iterations, ViewerSettings: viewerSettings}); err != nil {
			sink.Close()
			return err
		}
		d.Logger.Printf("wrote %s", path)
		return sink.Close()
	case "lod-meta.json":
		return d.writeLodMeta(path, t, env, g, viewerSettings)
	default:
		return sferrors.Newf(sferrors.UserInput, sferrors.CodeUnsupportedType, "unsupported output file type: %s", path)
	}
}

func (d *Driver) writeLodMeta(path string, t, env *splat.Table, g cli.Global, viewerSettings json.RawMessage) error {
	baseDir := filepath.Dir(path)
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return sferrors.Wrapf(sferrors.Resource, sferrors.CodeDirCreateFailed, err, "create %s", baseDir)
	}
	if !g.Overwrite {
		if _, err := os.Stat(path); err == nil {
			return sferrors.Newf(sferrors.UserInput, sferrors.CodeTargetExists, "target already exists: %s", path)
		}
	}

	scratchDir := filepath.Join(baseDir, ".sogforge-scratch")
	scratch, err := cache.NewScratchCache(scratchDir, 8<<30)
	if err != nil {
		return sferrors.Wrapf(sferrors.Resource, sferrors.CodeDirCreateFailed, err, "create scratch cache")
	}
	defer scratch.Close()
	defer os.RemoveAll(scratchDir)

	opts := lodpacker.Options{
		ChunkCount:  g.LodChunkCount,
		ChunkExtent: g.LodChunkExtent,
		WorkerCount: runtime.NumCPU(),
		Writer:      sogwriter.Options{Iterations: g.Iterations, ViewerSettings: viewerSettings},
		Scratch:     scratch,
	}
	factory := lodpacker.FileSinkFactory{BaseDir: baseDir, Bundle: !g.Unbundled, Overwrite: g.Overwrite}

	meta, err := lodpacker.Pack(t, env, factory, opts)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return sferrors.Wrapf(sferrors.Resource, sferrors.CodeFileWriteFailed, err, "create %s", path)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		f.Close()
		return sferrors.Wrapf(sferrors.Resource, sferrors.CodeFileWriteFailed, err, "encode %s", path)
	}
	if err := f.Close(); err != nil {
		return sferrors.Wrapf(sferrors.Resource, sferrors.CodeFileWriteFailed, err, "close %s", path)
	}
	d.Logger.Printf("wrote %s", path)
	return nil
}

// writeSingleFile opens path for writing (honoring --overwrite) and runs
// fn over it, closing and erroring identically for every flat-file format.
func writeSingleFile(path string, overwrite bool, fn func(w io.Writer) error) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return sferrors.Wrapf(sferrors.Resource, sferrors.CodeDirCreateFailed, err, "create %s", dir)
		}
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return sferrors.Newf(sferrors.UserInput, sferrors.CodeTargetExists, "target already exists: %s", path)
		}
		return sferrors.Wrapf(sferrors.Resource, sferrors.CodeFileWriteFailed, err, "create %s", path)
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func translateSinkErr(err error, path string) error {
	if err == storage.ErrTargetExists {
		return sferrors.Newf(sferrors.UserInput, sferrors.CodeTargetExists, "target already exists: %s", path)
	}
	return sferrors.Wrapf(sferrors.Resource, sferrors.CodeDirCreateFailed, err, "open sink for %s", path)
}
