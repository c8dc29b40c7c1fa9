// Package cli implements just enough of the grammar in spec §6 to drive the
// core: positional input/output paths with trailing action flags attached to
// the preceding path, plus the global flags. It is intentionally thin — the
// grammar isn't a flat flag set, so no flag library (stdlib flag or a
// third-party replacement) fits it directly.
package cli

import (
	"math"
	"strconv"
	"strings"

	"github.com/sogforge/sogforge/internal/config"
	sferrors "github.com/sogforge/sogforge/internal/errors"
	"github.com/sogforge/sogforge/internal/pipeline"
)

// Global carries the global flags from spec §6, seeded from config.Config's
// resolved defaults and overridden by any matching flag present on argv.
type Global struct {
	Overwrite      bool
	Quiet          bool
	Iterations     int
	ListGPUs       bool
	GPU            string
	ViewerSettings string
	Unbundled      bool
	LodSelect      []int
	LodChunkCount  int
	LodChunkExtent float32
}

// FileSpec is one positional path plus the action flags attached to it.
type FileSpec struct {
	Path    string
	Actions []pipeline.Action
}

// Parsed is the fully-parsed command line.
type Parsed struct {
	Global Global
	Inputs []FileSpec
	Output FileSpec
}

// Parse parses argv (excluding argv[0]) against cfg's resolved defaults.
func Parse(args []string, cfg *config.Config) (*Parsed, error) {
	g := Global{
		Iterations:     cfg.Iterations,
		GPU:            cfg.GPU,
		LodChunkCount:  cfg.LodChunkCount,
		LodChunkExtent: cfg.LodChunkExtent,
	}

	var paths []*FileSpec

	i := 0
	for i < len(args) {
		tok := args[i]
		switch tok {
		case "--overwrite":
			g.Overwrite = true
			i++
		case "--quiet":
			g.Quiet = true
			i++
		case "--list-gpus":
			g.ListGPUs = true
			i++
		case "--unbundled":
			g.Unbundled = true
			i++
		case "--iterations":
			v, err := nextValue(args, i)
			if err != nil {
				return nil, err
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, sferrors.Newf(sferrors.UserInput, sferrors.CodeBadArgs, "--iterations: %v", err)
			}
			g.Iterations = n
			i += 2
		case "--gpu":
			v, err := nextValue(args, i)
			if err != nil {
				return nil, err
			}
			g.GPU = v
			i += 2
		case "--viewer-settings":
			v, err := nextValue(args, i)
			if err != nil {
				return nil, err
			}
			g.ViewerSettings = v
			i += 2
		case "--lod-select":
			v, err := nextValue(args, i)
			if err != nil {
				return nil, err
			}
			sel, err := parseIntCSV(v)
			if err != nil {
				return nil, err
			}
			g.LodSelect = sel
			i += 2
		case "--lod-chunk-count":
			v, err := nextValue(args, i)
			if err != nil {
				return nil, err
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, sferrors.Newf(sferrors.UserInput, sferrors.CodeBadArgs, "--lod-chunk-count: %v", err)
			}
			g.LodChunkCount = n
			i += 2
		case "--lod-chunk-extent":
			v, err := nextValue(args, i)
			if err != nil {
				return nil, err
			}
			f, err := strconv.ParseFloat(v, 32)
			if err != nil {
				return nil, sferrors.Newf(sferrors.UserInput, sferrors.CodeBadArgs, "--lod-chunk-extent: %v", err)
			}
			g.LodChunkExtent = float32(f)
			i += 2
		default:
			if strings.HasPrefix(tok, "-") {
				if len(paths) == 0 {
					return nil, sferrors.Newf(sferrors.UserInput, sferrors.CodeBadArgs, "action flag %q precedes any path", tok)
				}
				acts, consumed, err := parseAction(args, i)
				if err != nil {
					return nil, err
				}
				last := paths[len(paths)-1]
				last.Actions = append(last.Actions, acts...)
				i += consumed
			} else {
				paths = append(paths, &FileSpec{Path: tok})
				i++
			}
		}
	}

	if g.ListGPUs {
		return &Parsed{Global: g}, nil
	}

	if len(paths) < 2 {
		return nil, sferrors.New(sferrors.UserInput, sferrors.CodeBadArgs, "at least one input and one output path are required")
	}

	out := paths[len(paths)-1]
	ins := paths[:len(paths)-1]

	inputs := make([]FileSpec, len(ins))
	for i, p := range ins {
		inputs[i] = *p
	}

	return &Parsed{Global: g, Inputs: inputs, Output: *out}, nil
}

func nextValue(args []string, i int) (string, error) {
	if i+1 >= len(args) {
		return "", sferrors.Newf(sferrors.UserInput, sferrors.CodeBadArgs, "%s requires a value", args[i])
	}
	return args[i+1], nil
}

func parseIntCSV(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, sferrors.Newf(sferrors.UserInput, sferrors.CodeBadArgs, "invalid LOD level %q", p)
		}
		out = append(out, n)
	}
	return out, nil
}

func parseFloatCSV(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, sferrors.Newf(sferrors.UserInput, sferrors.CodeBadArgs, "expected %d comma-separated values, got %q", n, s)
	}
	out := make([]float64, n)
	for i, p := range parts {
		p = strings.TrimSpace(p)
		f, err := strconv.ParseFloat(p, 32)
		if err != nil {
			return nil, sferrors.Newf(sferrors.UserInput, sferrors.CodeBadArgs, "invalid number %q", p)
		}
		out[i] = f
	}
	return out, nil
}

// parseAction parses the action flag at args[i] (plus its value, when the
// flag takes one) and returns the resulting pipeline actions plus how many
// tokens were consumed.
func parseAction(args []string, i int) ([]pipeline.Action, int, error) {
	tok := args[i]
	switch tok {
	case "-t", "--translate":
		v, err := nextValue(args, i)
		if err != nil {
			return nil, 0, err
		}
		xyz, err := parseFloatCSV(v, 3)
		if err != nil {
			return nil, 0, err
		}
		return []pipeline.Action{pipeline.Translate{V: [3]float32{float32(xyz[0]), float32(xyz[1]), float32(xyz[2])}}}, 2, nil

	case "-r", "--rotate":
		v, err := nextValue(args, i)
		if err != nil {
			return nil, 0, err
		}
		xyz, err := parseFloatCSV(v, 3)
		if err != nil {
			return nil, 0, err
		}
		return []pipeline.Action{pipeline.Rotate{EulerDeg: [3]float32{float32(xyz[0]), float32(xyz[1]), float32(xyz[2])}}}, 2, nil

	case "-s", "--scale":
		v, err := nextValue(args, i)
		if err != nil {
			return nil, 0, err
		}
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return nil, 0, sferrors.Newf(sferrors.UserInput, sferrors.CodeBadArgs, "--scale: %v", err)
		}
		return []pipeline.Action{pipeline.Scale{S: float32(f)}}, 2, nil

	case "-H", "--filter-harmonics":
		v, err := nextValue(args, i)
		if err != nil {
			return nil, 0, err
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, 0, sferrors.Newf(sferrors.UserInput, sferrors.CodeBadArgs, "--filter-harmonics: %v", err)
		}
		return []pipeline.Action{pipeline.FilterBands{N: n}}, 2, nil

	case "-N", "--filter-nan":
		return []pipeline.Action{pipeline.FilterNaN{}}, 1, nil

	case "-B", "--filter-box":
		v, err := nextValue(args, i)
		if err != nil {
			return nil, 0, err
		}
		min, max, err := parseBox(v)
		if err != nil {
			return nil, 0, err
		}
		return []pipeline.Action{pipeline.FilterBox{Min: min, Max: max}}, 2, nil

	case "-S", "--filter-sphere":
		v, err := nextValue(args, i)
		if err != nil {
			return nil, 0, err
		}
		vals, err := parseFloatCSV(v, 4)
		if err != nil {
			return nil, 0, err
		}
		return []pipeline.Action{pipeline.FilterSphere{
			Center: [3]float32{float32(vals[0]), float32(vals[1]), float32(vals[2])},
			Radius: float32(vals[3]),
		}}, 2, nil

	case "-V", "--filter-value":
		v, err := nextValue(args, i)
		if err != nil {
			return nil, 0, err
		}
		col, cmp, val, err := parseFilterValue(v)
		if err != nil {
			return nil, 0, err
		}
		return []pipeline.Action{pipeline.FilterByValue{Column: col, Cmp: cmp, V: val}}, 2, nil

	case "-p", "--params":
		v, err := nextValue(args, i)
		if err != nil {
			return nil, 0, err
		}
		acts, err := parseParams(v)
		if err != nil {
			return nil, 0, err
		}
		return acts, 2, nil

	case "-l", "--lod":
		v, err := nextValue(args, i)
		if err != nil {
			return nil, 0, err
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, 0, sferrors.Newf(sferrors.UserInput, sferrors.CodeBadArgs, "--lod: %v", err)
		}
		return []pipeline.Action{pipeline.Lod{N: n}}, 2, nil

	default:
		return nil, 0, sferrors.Newf(sferrors.UserInput, sferrors.CodeBadArgs, "unrecognized action flag %q", tok)
	}
}

// parseBox parses "x,y,z,X,Y,Z", where an empty field or "-" means an
// unbounded side (spec §6).
func parseBox(s string) (min, max [3]float32, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 6 {
		return min, max, sferrors.Newf(sferrors.UserInput, sferrors.CodeBadArgs, "--filter-box wants 6 comma-separated values, got %q", s)
	}
	bounds := [6]float32{}
	signs := [6]float64{-1, -1, -1, 1, 1, 1}
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || p == "-" {
			bounds[i] = float32(math.Inf(int(signs[i])))
			continue
		}
		f, perr := strconv.ParseFloat(p, 32)
		if perr != nil {
			return min, max, sferrors.Newf(sferrors.UserInput, sferrors.CodeBadArgs, "--filter-box: invalid number %q", p)
		}
		bounds[i] = float32(f)
	}
	return [3]float32{bounds[0], bounds[1], bounds[2]}, [3]float32{bounds[3], bounds[4], bounds[5]}, nil
}

func parseFilterValue(s string) (col string, cmp pipeline.Comparator, val float32, err error) {
	parts := strings.SplitN(s, ",", 3)
	if len(parts) != 3 {
		return "", "", 0, sferrors.Newf(sferrors.UserInput, sferrors.CodeBadArgs, "--filter-value wants name,cmp,value, got %q", s)
	}
	f, perr := strconv.ParseFloat(strings.TrimSpace(parts[2]), 32)
	if perr != nil {
		return "", "", 0, sferrors.Newf(sferrors.UserInput, sferrors.CodeBadArgs, "--filter-value: invalid number %q", parts[2])
	}
	return strings.TrimSpace(parts[0]), pipeline.Comparator(strings.TrimSpace(parts[1])), float32(f), nil
}

// parseParams parses "k=v[,k=v]..." into one pipeline.Param action per pair.
func parseParams(s string) ([]pipeline.Action, error) {
	parts := strings.Split(s, ",")
	out := make([]pipeline.Action, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			return nil, sferrors.Newf(sferrors.UserInput, sferrors.CodeBadArgs, "--params: invalid entry %q, want key=value", p)
		}
		out = append(out, pipeline.Param{Key: kv[0], Value: kv[1]})
	}
	return out, nil
}
