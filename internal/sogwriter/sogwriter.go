// Package sogwriter implements the quantizing writer (spec §4.10): it turns
// a splat table into a bundle of fixed-format RGBA textures plus a meta.json
// manifest, the largest single component of this tool. It is a direct port
// of _examples/original_source/src/writers/sog_writer.cpp, generalized from
// that file's WebP-specific packing into the texture.Encoder/Decoder seam so
// the packing logic never depends on which codec backs a ".webp"-named
// texture.
package sogwriter

import (
	"encoding/json"
	"fmt"
	"math"

	sferrors "github.com/sogforge/sogforge/internal/errors"
	"github.com/sogforge/sogforge/internal/morton"
	"github.com/sogforge/sogforge/internal/storage"
	"github.com/sogforge/sogforge/internal/texture"
	"github.com/sogforge/sogforge/pkg/splat"
)

// Generator is recorded into every manifest's asset.generator field.
const Generator = "sogforge v1"

// Options configures a Write call.
type Options struct {
	// Encoder packs each texture Grid into bytes; PNGEncoder is the default.
	Encoder texture.Encoder
	// Iterations is the k-means iteration count used for every codebook and
	// palette fit (spec §4.7's fixed-iteration contract).
	Iterations int
	// Seed makes codebook/palette clustering reproducible.
	Seed int64
	// ViewerSettings, when non-nil, is stashed verbatim into the manifest's
	// asset.viewerSettings field (the --viewer-settings PATH pass-through;
	// spec §6).
	ViewerSettings json.RawMessage
}

// AssetMeta is the manifest's asset.generator block.
type AssetMeta struct {
	Generator      string          `json:"generator"`
	ViewerSettings json.RawMessage `json:"viewerSettings,omitempty"`
}

// MeansMeta records the means textures' per-axis log-transform range.
type MeansMeta struct {
	Mins  [3]float32 `json:"mins"`
	Maxs  [3]float32 `json:"maxs"`
	Files []string   `json:"files"`
}

// ScalesMeta records the scale codebook.
type ScalesMeta struct {
	Codebook []float32 `json:"codebook"`
	Files    []string  `json:"files"`
}

// QuatsMeta records the quaternion texture's file list (no codebook; it is
// stored directly, not through a codebook indirection).
type QuatsMeta struct {
	Files []string `json:"files"`
}

// SH0Meta records the DC-color codebook.
type SH0Meta struct {
	Codebook []float32 `json:"codebook"`
	Files    []string  `json:"files"`
}

// SHNMeta records the higher-band SH palette, present only when the scene
// carries f_rest_* columns.
type SHNMeta struct {
	Count    int       `json:"count"`
	Bands    int       `json:"bands"`
	Codebook []float32 `json:"codebook"`
	Files    []string  `json:"files"`
}

// Meta is the full meta.json manifest shape (spec §4.10).
type Meta struct {
	Version int       `json:"version"`
	Asset   AssetMeta `json:"asset"`
	Count   int       `json:"count"`
	Means   MeansMeta `json:"means"`
	Scales  ScalesMeta `json:"scales"`
	Quats   QuatsMeta `json:"quats"`
	SH0     SH0Meta   `json:"sh0"`
	SHN     *SHNMeta  `json:"shN"`
}

// Write quantizes t into sink as the canonical texture bundle plus
// meta.json. t must already satisfy splat.ValidateSchema. Write returns the
// manifest it wrote, primarily so callers (and tests) can inspect the
// codebooks without re-parsing JSON.
func Write(t *splat.Table, sink storage.Sink, opts Options) (*Meta, error) {
	if opts.Encoder == nil {
		opts.Encoder = texture.PNGEncoder{}
	}
	if opts.Iterations <= 0 {
		opts.Iterations = 10
	}

	n := t.RowCount()
	if n == 0 {
		return nil, sferrors.New(sferrors.UserInput, sferrors.CodeNoSplats, "cannot write an empty scene")
	}

	identity := make([]int, n)
	for i := range identity {
		identity[i] = i
	}
	order, err := morton.SortOrder(t, identity)
	if err != nil {
		return nil, err
	}
	ordered, err := t.Permute(order)
	if err != nil {
		return nil, err
	}

	width, height := gridSize(n)

	meta := &Meta{
		Version: 2,
		Asset:   AssetMeta{Generator: Generator, ViewerSettings: opts.ViewerSettings},
		Count:   n,
	}

	if err := writeMeans(ordered, sink, opts, width, height, meta); err != nil {
		return nil, err
	}
	if err := writeQuaternions(ordered, sink, opts, width, height, meta); err != nil {
		return nil, err
	}
	if err := writeScales(ordered, sink, opts, width, height, meta); err != nil {
		return nil, err
	}
	if err := writeSH0(ordered, sink, opts, width, height, meta); err != nil {
		return nil, err
	}
	if err := writeSH(ordered, sink, opts, meta); err != nil {
		return nil, err
	}

	w, err := sink.Create("meta.json")
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		w.Close()
		return nil, sferrors.Wrapf(sferrors.Resource, sferrors.CodeFileWriteFailed, err, "encode meta.json")
	}
	if err := w.Close(); err != nil {
		return nil, sferrors.Wrapf(sferrors.Resource, sferrors.CodeFileWriteFailed, err, "close meta.json")
	}

	return meta, nil
}

// gridSize computes the canonical texture dimensions for n splats (spec
// §4.10): width = 4*ceil(sqrt(n)/4), height = 4*ceil(n/(4*width)).
func gridSize(n int) (width, height int) {
	width = 4 * int(math.Ceil(math.Sqrt(float64(n))/4))
	if width < 4 {
		width = 4
	}
	height = 4 * int(math.Ceil(float64(n)/float64(4*width)))
	if height < 4 {
		height = 4
	}
	return width, height
}

// writeTexture encodes grid via opts.Encoder and writes it to sink under
// baseName plus whatever extension the encoder reports, returning the
// resulting bundle member name.
func writeTexture(sink storage.Sink, opts Options, baseName string, grid *texture.Grid) (string, error) {
	data, ext, err := texture.EncodeBytes(opts.Encoder, grid)
	if err != nil {
		return "", err
	}
	name := baseName + ext
	w, err := sink.Create(name)
	if err != nil {
		return "", err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", sferrors.Wrapf(sferrors.Resource, sferrors.CodeFileWriteFailed, err, "write texture %s", name)
	}
	if err := w.Close(); err != nil {
		return "", sferrors.Wrapf(sferrors.Resource, sferrors.CodeFileWriteFailed, err, "close texture %s", name)
	}
	return name, nil
}

func clampU8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}

func clampU16(v float64) uint16 {
	if v < 0 {
		return 0
	}
	if v > 65535 {
		return 65535
	}
	return uint16(v + 0.5)
}

func requireColumn(t *splat.Table, name string) (*splat.Column, error) {
	c, err := t.Column(name)
	if err != nil {
		return nil, fmt.Errorf("sogwriter: %w", err)
	}
	return c, nil
}
