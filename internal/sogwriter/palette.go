package sogwriter

import (
	"image/color"

	"github.com/sogforge/sogforge/internal/kmeans"
	"github.com/sogforge/sogforge/internal/storage"
	"github.com/sogforge/sogforge/internal/texture"
	"github.com/sogforge/sogforge/pkg/splat"
)

const codebookSize = 256

// writeScales writes the scales texture: a 256-entry 1-D codebook over the three
// scale columns, with the per-row codebook index stored one per channel.
func writeScales(t *splat.Table, sink storage.Sink, opts Options, width, height int, meta *Meta) error {
	sub, err := t.CloneSubset("scale_0", "scale_1", "scale_2")
	if err != nil {
		return err
	}
	codebook, labels, err := kmeans.Cluster1D(sub, codebookSize, opts.Iterations, opts.Seed)
	if err != nil {
		return err
	}

	grid := texture.NewGrid(width, height)
	n := t.RowCount()
	for r := 0; r < n; r++ {
		x, y := r%width, r/width
		grid.Set(x, y, color.RGBA{R: labels[0][r], G: labels[1][r], B: labels[2][r], A: 255})
	}

	name, err := writeTexture(sink, opts, "scales", grid)
	if err != nil {
		return err
	}
	meta.Scales = ScalesMeta{Codebook: codebook, Files: []string{name}}
	return nil
}

// writeSH0 writes the sh0 texture: a 256-entry 1-D codebook over the DC color
// columns, with opacity packed directly into the alpha channel.
func writeSH0(t *splat.Table, sink storage.Sink, opts Options, width, height int, meta *Meta) error {
	sub, err := t.CloneSubset("f_dc_0", "f_dc_1", "f_dc_2")
	if err != nil {
		return err
	}
	codebook, labels, err := kmeans.Cluster1D(sub, codebookSize, opts.Iterations, opts.Seed)
	if err != nil {
		return err
	}
	opacityCol, err := requireColumn(t, "opacity")
	if err != nil {
		return err
	}

	grid := texture.NewGrid(width, height)
	n := t.RowCount()
	for r := 0; r < n; r++ {
		op, err := opacityCol.ReadAsF32(r)
		if err != nil {
			return err
		}
		a := clampU8(float64(splat.Sigmoid(op)) * 255)
		x, y := r%width, r/width
		grid.Set(x, y, color.RGBA{R: labels[0][r], G: labels[1][r], B: labels[2][r], A: a})
	}

	name, err := writeTexture(sink, opts, "sh0", grid)
	if err != nil {
		return err
	}
	meta.SH0 = SH0Meta{Codebook: codebook, Files: []string{name}}
	return nil
}
