package sogwriter

import (
	"fmt"
	"image/color"
	"math"

	"github.com/sogforge/sogforge/internal/kmeans"
	"github.com/sogforge/sogforge/internal/storage"
	"github.com/sogforge/sogforge/internal/texture"
	"github.com/sogforge/sogforge/pkg/splat"
)

// paletteSize picks the higher-SH palette size per sog_writer.cpp:
// min(64, 2^floor(log2(n/1024))) * 1024, with n/1024 clamped to at least 1 so
// small scenes still get a one-bucket palette rather than a non-positive size.
func paletteSize(n int) int {
	ratio := float64(n) / 1024.0
	if ratio < 1 {
		ratio = 1
	}
	factor := math.Pow(2, math.Floor(math.Log2(ratio)))
	if factor > 64 {
		factor = 64
	}
	return int(factor * 1024)
}

// writeSH writes the higher-band SH palette (the shN_centroids and
// shN_labels textures) when the scene carries f_rest_* columns. It is a no-op,
// leaving meta.SHN nil, for band-0 scenes.
func writeSH(t *splat.Table, sink storage.Sink, opts Options, meta *Meta) error {
	bands, err := splat.BandCount(t)
	if err != nil {
		return err
	}
	if bands == 0 {
		meta.SHN = nil
		return nil
	}

	k := splat.BandCoeffCount(bands)
	m := 3 * k
	names := make([]string, m)
	for i := range names {
		names[i] = fmt.Sprintf("f_rest_%d", i)
	}
	sub, err := t.CloneSubset(names...)
	if err != nil {
		return err
	}

	n := t.RowCount()
	requestedP := paletteSize(n)
	paletteResult, err := kmeans.Run(sub, requestedP, opts.Iterations, opts.Seed)
	if err != nil {
		return err
	}
	p := paletteResult.Centroids.RowCount()

	codebook, valueLabels, err := kmeans.Cluster1D(paletteResult.Centroids, codebookSize, opts.Iterations, opts.Seed)
	if err != nil {
		return err
	}

	centroidsWidth := 64 * k
	centroidsHeight := int(math.Ceil(float64(p) / 64))
	if centroidsHeight < 1 {
		centroidsHeight = 1
	}
	// rgbCols[j] holds the f_rest_* indices of coefficient j's R, G and B
	// values: within each band come all of R's coefficients, then G's, then B's.
	rgbCols := make([][3]int, 0, k)
	bandStart := 0
	for _, size := range []int{3, 5, 7}[:bands] {
		for i := 0; i < size; i++ {
			rgbCols = append(rgbCols, [3]int{bandStart + i, bandStart + size + i, bandStart + 2*size + i})
		}
		bandStart += 3 * size
	}
	centroids := texture.NewGrid(centroidsWidth, centroidsHeight)
	for pi := 0; pi < p; pi++ {
		x0, y := (pi%64)*k, pi/64
		for j := 0; j < k; j++ {
			r := valueLabels[rgbCols[j][0]][pi]
			g := valueLabels[rgbCols[j][1]][pi]
			b := valueLabels[rgbCols[j][2]][pi]
			centroids.Set(x0+j, y, color.RGBA{R: r, G: g, B: b, A: 255})
		}
	}
	centroidsName, err := writeTexture(sink, opts, "shN_centroids", centroids)
	if err != nil {
		return err
	}

	labelWidth, labelHeight := gridSize(n)
	labels := texture.NewGrid(labelWidth, labelHeight)
	for r := 0; r < n; r++ {
		palIdx := uint16(paletteResult.Labels[r])
		x, y := r%labelWidth, r/labelWidth
		labels.Set(x, y, color.RGBA{R: uint8(palIdx), G: uint8(palIdx >> 8), B: 0, A: 255})
	}
	labelsName, err := writeTexture(sink, opts, "shN_labels", labels)
	if err != nil {
		return err
	}

	meta.SHN = &SHNMeta{
		Count:    p,
		Bands:    bands,
		Codebook: codebook,
		Files:    []string{centroidsName, labelsName},
	}
	return nil
}
