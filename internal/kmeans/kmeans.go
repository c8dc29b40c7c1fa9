// Package kmeans implements Lloyd's-algorithm k-means clustering over a
// splat/codebook's float32 columns (spec §4.7), plus a 1-D variant used to
// build the 256-entry codebooks the quantizing writer stores colors and
// scales against.
package kmeans

import (
	"math/rand"
	"sort"

	"github.com/sogforge/sogforge/pkg/splat"
)

// Result is the output of Run: the fitted centroids (one row per cluster,
// same columns as the input data) and the per-row cluster assignment.
type Result struct {
	Centroids *splat.Table
	Labels    []int
}

// Run clusters data's rows into k centroids over iterations Lloyd steps.
// There is no convergence test — the iteration count is a contract, not a
// target. seed makes centroid seeding and empty-cluster reseeding
// deterministic.
func Run(data *splat.Table, k, iterations int, seed int64) (*Result, error) {
	rows := data.RowCount()
	cols := data.Columns()
	dim := len(cols)

	if rows < k {
		labels := make([]int, rows)
		for i := range labels {
			labels[i] = i
		}
		return &Result{Centroids: data.Clone(), Labels: labels}, nil
	}

	rng := rand.New(rand.NewSource(seed))
	values, err := readMatrix(data)
	if err != nil {
		return nil, err
	}

	centroids := seedCentroids(values, dim, k, rng)
	labels := make([]int, rows)

	for iter := 0; iter < iterations; iter++ {
		for r := 0; r < rows; r++ {
			labels[r] = nearestCentroid(values[r], centroids)
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for r := 0; r < rows; r++ {
			c := labels[r]
			counts[c]++
			for d := 0; d < dim; d++ {
				sums[c][d] += float64(values[r][d])
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				reseed := rng.Intn(rows)
				copy(centroids[c], values[reseed])
				continue
			}
			for d := 0; d < dim; d++ {
				centroids[c][d] = float32(sums[c][d] / float64(counts[c]))
			}
		}
	}

	centroidCols := make([]*splat.Column, dim)
	for d, col := range cols {
		c := splat.NewColumn(col.Name(), splat.F32, k)
		for r := 0; r < k; r++ {
			c.WriteF32(r, centroids[r][d])
		}
		centroidCols[d] = c
	}
	centroidTable, err := splat.NewTable(centroidCols...)
	if err != nil {
		return nil, err
	}

	return &Result{Centroids: centroidTable, Labels: labels}, nil
}

func readMatrix(t *splat.Table) ([][]float32, error) {
	rows := t.RowCount()
	cols := t.Columns()
	out := make([][]float32, rows)
	for r := 0; r < rows; r++ {
		out[r] = make([]float32, len(cols))
		for d, col := range cols {
			v, err := col.ReadAsF32(r)
			if err != nil {
				return nil, err
			}
			out[r][d] = v
		}
	}
	return out, nil
}

// seedCentroids implements spec §4.7's seeding rule: evenly spaced along the
// range for 1-D data, or k distinct random rows for multi-D data.
func seedCentroids(values [][]float32, dim, k int, rng *rand.Rand) [][]float32 {
	centroids := make([][]float32, k)
	if dim == 1 {
		min, max := values[0][0], values[0][0]
		for _, v := range values {
			if v[0] < min {
				min = v[0]
			}
			if v[0] > max {
				max = v[0]
			}
		}
		span := max - min
		for c := 0; c < k; c++ {
			var v float32
			if k == 1 {
				v = min
			} else {
				v = min + span*float32(c)/float32(k-1)
			}
			centroids[c] = []float32{v}
		}
		return centroids
	}

	perm := rng.Perm(len(values))
	for c := 0; c < k; c++ {
		src := values[perm[c]]
		centroids[c] = append([]float32(nil), src...)
	}
	return centroids
}

func nearestCentroid(point []float32, centroids [][]float32) int {
	best := 0
	bestDist := distSq(point, centroids[0])
	for c := 1; c < len(centroids); c++ {
		d := distSq(point, centroids[c])
		if d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}

func distSq(a, b []float32) float64 {
	sum := 0.0
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return sum
}

// Cluster1D implements the 1-D codebook clustering used for color and scale
// quantization (spec §4.7): the table's values are read column-major into a
// single sequence, clustered into k centroids, then the labels are remapped
// so label 0 refers to the smallest centroid and reshaped back into one u8
// column per original column.
func Cluster1D(data *splat.Table, k, iterations int, seed int64) (centroids []float32, labels [][]uint8, err error) {
	cols := data.Columns()
	rows := data.RowCount()

	flatVals := make([]float32, 0, rows*len(cols))
	for _, col := range cols {
		for r := 0; r < rows; r++ {
			v, rerr := col.ReadAsF32(r)
			if rerr != nil {
				return nil, nil, rerr
			}
			flatVals = append(flatVals, v)
		}
	}

	flatCol := splat.NewColumn("v", splat.F32, len(flatVals))
	for i, v := range flatVals {
		flatCol.WriteF32(i, v)
	}
	flatTable, err := splat.NewTable(flatCol)
	if err != nil {
		return nil, nil, err
	}

	result, err := Run(flatTable, k, iterations, seed)
	if err != nil {
		return nil, nil, err
	}

	numCentroids := result.Centroids.RowCount()
	type centroidEntry struct {
		value    float32
		original int
	}
	entries := make([]centroidEntry, numCentroids)
	valCol, err := result.Centroids.Column("v")
	if err != nil {
		return nil, nil, err
	}
	for i := 0; i < numCentroids; i++ {
		v, _ := valCol.ReadAsF32(i)
		entries[i] = centroidEntry{value: v, original: i}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].value < entries[j].value })

	// rank[original] = position of that centroid once sorted ascending
	rank := make([]int, numCentroids)
	sortedCentroids := make([]float32, numCentroids)
	for newIdx, e := range entries {
		rank[e.original] = newIdx
		sortedCentroids[newIdx] = e.value
	}

	remapped := make([]int, len(result.Labels))
	for i, lbl := range result.Labels {
		remapped[i] = rank[lbl]
	}

	out := make([][]uint8, len(cols))
	for c := range out {
		out[c] = make([]uint8, rows)
	}
	for i, lbl := range remapped {
		colIdx := i / rows
		rowIdx := i % rows
		out[colIdx][rowIdx] = uint8(lbl)
	}

	return sortedCentroids, out, nil
}
