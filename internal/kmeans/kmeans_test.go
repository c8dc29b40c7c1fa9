package kmeans

import (
	"testing"

	"github.com/sogforge/sogforge/pkg/splat"
)

func tableFromRows(rows [][]float32, names []string) *splat.Table {
	n := len(rows)
	cols := make([]*splat.Column, len(names))
	for d, name := range names {
		cols[d] = splat.NewColumn(name, splat.F32, n)
	}
	tbl, _ := splat.NewTable(cols...)
	for r, row := range rows {
		m := make(map[string]float32)
		for d, name := range names {
			m[name] = row[d]
		}
		tbl.WriteRow(r, m)
	}
	return tbl
}

func TestRunFewerRowsThanKReturnsAsIs(t *testing.T) {
	tbl := tableFromRows([][]float32{{1, 2}, {3, 4}}, []string{"a", "b"})
	result, err := Run(tbl, 5, 10, 1)
	if err != nil {
		t.Fatal(err)
	}
	if result.Centroids.RowCount() != 2 {
		t.Fatalf("expected centroids table unchanged with 2 rows, got %d", result.Centroids.RowCount())
	}
	if len(result.Labels) != 2 || result.Labels[0] != 0 || result.Labels[1] != 1 {
		t.Errorf("expected labels [0,1], got %v", result.Labels)
	}
}

func TestRunSeparatesTwoClusters(t *testing.T) {
	rows := [][]float32{
		{0, 0}, {0.1, 0.1}, {-0.1, 0}, {0, -0.1},
		{100, 100}, {100.1, 99.9}, {99.9, 100}, {100, 100.1},
	}
	tbl := tableFromRows(rows, []string{"x", "y"})
	result, err := Run(tbl, 2, 20, 42)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Labels) != len(rows) {
		t.Fatalf("expected %d labels, got %d", len(rows), len(result.Labels))
	}
	// The first 4 rows (near origin) must all share one label, the last 4
	// (near 100,100) must share the other, distinct label.
	firstGroup := result.Labels[0]
	for i := 1; i < 4; i++ {
		if result.Labels[i] != firstGroup {
			t.Errorf("expected rows 0-3 in the same cluster, row %d differs", i)
		}
	}
	secondGroup := result.Labels[4]
	if secondGroup == firstGroup {
		t.Error("expected the two spatially separated clusters to get distinct labels")
	}
	for i := 5; i < 8; i++ {
		if result.Labels[i] != secondGroup {
			t.Errorf("expected rows 4-7 in the same cluster, row %d differs", i)
		}
	}
}

func TestRunDeterministicWithSameSeed(t *testing.T) {
	rows := make([][]float32, 50)
	for i := range rows {
		rows[i] = []float32{float32(i), float32(i * 2)}
	}
	tbl := tableFromRows(rows, []string{"x", "y"})

	r1, err := Run(tbl, 5, 10, 7)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := Run(tbl, 5, 10, 7)
	if err != nil {
		t.Fatal(err)
	}
	for i := range r1.Labels {
		if r1.Labels[i] != r2.Labels[i] {
			t.Fatalf("expected identical labels for identical seed, diverged at row %d", i)
		}
	}
}

func TestCluster1DProducesOrderedCodebook(t *testing.T) {
	rows := make([][]float32, 500)
	for i := range rows {
		rows[i] = []float32{float32(i % 100), float32((i * 3) % 100), float32((i * 7) % 100)}
	}
	tbl := tableFromRows(rows, []string{"r", "g", "b"})

	centroids, labels, err := Cluster1D(tbl, 16, 10, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(centroids); i++ {
		if centroids[i-1] > centroids[i] {
			t.Fatalf("expected ascending codebook, got %v at %d > %v at %d", centroids[i-1], i-1, centroids[i], i)
		}
	}
	if len(labels) != 3 {
		t.Fatalf("expected 3 output columns, got %d", len(labels))
	}
	for _, col := range labels {
		if len(col) != 500 {
			t.Fatalf("expected 500 labels per column, got %d", len(col))
		}
		for _, lbl := range col {
			if int(lbl) >= len(centroids) {
				t.Fatalf("label %d out of range for %d centroids", lbl, len(centroids))
			}
		}
	}
}
