// Package lodpacker implements the LOD packer (spec §4.11): it carves a
// splat scene into spatially coherent chunks via a BTree (C4), bins each
// chunk's rows by their precomputed LOD level, and hands each resulting
// "file unit" sub-table to the quantizing writer (C10) through a bounded
// worker pool. Grounded on
// _examples/original_source/src/writers/lod_writer.cpp.
package lodpacker

import (
	"github.com/sogforge/sogforge/internal/cache"
	"github.com/sogforge/sogforge/internal/sogwriter"
	"github.com/sogforge/sogforge/internal/storage"
)

// Options configures a Pack call.
type Options struct {
	// ChunkCount is the number of thousands of splats per chunk; the actual
	// row-count threshold is ChunkCount*1024.
	ChunkCount int
	// ChunkExtent is the largest-dimension threshold (meters) below which a
	// BTree node stops being subdivided further, even if it's still over the
	// row-count threshold.
	ChunkExtent float32
	// WorkerCount bounds the writer pool; 1 forces fully sequential writes
	// (spec §5's debug mode).
	WorkerCount int
	// Writer is passed through to every per-unit sogwriter.Write call.
	Writer sogwriter.Options
	// Scratch, when set, spills each file unit's permuted sub-table to a
	// local NVMe-backed cache immediately after permutation; the same worker
	// loads it back before opening the unit's sink, so each permuted
	// sub-table is in memory again for its write. Nil disables spilling: sub-
	// tables stay in memory from permutation through write, same as before
	// this tier existed.
	Scratch *cache.ScratchCache
}

// SinkFactory opens a new storage.Sink for a named file unit (e.g. "0_0" or
// "env"). The driver supplies the concrete implementation, since only it
// knows the base directory and whether the run is bundled (.sog) or
// unbundled (a plain directory per unit).
type SinkFactory interface {
	Create(name string) (storage.Sink, error)
	// Bundled reports whether units are written as single .sog archives
	// (true) or as unbundled per-unit directories (false), so Pack can
	// name the environment manifest entry accordingly (spec §4.11 step 1).
	Bundled() bool
}

// Bound is the manifest's per-node bounding box.
type Bound struct {
	Min [3]float32 `json:"min"`
	Max [3]float32 `json:"max"`
}

// LodUnit locates one LOD level's rows within a file unit.
type LodUnit struct {
	File   int `json:"file"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

// TreeNode is one node of the serialized lod-meta.json tree: either an
// interior node (Children set) or a leaf group (Lods set).
type TreeNode struct {
	Bound    Bound               `json:"bound"`
	Children []*TreeNode         `json:"children,omitempty"`
	Lods     map[string]LodUnit `json:"lods,omitempty"`
}

// Meta is the full lod-meta.json manifest (spec §4.11 step 4).
type Meta struct {
	LodLevels   int       `json:"lodLevels"`
	Environment *string   `json:"environment"`
	Filenames   []string  `json:"filenames"`
	Tree        *TreeNode `json:"tree"`
}
