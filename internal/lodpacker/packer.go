package lodpacker

import (
	"fmt"
	"strconv"

	"github.com/sogforge/sogforge/internal/btree"
	"github.com/sogforge/sogforge/internal/gaussianbvh"
	"github.com/sogforge/sogforge/internal/morton"
	"github.com/sogforge/sogforge/internal/sogwriter"
	"github.com/sogforge/sogforge/pkg/splat"
)

// unit accumulates the sequence of leaf-group index sublists destined for
// one output file, all belonging to a single LOD level. The sublist
// boundaries are kept (rather than flattened) so the writer can Morton-sort
// within each original list independently, per spec §4.11 step 5.
type unit struct {
	fileIndex int
	lod       int
	sublists  [][]int
	total     int
}

type packer struct {
	table          *splat.Table
	chunkThreshold int
	chunkExtent    float32

	openUnit   map[int]*unit
	allUnits   []*unit
	perLodSeq  map[int]int
	lodsSeen   map[int]bool
}

// Pack carves nonEnv into spatial chunks and writes each chunk through the
// quantizing writer, plus any environment splats as a single standalone
// bundle. It returns the lod-meta.json manifest; the caller is responsible
// for serializing it to its final path.
func Pack(nonEnv, env *splat.Table, factory SinkFactory, opts Options) (*Meta, error) {
	if opts.ChunkCount <= 0 {
		opts.ChunkCount = 512
	}
	if opts.ChunkExtent <= 0 {
		opts.ChunkExtent = 16
	}

	meta := &Meta{}

	if env != nil && env.RowCount() > 0 {
		envSink, err := factory.Create("env")
		if err != nil {
			return nil, err
		}
		if _, err := sogwriter.Write(env, envSink, opts.Writer); err != nil {
			return nil, err
		}
		if err := envSink.Close(); err != nil {
			return nil, err
		}
		label := "env/meta.json"
		if factory.Bundled() {
			label = "env.sog"
		}
		meta.Environment = &label
	}

	work := nonEnv
	if !work.HasColumn(splat.LodColumn) {
		cloned := work.Clone()
		zeros := splat.NewColumn(splat.LodColumn, splat.F32, cloned.RowCount())
		for i := 0; i < cloned.RowCount(); i++ {
			zeros.WriteF32(i, 0)
		}
		if err := cloned.AddColumn(zeros); err != nil {
			return nil, err
		}
		work = cloned
	}

	n := work.RowCount()
	if n == 0 {
		meta.Filenames = nil
		meta.Tree = nil
		return meta, nil
	}

	identity := make([]int, n)
	for i := range identity {
		identity[i] = i
	}
	root, err := btree.Build(work, identity)
	if err != nil {
		return nil, err
	}

	p := &packer{
		table:          work,
		chunkThreshold: opts.ChunkCount * 1024,
		chunkExtent:    opts.ChunkExtent,
		openUnit:       make(map[int]*unit),
		perLodSeq:      make(map[int]int),
		lodsSeen:       make(map[int]bool),
	}

	tree, err := p.walk(root)
	if err != nil {
		return nil, err
	}

	filenames, err := p.writeUnits(work, factory, opts)
	if err != nil {
		return nil, err
	}

	meta.LodLevels = len(p.lodsSeen)
	meta.Filenames = filenames
	meta.Tree = tree
	return meta, nil
}

// walk implements spec §4.11 step 3: recurse while the node is still
// interior, over-sized, and spatially large; otherwise collapse the whole
// subtree into one leaf group.
func (p *packer) walk(node *btree.Node) (*TreeNode, error) {
	if !node.IsLeaf() && node.Count > p.chunkThreshold && node.Box.LargestDim() > p.chunkExtent {
		left, err := p.walk(node.Left)
		if err != nil {
			return nil, err
		}
		right, err := p.walk(node.Right)
		if err != nil {
			return nil, err
		}
		bound := left.Bound
		unionBound(&bound, right.Bound)
		return &TreeNode{Bound: bound, Children: []*TreeNode{left, right}}, nil
	}

	indices := collectIndices(node)
	bound, err := p.computeBound(indices)
	if err != nil {
		return nil, err
	}
	lods, err := p.binAndAssign(indices)
	if err != nil {
		return nil, err
	}
	return &TreeNode{Bound: bound, Lods: lods}, nil
}

func collectIndices(node *btree.Node) []int {
	if node.IsLeaf() {
		return node.Indices
	}
	out := collectIndices(node.Left)
	return append(out, collectIndices(node.Right)...)
}

// computeBound applies §4.5's 8-corner world-space extent expansion to the
// subset, rather than the cheaper centroid-only box the BTree itself caches,
// so the manifest's leaf bounds actually cover every splat's visible extent.
func (p *packer) computeBound(indices []int) (Bound, error) {
	halfExtents, _, err := gaussianbvh.Extents(p.table, indices)
	if err != nil {
		return Bound{}, err
	}
	xc, err := p.table.Column("x")
	if err != nil {
		return Bound{}, err
	}
	yc, err := p.table.Column("y")
	if err != nil {
		return Bound{}, err
	}
	zc, err := p.table.Column("z")
	if err != nil {
		return Bound{}, err
	}

	box := splat.EmptyBox()
	for n, idx := range indices {
		x, _ := xc.ReadAsF32(idx)
		y, _ := yc.ReadAsF32(idx)
		z, _ := zc.ReadAsF32(idx)
		he := halfExtents[n]
		box.Encloses([3]float32{x - he[0], y - he[1], z - he[2]})
		box.Encloses([3]float32{x + he[0], y + he[1], z + he[2]})
	}
	return Bound{Min: box.Min, Max: box.Max}, nil
}

// binAndAssign bins indices by their lod column value and appends each bin
// to that level's currently open file unit, starting a new unit once the
// running count reaches the chunk threshold.
func (p *packer) binAndAssign(indices []int) (map[string]LodUnit, error) {
	lodCol, err := p.table.Column(splat.LodColumn)
	if err != nil {
		return nil, err
	}

	bins := make(map[int][]int)
	for _, idx := range indices {
		v, err := lodCol.ReadAsF32(idx)
		if err != nil {
			return nil, err
		}
		lvl := int(v)
		bins[lvl] = append(bins[lvl], idx)
	}

	out := make(map[string]LodUnit, len(bins))
	for lvl, binIdx := range bins {
		p.lodsSeen[lvl] = true
		u := p.currentUnitFor(lvl)
		offset := u.total
		u.sublists = append(u.sublists, binIdx)
		u.total += len(binIdx)
		out[strconv.Itoa(lvl)] = LodUnit{File: u.fileIndex, Offset: offset, Count: len(binIdx)}
		if u.total >= p.chunkThreshold {
			delete(p.openUnit, lvl)
		}
	}
	return out, nil
}

func (p *packer) currentUnitFor(lvl int) *unit {
	if u, ok := p.openUnit[lvl]; ok {
		return u
	}
	seq := p.perLodSeq[lvl]
	p.perLodSeq[lvl] = seq + 1
	u := &unit{fileIndex: len(p.allUnits), lod: lvl}
	p.allUnits = append(p.allUnits, u)
	p.openUnit[lvl] = u
	return u
}

func unionBound(b *Bound, o Bound) {
	for i := 0; i < 3; i++ {
		if o.Min[i] < b.Min[i] {
			b.Min[i] = o.Min[i]
		}
		if o.Max[i] > b.Max[i] {
			b.Max[i] = o.Max[i]
		}
	}
}

// unitName derives the on-disk base name for a file unit from its LOD level
// and its index in the manifest's filenames list, e.g. "2_3" for file 3,
// which holds LOD level 2.
func unitName(lvl, seq int) string {
	return fmt.Sprintf("%d_%d", lvl, seq)
}

// morton-sort each unit's concatenated index lists before permuting, per
// spec §4.11 step 5: "Morton-sort within each original list, then permute
// the full table by the concatenation" — sortUnitIndices preserves that by
// sorting sub-ranges independently rather than the concatenation as a whole.
func sortUnitIndices(t *splat.Table, sublists [][]int) ([]int, error) {
	out := make([]int, 0, sumLens(sublists))
	for _, sub := range sublists {
		sorted, err := morton.SortOrder(t, sub)
		if err != nil {
			return nil, err
		}
		out = append(out, sorted...)
	}
	return out, nil
}

func sumLens(lists [][]int) int {
	n := 0
	for _, l := range lists {
		n += len(l)
	}
	return n
}
