// Package octree compresses a voxelized Gaussian scene into a sparse octree
// in Laine-Karras layout (spec §4.6). Turning Gaussians into voxel occupancy
// is the "opaque solver" the core treats as an external collaborator; this
// package starts from already-classified 4x4x4 leaf blocks (either produced
// by that solver or by the package's own small CPU default) and does
// everything downstream of that: accumulation, the optional neighbor filter,
// bottom-up merge, and flattening.
package octree

import (
	"encoding/binary"
	"sort"

	"github.com/sogforge/sogforge/internal/bloom"
)

// BlockType classifies a 4x4x4 leaf block's occupancy.
type BlockType int

const (
	// BlockEmpty blocks are dropped entirely (both mask halves zero).
	BlockEmpty BlockType = iota
	// BlockSolid blocks have both mask halves all-ones; recorded by Morton
	// code only.
	BlockSolid
	// BlockMixed blocks carry a real occupancy mask.
	BlockMixed
)

// Classify returns the BlockType for a given (lo,hi) occupancy mask pair.
func Classify(lo, hi uint32) BlockType {
	if lo == 0 && hi == 0 {
		return BlockEmpty
	}
	if lo == 0xFFFFFFFF && hi == 0xFFFFFFFF {
		return BlockSolid
	}
	return BlockMixed
}

// Accumulator collects classified leaf blocks keyed by block-grid Morton
// code. It is append-only during voxelization; Clear resets it for reuse
// across scenes.
type Accumulator struct {
	mixedIndex  map[uint64]int
	mixedMorton []uint64
	mixedMasks  [][2]uint32 // (lo,hi) per entry, parallel to mixedMorton

	solidIndex  map[uint64]bool
	solidMorton []uint64

	seen *bloom.BloomFilter // fast-path reject for "definitely not seen before"
}

// NewAccumulator creates an empty accumulator sized for an expected block
// count (used only to size the bloom fast path; the accumulator grows past
// this with no correctness impact, just more bloom false positives).
func NewAccumulator(expectedBlocks int) *Accumulator {
	return &Accumulator{
		mixedIndex: make(map[uint64]int),
		solidIndex: make(map[uint64]bool),
		seen:       bloom.NewWithEstimates(max(expectedBlocks, 64), 0.01),
	}
}

func mortonKey(morton uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], morton)
	return buf[:]
}

// Add records one block's classification. Blocks with the same Morton code
// seen more than once have their masks merged with a bitwise OR (a later
// Gaussian contributing additional occupied voxels to a block another
// Gaussian already touched).
func (a *Accumulator) Add(morton uint64, lo, hi uint32) {
	switch Classify(lo, hi) {
	case BlockEmpty:
		return
	case BlockSolid:
		if a.seen.Contains(mortonKey(morton)) && a.solidIndex[morton] {
			return
		}
		if !a.solidIndex[morton] {
			a.solidIndex[morton] = true
			a.solidMorton = append(a.solidMorton, morton)
			a.seen.Add(mortonKey(morton))
		}
		// If this block was previously recorded as mixed, promote it: drop
		// the mixed entry since it is now fully solid.
		if idx, ok := a.mixedIndex[morton]; ok {
			a.removeMixedAt(idx)
		}
	case BlockMixed:
		if idx, ok := a.mixedIndex[morton]; ok {
			a.mixedMasks[idx][0] |= lo
			a.mixedMasks[idx][1] |= hi
			if a.mixedMasks[idx][0] == 0xFFFFFFFF && a.mixedMasks[idx][1] == 0xFFFFFFFF {
				a.removeMixedAt(idx)
				if !a.solidIndex[morton] {
					a.solidIndex[morton] = true
					a.solidMorton = append(a.solidMorton, morton)
				}
			}
			return
		}
		a.mixedIndex[morton] = len(a.mixedMorton)
		a.mixedMorton = append(a.mixedMorton, morton)
		a.mixedMasks = append(a.mixedMasks, [2]uint32{lo, hi})
		a.seen.Add(mortonKey(morton))
	}
}

// removeMixedAt removes the mixed entry at position idx by swapping with the
// last entry and fixing up the index, then re-pointing mixedIndex for the
// moved entry.
func (a *Accumulator) removeMixedAt(idx int) {
	last := len(a.mixedMorton) - 1
	removed := a.mixedMorton[idx]
	movedMorton := a.mixedMorton[last]
	a.mixedMorton[idx] = movedMorton
	a.mixedMasks[idx] = a.mixedMasks[last]
	a.mixedMorton = a.mixedMorton[:last]
	a.mixedMasks = a.mixedMasks[:last]
	delete(a.mixedIndex, removed)
	if idx < last {
		a.mixedIndex[movedMorton] = idx
	}
}

// Clear resets the accumulator to empty.
func (a *Accumulator) Clear() {
	a.mixedIndex = make(map[uint64]int)
	a.mixedMorton = nil
	a.mixedMasks = nil
	a.solidIndex = make(map[uint64]bool)
	a.solidMorton = nil
	a.seen = bloom.NewWithEstimates(64, 0.01)
}

// Count returns the number of mixed and solid blocks currently recorded.
func (a *Accumulator) Count() (mixed, solid int) {
	return len(a.mixedMorton), len(a.solidMorton)
}

// Mask returns the occupancy mask for a mixed block's Morton code, and
// whether it was found.
func (a *Accumulator) Mask(morton uint64) (lo, hi uint32, ok bool) {
	idx, found := a.mixedIndex[morton]
	if !found {
		return 0, 0, false
	}
	return a.mixedMasks[idx][0], a.mixedMasks[idx][1], true
}

// sortedEntries returns (morton, type, maskIndex) triples across both mixed
// and solid blocks, sorted ascending by Morton code, per spec §4.6 step 1.
func (a *Accumulator) sortedEntries() []blockEntry {
	entries := make([]blockEntry, 0, len(a.mixedMorton)+len(a.solidMorton))
	for i, m := range a.mixedMorton {
		entries = append(entries, blockEntry{morton: m, typ: BlockMixed, maskIdx: i})
	}
	for _, m := range a.solidMorton {
		entries = append(entries, blockEntry{morton: m, typ: BlockSolid})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].morton < entries[j].morton })
	return entries
}

type blockEntry struct {
	morton  uint64
	typ     BlockType
	maskIdx int // valid only when typ == BlockMixed; index into the accumulator's mixedMasks at merge time
}
