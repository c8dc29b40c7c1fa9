package cache

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/golang/snappy"
	"github.com/google/uuid"
	"github.com/sogforge/sogforge/pkg/splat"
)

// ScratchCache spills columnar sub-tables to a local NVMe-backed cache dir
// under snappy compression, so the LOD packer's worker pool (spec §4.11
// step 5) can hold more in-flight file units than fit comfortably in
// memory: each unit's sub-table is spilled right after permutation and
// rehydrated inside the worker goroutine immediately before it reaches the
// quantizing writer. Built directly on NVMeCache's LRU disk tier (nvme.go),
// repurposed here from caching remote object downloads to spilling local
// scratch tables; entries are pinned for the spill's lifetime so the
// evictor never reclaims a sub-table a worker still needs.
type ScratchCache struct {
	nvme *NVMeCache
	tmp  string
}

// NewScratchCache opens a scratch cache rooted at dir, capped at maxBytes.
func NewScratchCache(dir string, maxBytes int64) (*ScratchCache, error) {
	nvme, err := NewNVMeCache(dir, maxBytes)
	if err != nil {
		return nil, err
	}
	tmp := filepath.Join(dir, ".staging")
	if err := os.MkdirAll(tmp, 0755); err != nil {
		return nil, fmt.Errorf("create scratch staging dir: %w", err)
	}
	return &ScratchCache{nvme: nvme, tmp: tmp}, nil
}

// Close shuts down the underlying NVMe cache and its eviction worker.
func (s *ScratchCache) Close() { s.nvme.Close() }

// Spill serializes t (snappy-compressed column bytes) under key.
func (s *ScratchCache) Spill(key string, t *splat.Table) error {
	staged := filepath.Join(s.tmp, uuid.NewString()+".scratch")
	f, err := os.Create(staged)
	if err != nil {
		return fmt.Errorf("create scratch staging file: %w", err)
	}
	if err := encodeTable(f, t); err != nil {
		f.Close()
		os.Remove(staged)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(staged)
		return err
	}
	info, err := os.Stat(staged)
	if err != nil {
		os.Remove(staged)
		return err
	}
	if err := s.nvme.Put(key, staged, info.Size()); err != nil {
		os.Remove(staged)
		return err
	}
	os.Remove(staged)
	s.nvme.Pin(key)
	return nil
}

// Load rehydrates the table previously spilled under key and removes it
// from the cache: a scratch entry is consumed exactly once.
func (s *ScratchCache) Load(key string) (*splat.Table, error) {
	path, ok := s.nvme.Get(key)
	if !ok {
		return nil, fmt.Errorf("scratch cache: no entry for %q", key)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scratch entry %q: %w", key, err)
	}
	defer f.Close()
	t, err := decodeTable(f)
	if err != nil {
		return nil, err
	}
	s.nvme.Unpin(key)
	s.nvme.Remove(key)
	return t, nil
}

func encodeTable(w io.Writer, t *splat.Table) error {
	cols := t.Columns()
	if err := binary.Write(w, binary.LittleEndian, uint32(len(cols))); err != nil {
		return err
	}
	for _, c := range cols {
		name := c.Name()
		if err := binary.Write(w, binary.LittleEndian, uint32(len(name))); err != nil {
			return err
		}
		if _, err := io.WriteString(w, name); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(c.Type())); err != nil {
			return err
		}
		compressed := snappy.Encode(nil, c.Bytes())
		if err := binary.Write(w, binary.LittleEndian, uint32(len(compressed))); err != nil {
			return err
		}
		if _, err := w.Write(compressed); err != nil {
			return err
		}
	}
	return nil
}

func decodeTable(r io.Reader) (*splat.Table, error) {
	var numCols uint32
	if err := binary.Read(r, binary.LittleEndian, &numCols); err != nil {
		return nil, fmt.Errorf("decode scratch table header: %w", err)
	}
	cols := make([]*splat.Column, numCols)
	for i := range cols {
		var nameLen uint32
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return nil, err
		}
		nameBuf := make([]byte, nameLen)
		if _, err := io.ReadFull(r, nameBuf); err != nil {
			return nil, err
		}
		var typ uint32
		if err := binary.Read(r, binary.LittleEndian, &typ); err != nil {
			return nil, err
		}
		var compLen uint32
		if err := binary.Read(r, binary.LittleEndian, &compLen); err != nil {
			return nil, err
		}
		compBuf := make([]byte, compLen)
		if _, err := io.ReadFull(r, compBuf); err != nil {
			return nil, err
		}
		raw, err := snappy.Decode(nil, compBuf)
		if err != nil {
			return nil, fmt.Errorf("snappy decode scratch column %q: %w", string(nameBuf), err)
		}
		cols[i] = splat.NewColumnFromBytes(string(nameBuf), splat.ElementType(typ), raw)
	}
	return splat.NewTable(cols...)
}
