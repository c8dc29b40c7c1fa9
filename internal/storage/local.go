package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// DirSink writes each named file directly into a directory, the unbundled
// layout for §4.10 (target paths that don't end in .sog).
type DirSink struct {
	dir string
}

// NewDirSink prepares dir as a bundle target. If overwrite is false and dir
// already exists and is non-empty, NewDirSink returns ErrTargetExists.
func NewDirSink(dir string, overwrite bool) (*DirSink, error) {
	if !overwrite {
		if entries, err := os.ReadDir(dir); err == nil && len(entries) > 0 {
			return nil, ErrTargetExists
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory %s: %w", dir, err)
	}
	return &DirSink{dir: dir}, nil
}

// Create opens name for writing inside the sink's directory. The file is
// staged under a uuid-suffixed temporary name in the same directory and
// atomically renamed into place when the returned writer is closed, so a
// reader never observes a partially-written bundle member.
func (d *DirSink) Create(name string) (io.WriteCloser, error) {
	path := filepath.Join(d.dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create parent directory for %s: %w", name, err)
	}
	tmpPath := path + "." + uuid.NewString() + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("create file %s: %w", name, err)
	}
	return &stagedFile{f: f, tmpPath: tmpPath, finalPath: path}, nil
}

// stagedFile wraps an *os.File open at a temporary path, renaming it to its
// final path on Close.
type stagedFile struct {
	f         *os.File
	tmpPath   string
	finalPath string
}

func (s *stagedFile) Write(p []byte) (int, error) { return s.f.Write(p) }

func (s *stagedFile) Close() error {
	if err := s.f.Close(); err != nil {
		os.Remove(s.tmpPath)
		return fmt.Errorf("close staged file %s: %w", s.finalPath, err)
	}
	if err := os.Rename(s.tmpPath, s.finalPath); err != nil {
		return fmt.Errorf("rename staged file into place %s: %w", s.finalPath, err)
	}
	return nil
}

// Close is a no-op for a directory sink; every file is already flushed and
// closed individually by its caller.
func (d *DirSink) Close() error { return nil }
