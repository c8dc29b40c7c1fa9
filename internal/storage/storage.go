// Package storage provides the output sink abstraction for the quantizing
// writer (spec §4.10): a bundle of named files goes either into a directory
// next to a meta.json, or into a single store-mode (uncompressed) ZIP
// archive when the target path ends in .sog.
package storage

import (
	"errors"
	"io"
)

// ErrTargetExists is returned by NewDirSink and NewZipSink when a target
// already exists and overwrite is not allowed.
var ErrTargetExists = errors.New("target already exists")

// Sink collects a named bundle of files (textures plus meta.json) into
// either a directory or an archive. Create must be called once per file
// name; writing the same name twice is a caller error.
type Sink interface {
	// Create opens name for writing within the bundle. The returned writer
	// must be closed by the caller before Close is called on the Sink.
	Create(name string) (io.WriteCloser, error)

	// Close finalizes the bundle (flushing and closing the archive, if
	// any). A directory sink's Close is a no-op.
	Close() error
}
