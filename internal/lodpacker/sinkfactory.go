package lodpacker

import (
	"path/filepath"

	"github.com/sogforge/sogforge/internal/storage"
)

// FileSinkFactory opens one storage.Sink per file unit underneath a base
// directory, in either bundled (one .sog ZIP per unit) or unbundled (one
// subdirectory per unit) layout — whichever the driver's target path implies.
type FileSinkFactory struct {
	BaseDir   string
	Bundle    bool
	Overwrite bool
}

// Create implements SinkFactory.
func (f FileSinkFactory) Create(name string) (storage.Sink, error) {
	if f.Bundle {
		return storage.NewZipSink(filepath.Join(f.BaseDir, name+".sog"), f.Overwrite)
	}
	return storage.NewDirSink(filepath.Join(f.BaseDir, name), f.Overwrite)
}

// Bundled implements SinkFactory.
func (f FileSinkFactory) Bundled() bool { return f.Bundle }
