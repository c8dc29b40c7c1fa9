package storage

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
)

// ZipSink collects every named file into a single store-mode (uncompressed)
// ZIP archive, the bundled layout for a .sog target path (spec §4.10).
type ZipSink struct {
	f  *os.File
	zw *zip.Writer
}

// NewZipSink creates path as a new ZIP archive. If overwrite is false and
// path already exists, NewZipSink returns ErrTargetExists.
func NewZipSink(path string, overwrite bool) (*ZipSink, error) {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return nil, ErrTargetExists
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create archive %s: %w", path, err)
	}
	return &ZipSink{f: f, zw: zip.NewWriter(f)}, nil
}

// Create opens name as a new store-mode entry in the archive. The archive/zip
// package computes each entry's CRC-32 and emits its data descriptor when
// the next entry is created or the archive is closed; closing the returned
// writer does nothing.
func (z *ZipSink) Create(name string) (io.WriteCloser, error) {
	hdr := &zip.FileHeader{Name: name, Method: zip.Store}
	w, err := z.zw.CreateHeader(hdr)
	if err != nil {
		return nil, fmt.Errorf("create archive entry %s: %w", name, err)
	}
	return nopCloseWriter{w}, nil
}

// Close finalizes the central directory and closes the underlying file.
func (z *ZipSink) Close() error {
	if err := z.zw.Close(); err != nil {
		z.f.Close()
		return fmt.Errorf("finalize archive: %w", err)
	}
	return z.f.Close()
}

// nopCloseWriter adapts a zip entry writer (which has no Close method of its
// own — the archive's central directory is only finalized when the whole
// Sink closes) to io.WriteCloser.
type nopCloseWriter struct{ io.Writer }

func (nopCloseWriter) Close() error { return nil }
