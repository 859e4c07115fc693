// Package mmapfile wraps a single memory-mapped file: a file descriptor
// plus an mmap region that can be grown in place. It is the primitive
// every column file, the symbol file, and the block-index pool are built
// on top of.
package mmapfile

import (
	"os"
	"path/filepath"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
)

// File is a growable memory-mapped file opened for read/write.
//
// edsrzf/mmap-go does not expose a raw mremap, so Grow unmaps, truncates
// the underlying file, and remaps from scratch. Callers must never hold a
// slice derived from Data() across a call to Grow; re-fetch it afterward.
type File struct {
	path string
	f    *os.File
	m    mmap.MMap
}

// Open opens path for read/write, creating parent directories and the
// file itself if necessary, and maps it at least to size bytes (growing
// the underlying file if it is smaller). size must be > 0.
func Open(path string, size int64) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "mmapfile: mkdir %s", filepath.Dir(path))
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "mmapfile: open %s", path)
	}

	mf := &File{path: path, f: f}
	if err := mf.ensureSize(size); err != nil {
		f.Close()
		return nil, err
	}
	if err := mf.remap(); err != nil {
		f.Close()
		return nil, err
	}
	return mf, nil
}

// OpenExisting opens an already-sized file without forcing a minimum size,
// used when reopening a table whose partitions already exist on disk.
func OpenExisting(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "mmapfile: open %s", path)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "mmapfile: stat %s", path)
	}

	mf := &File{path: path, f: f}
	size := stat.Size()
	if size == 0 {
		size = 1
	}
	if err := mf.ensureSize(size); err != nil {
		f.Close()
		return nil, err
	}
	if err := mf.remap(); err != nil {
		f.Close()
		return nil, err
	}
	return mf, nil
}

func (mf *File) ensureSize(size int64) error {
	stat, err := mf.f.Stat()
	if err != nil {
		return errors.Wrapf(err, "mmapfile: stat %s", mf.path)
	}
	if stat.Size() >= size {
		return nil
	}
	if err := mf.f.Truncate(size); err != nil {
		return errors.Wrapf(err, "mmapfile: truncate %s", mf.path)
	}
	return nil
}

func (mf *File) remap() error {
	if mf.m != nil {
		if err := mf.m.Unmap(); err != nil {
			return errors.Wrapf(err, "mmapfile: unmap %s", mf.path)
		}
		mf.m = nil
	}
	m, err := mmap.Map(mf.f, mmap.RDWR, 0)
	if err != nil {
		return errors.Wrapf(err, "mmapfile: mmap %s", mf.path)
	}
	mf.m = m
	return nil
}

// Data returns the current mapping. The returned slice is invalidated by
// the next call to Grow.
func (mf *File) Data() []byte { return mf.m }

// Size returns the current mapped (and file) size in bytes.
func (mf *File) Size() int64 { return int64(len(mf.m)) }

// Grow doubles the mapping until it is at least atLeast bytes, remapping
// in place. Callers must re-fetch Data() after calling Grow.
func (mf *File) Grow(atLeast int64) error {
	newSize := mf.Size()
	if newSize == 0 {
		newSize = 1
	}
	for newSize < atLeast {
		newSize *= 2
	}
	if err := mf.ensureSize(newSize); err != nil {
		return err
	}
	return mf.remap()
}

// Sync flushes the mapping to disk (msync).
func (mf *File) Sync() error {
	if mf.m == nil {
		return nil
	}
	if err := mf.m.Flush(); err != nil {
		return errors.Wrapf(err, "mmapfile: msync %s", mf.path)
	}
	return nil
}

// Truncate shrinks the backing file (and remaps) to exactly size bytes.
// Used when sealing a column file to its logically-written length, even
// though its reserved capacity may exceed it. A zero size leaves the
// file unmapped (an empty file cannot be mmapped) and Data() returns
// nil until the next Grow.
func (mf *File) Truncate(size int64) error {
	if mf.m != nil {
		if err := mf.m.Unmap(); err != nil {
			return errors.Wrapf(err, "mmapfile: unmap %s", mf.path)
		}
		mf.m = nil
	}
	if err := mf.f.Truncate(size); err != nil {
		return errors.Wrapf(err, "mmapfile: truncate %s", mf.path)
	}
	if size == 0 {
		return nil
	}
	return mf.remap()
}

// Close syncs and releases the mapping and file descriptor.
func (mf *File) Close() error {
	var syncErr error
	if mf.m != nil {
		syncErr = mf.m.Flush()
		if err := mf.m.Unmap(); err != nil && syncErr == nil {
			syncErr = err
		}
		mf.m = nil
	}
	closeErr := mf.f.Close()
	if syncErr != nil {
		return errors.Wrapf(syncErr, "mmapfile: close %s", mf.path)
	}
	if closeErr != nil {
		return errors.Wrapf(closeErr, "mmapfile: close %s", mf.path)
	}
	return nil
}

// Path returns the file's path on disk.
func (mf *File) Path() string { return mf.path }
