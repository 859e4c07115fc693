package mmapfile

// Arena is a bump allocator carved out of a growable mmap File: callers
// append fixed- or variable-length byte ranges and get back a stable
// byte offset, never a pointer, so growth (which remaps the underlying
// file) never invalidates anything a caller is holding.
//
// This backs both the symbol file (an append-only text log) and the
// block-index pool.
type Arena struct {
	f    *File
	used int64
}

// OpenArena creates or opens path as a bump arena with no prior used
// bytes: a brand new partition's block-index pool, or a brand new
// table's symbol file.
func OpenArena(path string, initialSize int64) (*Arena, error) {
	f, err := Open(path, initialSize)
	if err != nil {
		return nil, err
	}
	return &Arena{f: f}, nil
}

// OpenExistingArena reopens an arena whose logical length (used) is
// already known, e.g. replaying a symbol file whose size on disk is its
// used length, since symbol files are always sealed to their exact
// content on close.
func OpenExistingArena(path string, used int64) (*Arena, error) {
	f, err := OpenExisting(path)
	if err != nil {
		return nil, err
	}
	if used > f.Size() {
		return nil, corruptSizeErr(path, used, f.Size())
	}
	return &Arena{f: f, used: used}, nil
}

func corruptSizeErr(path string, used, size int64) error {
	return &arenaSizeError{path: path, used: used, size: size}
}

type arenaSizeError struct {
	path       string
	used, size int64
}

func (e *arenaSizeError) Error() string {
	return "mmapfile: arena " + e.path + " claims more used bytes than the file holds"
}

// Append reserves n bytes at the end of the arena, growing the backing
// mapping if necessary, and returns the offset it was placed at along
// with a slice into the (possibly just-remapped) mapping for the caller
// to fill in immediately.
func (a *Arena) Append(n int) (offset int64, dst []byte, err error) {
	need := a.used + int64(n)
	if need > a.f.Size() {
		if err := a.f.Grow(need); err != nil {
			return 0, nil, err
		}
	}
	offset = a.used
	dst = a.f.Data()[offset : offset+int64(n)]
	a.used += int64(n)
	return offset, dst, nil
}

// At returns the n bytes starting at offset, re-derived from the current
// mapping (never a cached pointer).
func (a *Arena) At(offset int64, n int) []byte {
	return a.f.Data()[offset : offset+int64(n)]
}

// Used returns the number of logically-written bytes.
func (a *Arena) Used() int64 { return a.used }

// Bytes returns the logically-written prefix of the arena.
func (a *Arena) Bytes() []byte { return a.f.Data()[:a.used] }

// Sync flushes the arena's mapping to disk.
func (a *Arena) Sync() error { return a.f.Sync() }

// Seal truncates the backing file down to exactly Used() bytes, so a
// reopened arena's file size is its logical length.
func (a *Arena) Seal() error { return a.f.Truncate(a.used) }

// Close syncs, seals, and releases the arena.
func (a *Arena) Close() error {
	if err := a.Seal(); err != nil {
		return err
	}
	return a.f.Close()
}

// Path returns the arena's backing file path.
func (a *Arena) Path() string { return a.f.Path() }
