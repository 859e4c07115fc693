package blockindex

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/flashtick/tickdb/mmapfile"
)

// unsortedSuffix names the pool file while a partition is open; Commit
// strips it on success.
const unsortedSuffix = ".unsorted"

// poolDefaultCap is the initial size of a freshly created pool file,
// sized for a modest number of blocks before the first growth doubles it.
const poolDefaultCap = 64 * RecordSize

// Pool is the memory-mapped bump arena a partition's Block records are
// allocated from while the partition is open.
type Pool struct {
	arena *mmapfile.Arena
}

// UnsortedPath returns the conventional `_blocks.unsorted` path for a
// partition directory.
func UnsortedPath(partitionDir string) string {
	return filepath.Join(partitionDir, "_blocks"+unsortedSuffix)
}

// SortedPath returns the conventional `_blocks` path for a partition
// directory, i.e. UnsortedPath with the suffix stripped.
func SortedPath(partitionDir string) string {
	return filepath.Join(partitionDir, "_blocks")
}

// Create opens a brand-new pool for a newly rotated partition.
func Create(partitionDir string) (*Pool, error) {
	a, err := mmapfile.OpenArena(UnsortedPath(partitionDir), poolDefaultCap)
	if err != nil {
		return nil, errors.Wrap(err, "blockindex: create pool")
	}
	return &Pool{arena: a}, nil
}

// Reopen resumes a pool left behind by an unclean shutdown: the file's
// entire current size is treated as used capacity. Any trailing
// all-zero padding left by a prior mapping's growth decodes as
// zero-valued Block records, which Commit already discards, so no
// precise bookkeeping of the prior "used" offset is required.
func Reopen(partitionDir string) (*Pool, error) {
	path := UnsortedPath(partitionDir)
	stat, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "blockindex: stat pool for reopen")
	}
	a, err := mmapfile.OpenExistingArena(path, stat.Size())
	if err != nil {
		return nil, errors.Wrap(err, "blockindex: reopen pool")
	}
	return &Pool{arena: a}, nil
}

// Exists reports whether a partition directory already has an unsorted
// pool file (used by table-open / rotation to decide Create vs Reopen).
func Exists(partitionDir string) bool {
	_, err := os.Stat(UnsortedPath(partitionDir))
	return err == nil
}

// Alloc appends a new Block record and returns its byte offset within
// the pool, never a pointer: arena growth may remap the underlying
// file.
func (p *Pool) Alloc(b Block) (offset int64, err error) {
	offset, dst, err := p.arena.Append(RecordSize)
	if err != nil {
		return 0, errors.Wrap(err, "blockindex: allocate block")
	}
	Encode(dst, b)
	return offset, nil
}

// At returns the Block currently stored at offset, re-derived from the
// live mapping.
func (p *Pool) At(offset int64) Block {
	return Decode(p.arena.At(offset, RecordSize))
}

// SetLen mutates the Len field of the Block at offset in place. It is
// the write path's only in-place mutation, used once per row.
func (p *Pool) SetLen(offset int64, length int32) {
	dst := p.arena.At(offset, RecordSize)
	b := Decode(dst)
	b.Len = length
	Encode(dst, b)
}

// Sync flushes the pool's mapping to disk.
func (p *Pool) Sync() error { return p.arena.Sync() }

// Commit sorts the pool ascending by (symbol, ts_min, num, len), drops
// all-zero records, writes the result to the partition's `_blocks` file,
// and deletes the `.unsorted` file on success. Failure at
// any step leaves the `.unsorted` file in place for a later retry.
func (p *Pool) Commit() error {
	if err := p.arena.Sync(); err != nil {
		return errors.Wrap(err, "blockindex: commit: sync pool")
	}

	data := p.arena.Bytes()
	if len(data)%RecordSize != 0 {
		return errors.Errorf("blockindex: commit: pool size %d not a multiple of record size %d", len(data), RecordSize)
	}

	n := len(data) / RecordSize
	records := make([]Block, 0, n)
	for i := 0; i < n; i++ {
		b := Decode(data[i*RecordSize : (i+1)*RecordSize])
		if !b.IsZero() {
			records = append(records, b)
		}
	}

	sort.Slice(records, func(i, j int) bool { return Less(records[i], records[j]) })

	sortedPath := SortedPath(filepath.Dir(p.arena.Path()))
	out := make([]byte, len(records)*RecordSize)
	for i, b := range records {
		Encode(out[i*RecordSize:(i+1)*RecordSize], b)
	}
	if err := os.WriteFile(sortedPath, out, 0o644); err != nil {
		return errors.Wrap(err, "blockindex: commit: write sorted index")
	}

	unsortedPath := p.arena.Path()
	if err := p.arena.Close(); err != nil {
		return errors.Wrap(err, "blockindex: commit: close pool")
	}
	if err := os.Remove(unsortedPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "blockindex: commit: remove unsorted pool")
	}

	return nil
}

// Close releases the pool's mapping without committing it, leaving the
// `.unsorted` file in place.
func (p *Pool) Close() error {
	return p.arena.Close()
}

// Entry pairs a Block with the byte offset it lives at, for callers that
// need to rebuild in-memory allocator state (a per-symbol offset list)
// from a pool that already has records in it.
type Entry struct {
	Offset int64
	Block  Block
}

// Walk returns every non-zero record currently in the pool together with
// its offset, in storage order. Used when resuming a partition left open
// by an unclean shutdown: the allocator replays this to rebuild its
// per-symbol offset lists and the next block number to assign.
func (p *Pool) Walk() []Entry {
	data := p.arena.Bytes()
	n := len(data) / RecordSize
	out := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		off := int64(i * RecordSize)
		b := Decode(data[off : off+RecordSize])
		if b.IsZero() {
			continue
		}
		out = append(out, Entry{Offset: off, Block: b})
	}
	return out
}

// ReadSorted loads every Block record from a committed `_blocks` file;
// the read path (Table.Iter) uses it to scan committed partitions.
func ReadSorted(partitionDir string) ([]Block, error) {
	data, err := os.ReadFile(SortedPath(partitionDir))
	if err != nil {
		return nil, errors.Wrap(err, "blockindex: read sorted index")
	}
	if len(data)%RecordSize != 0 {
		return nil, errors.Errorf("blockindex: sorted index size %d not a multiple of record size %d", len(data), RecordSize)
	}
	n := len(data) / RecordSize
	out := make([]Block, n)
	for i := 0; i < n; i++ {
		out[i] = Decode(data[i*RecordSize : (i+1)*RecordSize])
	}
	return out, nil
}
