// Package symtab implements the symbol interner: a string → dense
// 32-bit id mapping, persisted as an append-only newline-separated text
// file and rebuilt by replay on open.
package symtab

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/pkg/errors"

	"github.com/flashtick/tickdb/errkind"
	"github.com/flashtick/tickdb/mmapfile"
)

const initialArenaSize = 64 * 1024

// Interner owns one symbol universe's append-only file, an
// open-addressed id lookup table hashed with xxhash, and a bloom filter
// that lets a fresh symbol's first Intern call skip straight to
// "definitely not present" without probing the table (see DESIGN.md).
type Interner struct {
	arena *mmapfile.Arena
	table *table
	names []string // id-1 -> name, in id order
	bloom *bloom.BloomFilter
}

// Open replays path (creating it if absent) and returns a ready
// Interner: re-opening rebuilds the interner by replaying the symbol
// file from scratch rather than trusting any cached state.
func Open(path string) (*Interner, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return create(path)
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "symtab: stat symbol file")
	}

	arena, err := mmapfile.OpenExistingArena(path, stat.Size())
	if err != nil {
		return nil, errors.Wrap(err, "symtab: reopen symbol file")
	}

	in := &Interner{
		arena: arena,
		table: newTable(),
		bloom: bloom.NewWithEstimates(1<<20, 0.01),
	}

	if err := in.replay(); err != nil {
		return nil, err
	}
	return in, nil
}

func create(path string) (*Interner, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "symtab: mkdir %s", filepath.Dir(path))
	}
	arena, err := mmapfile.OpenArena(path, initialArenaSize)
	if err != nil {
		return nil, errors.Wrap(err, "symtab: create symbol file")
	}
	return &Interner{
		arena: arena,
		table: newTable(),
		bloom: bloom.NewWithEstimates(1<<20, 0.01),
	}, nil
}

func (in *Interner) replay() error {
	scanner := bufio.NewScanner(bytes.NewReader(in.arena.Bytes()))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		name := scanner.Text()
		if name == "" {
			continue
		}
		in.names = append(in.names, name)
		id := int32(len(in.names))
		in.table.put(name, id)
		in.bloom.AddString(name)
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "symtab: replay symbol file")
	}
	return nil
}

// Intern returns name's existing id if present; otherwise it appends
// name to the symbol file, assigns it the next id (vector length after
// the push, so ids start at 1), and returns it.
func (in *Interner) Intern(name string) (int32, error) {
	if in.bloom.TestString(name) {
		if id, ok := in.table.get(name); ok {
			return id, nil
		}
	}

	payload := name
	if len(in.names) > 0 {
		payload = "\n" + name
	}

	_, dst, err := in.arena.Append(len(payload))
	if err != nil {
		return 0, errors.Wrap(err, "symtab: append symbol")
	}
	copy(dst, payload)

	in.names = append(in.names, name)
	id := int32(len(in.names))
	in.table.put(name, id)
	in.bloom.AddString(name)

	return id, nil
}

// ID returns name's interned id without interning it, and reports
// whether name is currently interned. Used by the read path, which must
// never mutate the symbol file just to evaluate a query's symbol filter.
func (in *Interner) ID(name string) (int32, bool) {
	if !in.bloom.TestString(name) {
		return 0, false
	}
	return in.table.get(name)
}

// Lookup returns the symbol string for id. Fails with a NotFound-kind
// error if id is out of range; id 0 is reserved and never issued.
func (in *Interner) Lookup(id int32) (string, error) {
	if id < 1 || int(id) > len(in.names) {
		return "", errkind.New(errkind.NotFound, "",
			errors.Errorf("symtab: symbol id %d out of range [1, %d]", id, len(in.names)))
	}
	return in.names[id-1], nil
}

// Len returns the number of distinct interned symbols.
func (in *Interner) Len() int { return len(in.names) }

// Sync flushes the symbol file to disk.
func (in *Interner) Sync() error { return in.arena.Sync() }

// Close seals and releases the symbol file.
func (in *Interner) Close() error { return in.arena.Close() }
