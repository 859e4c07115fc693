package symtab

import "github.com/cespare/xxhash/v2"

// table is a small open-addressing string → int32 id map, quadratically
// probed and hashed with xxhash (see DESIGN.md). It resizes by doubling
// once the load factor crosses 0.7.
type table struct {
	keys   []string
	ids    []int32
	filled []bool
	count  int
}

const initialTableSize = 64

func newTable() *table {
	return &table{
		keys:   make([]string, initialTableSize),
		ids:    make([]int32, initialTableSize),
		filled: make([]bool, initialTableSize),
	}
}

func (t *table) put(key string, id int32) {
	if float64(t.count+1) > 0.7*float64(len(t.keys)) {
		t.grow()
	}
	idx := t.probe(key)
	if !t.filled[idx] {
		t.count++
	}
	t.keys[idx] = key
	t.ids[idx] = id
	t.filled[idx] = true
}

func (t *table) get(key string) (int32, bool) {
	idx := t.probe(key)
	if !t.filled[idx] {
		return 0, false
	}
	return t.ids[idx], true
}

// probe returns the slot key currently occupies, or the first empty slot
// it would be placed into, via quadratic probing.
func (t *table) probe(key string) int {
	mask := uint64(len(t.keys) - 1)
	h := xxhash.Sum64String(key)
	for i := uint64(0); ; i++ {
		idx := (h + i*i) & mask
		if !t.filled[idx] || t.keys[idx] == key {
			return int(idx)
		}
	}
}

func (t *table) grow() {
	oldKeys, oldIDs, oldFilled := t.keys, t.ids, t.filled
	newSize := len(t.keys) * 2

	t.keys = make([]string, newSize)
	t.ids = make([]int32, newSize)
	t.filled = make([]bool, newSize)
	t.count = 0

	for i, filled := range oldFilled {
		if !filled {
			continue
		}
		idx := t.probe(oldKeys[i])
		t.keys[idx] = oldKeys[i]
		t.ids[idx] = oldIDs[i]
		t.filled[idx] = true
		t.count++
	}
}
