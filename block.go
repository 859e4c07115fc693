package tickdb

import (
	"github.com/flashtick/tickdb/blockindex"
	"github.com/flashtick/tickdb/schema"
)

// allocator tracks, for the currently open partition, every symbol's
// block-index offsets in insertion order and the next block number to
// hand out: a per-symbol vector of block-pool offsets.
type allocator struct {
	pool      *blockindex.Pool
	bySymbol  map[int32][]int64
	nextBlock int64
}

func newAllocator(pool *blockindex.Pool) *allocator {
	return &allocator{pool: pool, bySymbol: make(map[int32][]int64)}
}

// rebuild repopulates bySymbol and nextBlock from a pool that already
// has records in it, resuming a partition an earlier session left open.
func (a *allocator) rebuild(entries []blockindex.Entry) {
	for _, e := range entries {
		a.bySymbol[e.Block.Symbol] = append(a.bySymbol[e.Block.Symbol], e.Offset)
		if e.Block.Num >= a.nextBlock {
			a.nextBlock = e.Block.Num + 1
		}
	}
}

// allocate returns the pool offset of the block that row (symbolID, ts)
// should land in: the first block already open for that symbol whose
// ts_min is at or before ts and whose len has not yet reached
// RowsPerBlock (insertion order, first match wins), or a freshly
// allocated one. The ts_min check is what sends an out-of-order row for
// a symbol whose latest block already starts later than ts to a new
// block instead of silently merging it into the wrong one.
func (a *allocator) allocate(symbolID int32, ts int64) (offset int64, err error) {
	for _, off := range a.bySymbol[symbolID] {
		b := a.pool.At(off)
		if ts >= b.TSMin && b.Len < schema.RowsPerBlock {
			return off, nil
		}
	}

	num := a.nextBlock
	off, err := a.pool.Alloc(blockindex.Block{Symbol: symbolID, Len: 0, TSMin: ts, Num: num})
	if err != nil {
		return 0, err
	}
	a.nextBlock++
	a.bySymbol[symbolID] = append(a.bySymbol[symbolID], off)
	return off, nil
}
