// Package blockindex implements the per-partition block index: the
// append-only pool blocks are allocated from while a partition is open,
// and the sort-on-commit step that turns it into a queryable index.
package blockindex

import "encoding/binary"

// RecordSize is the on-disk size of one Block record: symbol(4) +
// len(4) + ts_min(8) + num(8).
const RecordSize = 24

// Block is the unit of row placement: a run of consecutive rows for one
// symbol within one partition.
type Block struct {
	Symbol int32
	Len    int32
	TSMin  int64
	Num    int64
}

// IsZero reports whether every field of b is zero. Such records are
// dropped on commit rather than written to the sorted index.
func (b Block) IsZero() bool {
	return b.Symbol == 0 && b.Len == 0 && b.TSMin == 0 && b.Num == 0
}

// Encode writes b into dst, which must be at least RecordSize bytes.
func Encode(dst []byte, b Block) {
	binary.LittleEndian.PutUint32(dst[0:4], uint32(b.Symbol))
	binary.LittleEndian.PutUint32(dst[4:8], uint32(b.Len))
	binary.LittleEndian.PutUint64(dst[8:16], uint64(b.TSMin))
	binary.LittleEndian.PutUint64(dst[16:24], uint64(b.Num))
}

// Decode reads a Block from src, which must be at least RecordSize bytes.
func Decode(src []byte) Block {
	return Block{
		Symbol: int32(binary.LittleEndian.Uint32(src[0:4])),
		Len:    int32(binary.LittleEndian.Uint32(src[4:8])),
		TSMin:  int64(binary.LittleEndian.Uint64(src[8:16])),
		Num:    int64(binary.LittleEndian.Uint64(src[16:24])),
	}
}

// Less implements the (symbol, ts_min, num, len) sort order the
// committed index is kept in.
func Less(a, b Block) bool {
	if a.Symbol != b.Symbol {
		return a.Symbol < b.Symbol
	}
	if a.TSMin != b.TSMin {
		return a.TSMin < b.TSMin
	}
	if a.Num != b.Num {
		return a.Num < b.Num
	}
	return a.Len < b.Len
}
