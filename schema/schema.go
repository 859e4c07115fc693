// Package schema defines the column-type system and the table schema
// that a tickdb.Table is built from: a fixed, user-declared tuple of
// scalar fields keyed by (symbol, timestamp).
package schema

import (
	"fmt"

	"github.com/flashtick/tickdb/errkind"
)

// invalidArgf builds an InvalidArgument-classified error the same way
// tickdb's own invalidArgf does, so callers that only ever handle a
// *Schema via the engine (never touching this package directly) see the
// same Kind from either one.
func invalidArgf(format string, args ...interface{}) error {
	return errkind.New(errkind.InvalidArgument, "", fmt.Errorf(format, args...))
}

// ColumnType is the closed enumeration of on-disk scalar types.
// Timestamp is a placeholder only; it is rejected anywhere a concrete
// stride is required.
type ColumnType int

const (
	Timestamp ColumnType = iota // placeholder, rejected where concrete
	Timestamp8
	Timestamp16
	Timestamp32
	Timestamp64
	Symbol8
	Symbol16
	Symbol32
	Symbol64
	Currency
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float
	Double
)

// strideOf is the authoritative stride table: every concrete type's
// fixed byte width. The Timestamp placeholder is deliberately absent.
var strideOf = map[ColumnType]int{
	Timestamp8:  1,
	Int8:        1,
	Uint8:       1,
	Symbol8:     1,
	Timestamp16: 2,
	Int16:       2,
	Uint16:      2,
	Symbol16:    2,
	Timestamp32: 4,
	Int32:       4,
	Uint32:      4,
	Float:       4,
	Symbol32:    4,
	Timestamp64: 8,
	Int64:       8,
	Uint64:      8,
	Double:      8,
	Currency:    8,
	Symbol64:    8,
}

// extOf is the authoritative {i,u,f,s,c}<bits> extension-tag table.
var extOf = map[ColumnType]string{
	Timestamp8:  "i8",
	Timestamp16: "i16",
	Timestamp32: "i32",
	Timestamp64: "i64",
	Symbol8:     "s8",
	Symbol16:    "s16",
	Symbol32:    "s32",
	Symbol64:    "s64",
	Currency:    "c64",
	Int8:        "i8",
	Int16:       "i16",
	Int32:       "i32",
	Int64:       "i64",
	Uint8:       "u8",
	Uint16:      "u16",
	Uint32:      "u32",
	Uint64:      "u64",
	Float:       "f32",
	Double:      "f64",
}

// nameOf is the stable textual name String reports for each type;
// Serialize writes types as integer ordinals, not these names.
var nameOf = map[ColumnType]string{
	Timestamp:   "TIMESTAMP",
	Timestamp8:  "TIMESTAMP8",
	Timestamp16: "TIMESTAMP16",
	Timestamp32: "TIMESTAMP32",
	Timestamp64: "TIMESTAMP64",
	Symbol8:     "SYMBOL8",
	Symbol16:    "SYMBOL16",
	Symbol32:    "SYMBOL32",
	Symbol64:    "SYMBOL64",
	Currency:    "CURRENCY",
	Int8:        "INT8",
	Int16:       "INT16",
	Int32:       "INT32",
	Int64:       "INT64",
	Uint8:       "UINT8",
	Uint16:      "UINT16",
	Uint32:      "UINT32",
	Uint64:      "UINT64",
	Float:       "FLOAT",
	Double:      "DOUBLE",
}

var typeByName map[string]ColumnType

func init() {
	typeByName = make(map[string]ColumnType, len(nameOf))
	for t, n := range nameOf {
		typeByName[n] = t
	}
}

// Stride returns the column type's fixed byte width, or (0, false) for the
// Timestamp placeholder or an unknown value.
func (t ColumnType) Stride() (int, bool) {
	s, ok := strideOf[t]
	return s, ok
}

// Ext returns the filename extension tag for t, or ("", false) for the
// Timestamp placeholder.
func (t ColumnType) Ext() (string, bool) {
	e, ok := extOf[t]
	return e, ok
}

func (t ColumnType) String() string {
	if n, ok := nameOf[t]; ok {
		return n
	}
	return fmt.Sprintf("ColumnType(%d)", int(t))
}

// ParseColumnType resolves a type's textual name, as String reports it,
// back to a ColumnType.
func ParseColumnType(name string) (ColumnType, bool) {
	t, ok := typeByName[name]
	return t, ok
}

// IsSymbolType reports whether t is one of the four concrete SYMBOL
// widths, the only types schema_init accepts for the symbol column.
func IsSymbolType(t ColumnType) bool {
	switch t {
	case Symbol8, Symbol16, Symbol32, Symbol64:
		return true
	default:
		return false
	}
}

// Stride-keyed block sizes: {1B→16KiB, 2B→32KiB, 4B→64KiB, 8B→128KiB}.
const (
	KiB = 1 << 10
	MiB = 1 << 20
	GiB = 1 << 30
)

var blockSizeByStride = map[int]int64{
	1: 16 * KiB,
	2: 32 * KiB,
	4: 64 * KiB,
	8: 128 * KiB,
}

// BlockSizeForStride returns the invariant per-column block size for a
// given stride.
func BlockSizeForStride(stride int) (int64, bool) {
	bs, ok := blockSizeByStride[stride]
	return bs, ok
}

// DefaultColumnCapacity is the number of slots a freshly rotated
// partition's columns are sized to.
const DefaultColumnCapacity = 10_000_000

// RowsPerBlock is block_size/stride, which this design's stride-keyed
// block sizes make a table-wide constant: 16KiB/1 == 32KiB/2 == 64KiB/4
// == 128KiB/8 == 16384. Every column of every block holds exactly this
// many rows regardless of its own stride.
const RowsPerBlock = 16 * KiB / 1

// CurrencyScale is the fixed-point convention for CURRENCY columns: the
// stored int64 is the value multiplied by this scale (4 decimal digits).
const CurrencyScale = 10000

// CurrencyToFloat converts a raw CURRENCY column value to a float64.
func CurrencyToFloat(raw int64) float64 {
	return float64(raw) / float64(CurrencyScale)
}

// CurrencyFromFloat converts a float64 to the raw fixed-point CURRENCY
// representation, rounding to the nearest scale unit.
func CurrencyFromFloat(v float64) int64 {
	if v >= 0 {
		return int64(v*float64(CurrencyScale) + 0.5)
	}
	return int64(v*float64(CurrencyScale) - 0.5)
}

// Column describes one field of a table, in declaration order.
type Column struct {
	Name      string
	Type      ColumnType
	Stride    int
	BlockSize int64
}

// Schema is immutable after creation. The first column is always the
// timestamp column (TIMESTAMP64); the symbol is tracked separately (its
// id is interned, not stored as a regular column value) but still
// declares a concrete SYMBOL* type and stride for the auto-written symbol
// column (see DESIGN.md's SYMBOL* resolution).
type Schema struct {
	TableName    string
	PartitionFmt string
	TSName       string
	SymName      string
	SymType      ColumnType
	SymUniverse  string
	Columns      []Column
}

// Init creates a schema with a single implicit `ts: TIMESTAMP64` column.
// symType must be one of SYMBOL{8,16,32,64}.
func Init(name, partitionFmt string, symType ColumnType, symUniverse string) (*Schema, error) {
	if !IsSymbolType(symType) {
		return nil, invalidArgf("schema: symbol type must be SYMBOL8/16/32/64, got %s", symType)
	}
	if name == "" {
		return nil, invalidArgf("schema: table name must not be empty")
	}
	if partitionFmt == "" {
		return nil, invalidArgf("schema: partition format must not be empty")
	}

	tsStride, _ := Timestamp64.Stride()
	tsBlock, _ := BlockSizeForStride(tsStride)

	s := &Schema{
		TableName:    name,
		PartitionFmt: partitionFmt,
		TSName:       "ts",
		SymName:      "sym",
		SymType:      symType,
		SymUniverse:  symUniverse,
		Columns: []Column{
			{Name: "ts", Type: Timestamp64, Stride: tsStride, BlockSize: tsBlock},
		},
	}
	return s, nil
}

// Add appends a column with a concrete type. It fails if typ is the
// Timestamp placeholder or name duplicates an existing column.
func (s *Schema) Add(typ ColumnType, name string) error {
	if typ == Timestamp {
		return invalidArgf("schema: cannot add column %q with placeholder TIMESTAMP type", name)
	}
	stride, ok := typ.Stride()
	if !ok {
		return invalidArgf("schema: unknown column type %v for column %q", typ, name)
	}
	for _, c := range s.Columns {
		if c.Name == name {
			return invalidArgf("schema: duplicate column name %q", name)
		}
	}
	blockSize, ok := BlockSizeForStride(stride)
	if !ok {
		return invalidArgf("schema: no block size configured for stride %d", stride)
	}
	s.Columns = append(s.Columns, Column{Name: name, Type: typ, Stride: stride, BlockSize: blockSize})
	return nil
}

// ColumnIndex returns the index of the named column, or -1.
func (s *Schema) ColumnIndex(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}
