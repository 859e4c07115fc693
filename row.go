package tickdb

import (
	"encoding/binary"
	"math"

	"github.com/flashtick/tickdb/schema"
)

// Row is the handle returned by Table.BeginRow. It enforces, at the type
// level, that the caller writes the table's data columns in declaration
// order: each WriteX method only accepts the type the next column
// actually holds, in place of a round-robin column-index counter a
// caller could get out of sync with. The timestamp and symbol columns
// are written automatically by BeginRow and are never exposed to the
// caller.
type Row struct {
	t     *Table
	part  *partition
	off   int64 // this row's block offset in the block-index pool
	num   int64
	len   int32
	col   int // next schema.Columns index to write (1-based past ts)
	done  bool
}

func (r *Row) nextColumn() (schema.Column, error) {
	if r.done {
		return schema.Column{}, invalidArgf("row already committed")
	}
	if r.col >= len(r.t.schema.Columns) {
		return schema.Column{}, invalidArgf("row has no more columns to write")
	}
	return r.t.schema.Columns[r.col], nil
}

func (r *Row) writeScalar(want schema.ColumnType, data []byte) error {
	c, err := r.nextColumn()
	if err != nil {
		return err
	}
	if c.Type != want {
		return invalidArgf("column %q is %s, cannot write a %s value", c.Name, c.Type, want)
	}
	if err := r.part.columns[r.col].writeAt(r.num, r.len, data); err != nil {
		return err
	}
	r.col++
	if r.col == len(r.t.schema.Columns) {
		return r.finish()
	}
	return nil
}

// WriteInt8 writes the next column, which must be declared INT8.
func (r *Row) WriteInt8(v int8) error {
	return r.writeScalar(schema.Int8, []byte{byte(v)})
}

// WriteInt16 writes the next column, which must be declared INT16.
func (r *Row) WriteInt16(v int16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], uint16(v))
	return r.writeScalar(schema.Int16, buf[:])
}

// WriteInt32 writes the next column, which must be declared INT32.
func (r *Row) WriteInt32(v int32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	return r.writeScalar(schema.Int32, buf[:])
}

// WriteInt64 writes the next column, which must be declared INT64.
func (r *Row) WriteInt64(v int64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	return r.writeScalar(schema.Int64, buf[:])
}

// WriteUint8 writes the next column, which must be declared UINT8.
func (r *Row) WriteUint8(v uint8) error {
	return r.writeScalar(schema.Uint8, []byte{v})
}

// WriteUint16 writes the next column, which must be declared UINT16.
func (r *Row) WriteUint16(v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return r.writeScalar(schema.Uint16, buf[:])
}

// WriteUint32 writes the next column, which must be declared UINT32.
func (r *Row) WriteUint32(v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return r.writeScalar(schema.Uint32, buf[:])
}

// WriteUint64 writes the next column, which must be declared UINT64.
func (r *Row) WriteUint64(v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return r.writeScalar(schema.Uint64, buf[:])
}

// WriteFloat writes the next column, which must be declared FLOAT.
func (r *Row) WriteFloat(v float32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
	return r.writeScalar(schema.Float, buf[:])
}

// WriteDouble writes the next column, which must be declared DOUBLE.
func (r *Row) WriteDouble(v float64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	return r.writeScalar(schema.Double, buf[:])
}

// WriteCurrency writes the next column, which must be declared CURRENCY.
// v is converted to the fixed-point on-disk representation via
// schema.CurrencyFromFloat.
func (r *Row) WriteCurrency(v float64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(schema.CurrencyFromFloat(v)))
	return r.writeScalar(schema.Currency, buf[:])
}

// finish increments the row's block's Len by one in the block-index
// pool, the single in-place mutation performed once per row, after
// every column has been written.
func (r *Row) finish() error {
	r.part.pool.SetLen(r.off, r.len+1)
	r.done = true
	return nil
}
