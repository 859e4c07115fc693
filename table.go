// Package tickdb implements an embeddable, memory-mapped columnar
// store for fixed-schema time-series rows keyed by (symbol, timestamp):
// trade and quote ticks, one table per instrument universe, one
// directory per calendar partition.
package tickdb

import (
	"errors"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/flashtick/tickdb/calendar"
	"github.com/flashtick/tickdb/schema"
	"github.com/flashtick/tickdb/symtab"
)

const schemaFileName = "_schema"

// Table is an open, writable time-series table: a schema, a symbol
// interner, and at most one open (not yet rotated out) partition.
type Table struct {
	dir    string
	schema *schema.Schema
	syms   *symtab.Interner
	log    *zap.Logger
	cur    *partition
}

// Init creates a brand-new table directory at dir, writes its schema,
// and returns it open for writing. dir must not already contain a
// `_schema` file.
func Init(dir string, s *schema.Schema) (*Table, error) {
	if err := calendar.Validate(s.PartitionFmt); err != nil {
		return nil, invalidArgf("%v", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ioErr(dir, err)
	}

	schemaPath := filepath.Join(dir, schemaFileName)
	if _, err := os.Stat(schemaPath); err == nil {
		return nil, invalidArgf("table directory %q already has a schema", dir)
	}

	f, err := os.OpenFile(schemaPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, ioErr(schemaPath, err)
	}
	defer f.Close()
	if err := schema.Serialize(s, f); err != nil {
		return nil, corruptf(schemaPath, "write schema: %v", err)
	}

	syms, err := symtab.Open(symbolFilePath(dir, s))
	if err != nil {
		return nil, err
	}

	logger, _ := zap.NewProduction()
	return &Table{dir: dir, schema: s, syms: syms, log: logger}, nil
}

// Open reopens an existing table directory: its schema, its symbol
// interner (rebuilt by replay), and, if a partition was left open by an
// earlier process, that partition resumed in place.
func Open(dir string) (*Table, error) {
	schemaPath := filepath.Join(dir, schemaFileName)
	f, err := os.Open(schemaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFoundf("no schema at %s", schemaPath)
		}
		return nil, ioErr(schemaPath, err)
	}
	defer f.Close()

	name := filepath.Base(dir)
	s, err := schema.Deserialize(f, name)
	if err != nil {
		return nil, corruptf(schemaPath, "parse schema: %v", err)
	}

	syms, err := symtab.Open(symbolFilePath(dir, s))
	if err != nil {
		return nil, err
	}

	logger, _ := zap.NewProduction()
	t := &Table{dir: dir, schema: s, syms: syms, log: logger}

	latest, found, err := discoverLatestPartition(dir)
	if err != nil {
		return nil, err
	}
	if found {
		anchor, err := anchorTimestamp(filepath.Join(dir, latest))
		if err != nil {
			return nil, err
		}
		tsMin, tsMax, err := calendar.Bounds(s.PartitionFmt, anchor)
		if err != nil {
			return nil, invalidArgf("%v", err)
		}
		p, err := t.openPartition(latest, tsMin, tsMax, false)
		if err != nil {
			return nil, err
		}
		t.log.Info("resumed open partition", zap.String("table", name), zap.String("partition", latest))
		t.cur = p
	}

	return t, nil
}

// symbolFilePath is data/<table>/<sym_universe>.<symext>.
func symbolFilePath(dir string, s *schema.Schema) string {
	universe := s.SymUniverse
	if universe == "" {
		universe = s.SymName
	}
	ext, _ := s.SymType.Ext()
	return filepath.Join(dir, universe+"."+ext)
}

// Close commits and seals the current partition (if any), closes the
// symbol interner, and flushes logs.
func (t *Table) Close() error {
	if t.cur != nil {
		if err := t.cur.commitAndClose(); err != nil {
			return err
		}
		t.cur = nil
	}
	if err := t.syms.Close(); err != nil {
		return err
	}
	_ = t.log.Sync()
	return nil
}

// Flush syncs every open column file, the current block-index pool, and
// the symbol interner to disk without rotating or closing anything.
func (t *Table) Flush() error {
	if t.cur != nil {
		for _, c := range t.cur.columns {
			if err := c.sync(); err != nil {
				return err
			}
		}
		if err := t.cur.sym.sync(); err != nil {
			return err
		}
		if err := t.cur.pool.Sync(); err != nil {
			return err
		}
	}
	return t.syms.Sync()
}

// BeginRow interns symbol, rotates the partition if ts falls outside
// the currently open one, allocates (or reuses) a block for the row,
// writes the timestamp and interned symbol id, and returns a handle for
// writing the table's declared data columns in order.
func (t *Table) BeginRow(symbol string, tsNanos int64) (*Row, error) {
	symID, err := t.syms.Intern(symbol)
	if err != nil {
		return nil, err
	}

	if t.cur == nil || tsNanos < t.cur.tsMin || tsNanos >= t.cur.tsMax {
		if err := t.rotate(tsNanos); err != nil {
			return nil, err
		}
	}

	off, err := t.cur.alloc.allocate(symID, tsNanos)
	if err != nil {
		return nil, err
	}
	b := t.cur.pool.At(off)

	r := &Row{t: t, part: t.cur, off: off, num: b.Num, len: b.Len, col: 1}

	if err := t.cur.columns[0].writeAt(b.Num, b.Len, encodeI64(tsNanos)); err != nil {
		return nil, err
	}
	if err := t.writeSymbolColumn(b.Num, b.Len, symID); err != nil {
		return nil, err
	}

	if r.col == len(t.schema.Columns) {
		// A schema with no caller-added columns completes as soon as
		// the implicit timestamp is written.
		if err := r.finish(); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (t *Table) writeSymbolColumn(num int64, rowLen int32, symID int32) error {
	stride, _ := t.schema.SymType.Stride()
	buf := make([]byte, stride)
	switch t.schema.SymType {
	case schema.Symbol8:
		buf[0] = byte(symID)
	case schema.Symbol16:
		putU16(buf, uint16(symID))
	case schema.Symbol32:
		putU32(buf, uint32(symID))
	case schema.Symbol64:
		putU64(buf, uint64(symID))
	}
	return t.cur.sym.writeAt(num, rowLen, buf)
}

// rotate renders the partition name for ts, closes the currently open
// partition (if any), and opens (or resumes) the partition ts belongs to.
func (t *Table) rotate(ts int64) error {
	name, err := calendar.RenderName(t.schema.PartitionFmt, ts)
	if err != nil {
		if errors.Is(err, calendar.ErrNameTooLong) {
			return exhaustedf("%v", err)
		}
		return invalidArgf("%v", err)
	}
	tsMin, tsMax, err := calendar.Bounds(t.schema.PartitionFmt, ts)
	if err != nil {
		return invalidArgf("%v", err)
	}

	if t.cur != nil {
		t.log.Info("rotating partition",
			zap.String("from", t.cur.name),
			zap.String("to", name))
		if err := t.cur.commitAndClose(); err != nil {
			return err
		}
		t.cur = nil
	}

	fresh := !partitionDirExists(t.dir, name)
	p, err := t.openPartition(name, tsMin, tsMax, fresh)
	if err != nil {
		return err
	}
	t.cur = p
	return nil
}
