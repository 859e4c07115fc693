package tickdb

import (
	"iter"
	"path/filepath"
	"sort"

	"github.com/flashtick/tickdb/blockindex"
	"github.com/flashtick/tickdb/calendar"
	"github.com/flashtick/tickdb/mmapfile"
	"github.com/flashtick/tickdb/schema"
)

// QueryRow is one block's worth of columnar data yielded by Table.Iter:
// a contiguous run of rows for a single symbol, from the column files
// named in the query's columns argument. For the currently open
// partition the slices alias the table's mappings and are only valid
// until the next write to that partition; for a committed partition
// they are copies, since Iter unmaps those files once it has scanned
// the partition.
type QueryRow struct {
	Symbol  int32
	TSMin   int64
	NumRows int32
	Columns map[string][]byte
}

type colSpec struct {
	name      string
	stride    int
	blockSize int64
	ext       string
}

// resolveColumns maps requested column names (or, if empty, every
// declared column plus the engine-managed symbol column) to the
// geometry needed to slice their files.
func (t *Table) resolveColumns(names []string) ([]colSpec, error) {
	if len(names) == 0 {
		names = make([]string, 0, len(t.schema.Columns)+1)
		for _, c := range t.schema.Columns {
			names = append(names, c.Name)
		}
		names = append(names, t.schema.SymName)
	}

	specs := make([]colSpec, len(names))
	for i, n := range names {
		if n == t.schema.SymName {
			stride, _ := t.schema.SymType.Stride()
			ext, _ := t.schema.SymType.Ext()
			blockSize, _ := schema.BlockSizeForStride(stride)
			specs[i] = colSpec{name: n, stride: stride, blockSize: blockSize, ext: ext}
			continue
		}
		idx := t.schema.ColumnIndex(n)
		if idx < 0 {
			return nil, notFoundf("iter: no such column %q", n)
		}
		c := t.schema.Columns[idx]
		ext, _ := c.Type.Ext()
		specs[i] = colSpec{name: n, stride: c.Stride, blockSize: c.BlockSize, ext: ext}
	}
	return specs, nil
}

// symbolFilter resolves symbols to a set of interned ids, skipping any
// name that has never been interned. It never interns one itself: a
// read path must not mutate the symbol file.
func (t *Table) symbolFilter(symbols []string) map[int32]bool {
	if len(symbols) == 0 {
		return nil
	}
	ids := make(map[int32]bool, len(symbols))
	for _, s := range symbols {
		if id, ok := t.syms.ID(s); ok {
			ids[id] = true
		}
	}
	return ids
}

// partitionNamesForScan returns every partition name that might hold
// matching rows, chronologically ordered: every committed partition plus
// the currently open one, if any.
func (t *Table) partitionNamesForScan() ([]string, error) {
	names, err := sortedPartitionNames(t.dir)
	if err != nil {
		return nil, err
	}
	if t.cur != nil {
		found := false
		for _, n := range names {
			if n == t.cur.name {
				found = true
				break
			}
		}
		if !found {
			names = append(names, t.cur.name)
			sort.Strings(names)
		}
	}
	return names, nil
}

// Iter returns a sequence of QueryRow values, one per block whose symbol
// (when symbols is non-empty) is in symbols and whose [ts_min, ts_max)
// intersects [tsFrom, tsTo). Iteration visits partitions in chronological
// order and, within a partition, in block-index order (symbol, then
// ts_min). The currently open partition's not-yet-sorted pool is sorted
// in memory for the duration of the call, without touching its on-disk
// file. columns names the columns (the symbol column by its declared
// name is one) to project; nil or empty requests every column.
//
// A non-nil error halts iteration immediately, yielded alongside a zero
// QueryRow. Ranging over the sequence and returning early (an explicit
// break) is safe: any column files Iter opened for closed partitions are
// released before the corresponding range-over-func iteration resumes.
func (t *Table) Iter(symbols []string, tsFrom, tsTo int64, columns []string) iter.Seq2[QueryRow, error] {
	return func(yield func(QueryRow, error) bool) {
		specs, err := t.resolveColumns(columns)
		if err != nil {
			yield(QueryRow{}, err)
			return
		}
		symIDs := t.symbolFilter(symbols)

		names, err := t.partitionNamesForScan()
		if err != nil {
			yield(QueryRow{}, err)
			return
		}

		for _, name := range names {
			if !t.yieldPartition(name, symIDs, tsFrom, tsTo, specs, yield) {
				return
			}
		}
	}
}

// yieldPartition scans one partition's block index and yields every
// matching block. It returns false iff the caller's yield func asked to
// stop (or errored), mirroring iter.Seq2's continuation convention.
func (t *Table) yieldPartition(name string, symIDs map[int32]bool, tsFrom, tsTo int64, specs []colSpec, yield func(QueryRow, error) bool) bool {
	dir := filepath.Join(t.dir, name)

	var entries []blockindex.Block
	var opened map[string]*mmapfile.File
	var open func(spec colSpec) ([]byte, error)

	if t.cur != nil && name == t.cur.name {
		walked := t.cur.pool.Walk()
		entries = make([]blockindex.Block, len(walked))
		for i, e := range walked {
			entries[i] = e.Block
		}
		sort.Slice(entries, func(i, j int) bool { return blockindex.Less(entries[i], entries[j]) })

		open = func(spec colSpec) ([]byte, error) {
			if spec.name == t.schema.SymName {
				return t.cur.sym.file.Data(), nil
			}
			return t.cur.columns[t.schema.ColumnIndex(spec.name)].file.Data(), nil
		}
	} else {
		var err error
		entries, err = blockindex.ReadSorted(dir)
		if err != nil {
			yield(QueryRow{}, err)
			return false
		}

		opened = make(map[string]*mmapfile.File, len(specs))
		defer func() {
			for _, f := range opened {
				_ = f.Close()
			}
		}()
		open = func(spec colSpec) ([]byte, error) {
			if f, ok := opened[spec.name]; ok {
				return f.Data(), nil
			}
			path := columnPath(dir, spec.name, spec.ext)
			f, err := mmapfile.OpenExisting(path)
			if err != nil {
				return nil, ioErr(path, err)
			}
			opened[spec.name] = f
			return f.Data(), nil
		}
	}

	for _, b := range entries {
		if symIDs != nil && !symIDs[b.Symbol] {
			continue
		}
		_, tsMax, err := calendar.Bounds(t.schema.PartitionFmt, b.TSMin)
		if err != nil {
			yield(QueryRow{}, err)
			return false
		}
		if !(b.TSMin < tsTo && tsMax > tsFrom) {
			continue
		}

		cols := make(map[string][]byte, len(specs))
		for _, spec := range specs {
			data, err := open(spec)
			if err != nil {
				yield(QueryRow{}, err)
				return false
			}
			start := b.Num * spec.blockSize
			end := start + int64(b.Len)*int64(spec.stride)
			seg := data[start:end]
			if opened != nil {
				// Committed partitions' files are unmapped when this
				// partition's scan ends, so their rows are copied out.
				seg = append([]byte(nil), seg...)
			}
			cols[spec.name] = seg
		}

		if !yield(QueryRow{Symbol: b.Symbol, TSMin: b.TSMin, NumRows: b.Len, Columns: cols}, nil) {
			return false
		}
	}
	return true
}
