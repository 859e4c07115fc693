package tickdb

import (
	"os"
	"path/filepath"

	"github.com/flashtick/tickdb/blockindex"
	"github.com/flashtick/tickdb/mmapfile"
	"github.com/flashtick/tickdb/schema"
)

// column is one column file of one open partition: a growable mmap
// region addressed by (block number, row within block). It backs both
// the user-declared columns and the engine-managed symbol column.
type column struct {
	name      string
	stride    int
	blockSize int64
	file      *mmapfile.File
	extent    int64 // highest byte offset written + stride; tracked for seal()
}

func columnPath(partitionDir, name, ext string) string {
	return filepath.Join(partitionDir, name+"."+ext)
}

// openColumn opens (or creates) a column file. fresh forces a brand-new
// file sized to schema.DefaultColumnCapacity*stride, the size a freshly
// rotated partition's columns are given.
func openColumn(partitionDir, name, ext string, stride int, blockSize int64, fresh bool) (*column, error) {
	path := columnPath(partitionDir, name, ext)

	var f *mmapfile.File
	var err error
	if fresh {
		f, err = mmapfile.Open(path, schema.DefaultColumnCapacity*int64(stride))
	} else if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		f, err = mmapfile.Open(path, schema.DefaultColumnCapacity*int64(stride))
	} else {
		f, err = mmapfile.OpenExisting(path)
	}
	if err != nil {
		return nil, ioErr(path, err)
	}
	c := &column{name: name, stride: stride, blockSize: blockSize, file: f}
	return c, nil
}

// setExtentFromBlocks recomputes the column's written high-water mark
// from a partition's block records, needed when resuming a partition
// an earlier session left open: the column file's on-disk size at that
// point is reserved capacity, not the logical extent.
func (c *column) setExtentFromBlocks(blocks []blockindex.Block) {
	var max int64
	for _, b := range blocks {
		extent := b.Num*c.blockSize + int64(b.Len)*int64(c.stride)
		if extent > max {
			max = extent
		}
	}
	c.extent = max
}

// writeAt places data (exactly c.stride bytes) at the row identified by
// (num, rowLen) within the block, growing the mapping on demand. The
// placement formula is dest = num*block_size + len*stride.
func (c *column) writeAt(num int64, rowLen int32, data []byte) error {
	dest := num*c.blockSize + int64(rowLen)*int64(c.stride)
	need := dest + int64(len(data))
	if need > c.file.Size() {
		if err := c.file.Grow(need); err != nil {
			return ioErr(c.file.Path(), err)
		}
	}
	copy(c.file.Data()[dest:need], data)
	if need > c.extent {
		c.extent = need
	}
	return nil
}

func (c *column) sync() error {
	return ioErr(c.file.Path(), c.file.Sync())
}

// seal truncates the column file down to its logically-written extent,
// so a closed partition's column files report their written size, not
// their reserved capacity.
func (c *column) seal() error {
	extent := c.extent
	if extent == 0 {
		extent = int64(c.stride)
	}
	return ioErr(c.file.Path(), c.file.Truncate(extent))
}

func (c *column) close() error {
	return ioErr(c.file.Path(), c.file.Close())
}
