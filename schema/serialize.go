package schema

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Serialize writes s as a section-prefixed key/value text file: a
// top-level [schema] section followed by one [schema.column.<name>]
// section per column, in declaration order.
//
// No general-purpose config library (TOML/YAML/etc, as the rest of the
// pack uses for their own CLI config) fits here: this is a bespoke,
// intentionally minimal format pinned down byte-for-byte for on-disk
// compatibility, not a generic configuration surface.
func Serialize(s *Schema, w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "[schema]")
	fmt.Fprintf(bw, "ts_name = %s\n", s.TSName)
	fmt.Fprintf(bw, "partition_fmt = %s\n", s.PartitionFmt)
	fmt.Fprintf(bw, "sym_name = %s\n", s.SymName)
	fmt.Fprintf(bw, "sym_universe = %s\n", s.SymUniverse)
	fmt.Fprintf(bw, "sym_type = %d\n", int(s.SymType))
	fmt.Fprintf(bw, "table_name = %s\n", s.TableName)
	fmt.Fprintln(bw)

	for _, c := range s.Columns {
		fmt.Fprintf(bw, "[schema.column.%s]\n", c.Name)
		fmt.Fprintf(bw, "type = %d\n", int(c.Type))
		fmt.Fprintf(bw, "stride = %d\n", c.Stride)
		fmt.Fprintf(bw, "block_size = %d\n", c.BlockSize)
		fmt.Fprintln(bw)
	}

	return bw.Flush()
}

type columnFields struct {
	typ       int
	stride    int
	blockSize int64
	seen      bool
}

// Deserialize reads a schema previously written by Serialize. name is the
// table name to stamp on the result (the file itself does not need to
// carry it, since the table's directory name already does).
func Deserialize(r io.Reader, name string) (*Schema, error) {
	scanner := bufio.NewScanner(r)

	var section string
	var columnOrder []string
	columns := make(map[string]*columnFields)

	top := struct {
		tsName, partitionFmt, symName, symUniverse string
		symType                                    int
		haveSymType                                bool
	}{}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSuffix(strings.TrimPrefix(line, "["), "]")
			if strings.HasPrefix(section, "schema.column.") {
				colName := strings.TrimPrefix(section, "schema.column.")
				if _, ok := columns[colName]; !ok {
					columns[colName] = &columnFields{}
					columnOrder = append(columnOrder, colName)
				}
			}
			continue
		}

		key, value, ok := splitKV(line)
		if !ok {
			continue // lines outside recognizable key/value pairs are ignored
		}

		switch {
		case section == "schema":
			switch key {
			case "ts_name":
				top.tsName = value
			case "partition_fmt":
				top.partitionFmt = value
			case "sym_name":
				top.symName = value
			case "sym_universe":
				top.symUniverse = value
			case "sym_type":
				n, err := strconv.Atoi(value)
				if err != nil {
					return nil, fmt.Errorf("schema: corrupt sym_type %q: %w", value, err)
				}
				top.symType = n
				top.haveSymType = true
			}
		case strings.HasPrefix(section, "schema.column."):
			colName := strings.TrimPrefix(section, "schema.column.")
			cf := columns[colName]
			switch key {
			case "type":
				n, err := strconv.Atoi(value)
				if err != nil {
					return nil, fmt.Errorf("schema: corrupt type for column %q: %w", colName, err)
				}
				cf.typ = n
				cf.seen = true
			case "stride":
				n, err := strconv.Atoi(value)
				if err != nil {
					return nil, fmt.Errorf("schema: corrupt stride for column %q: %w", colName, err)
				}
				cf.stride = n
			case "block_size":
				n, err := strconv.ParseInt(value, 10, 64)
				if err != nil {
					return nil, fmt.Errorf("schema: corrupt block_size for column %q: %w", colName, err)
				}
				cf.blockSize = n
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("schema: reading schema file: %w", err)
	}

	if !top.haveSymType {
		return nil, fmt.Errorf("schema: missing [schema] sym_type")
	}

	s := &Schema{
		TableName:    name,
		PartitionFmt: top.partitionFmt,
		TSName:       top.tsName,
		SymName:      top.symName,
		SymType:      ColumnType(top.symType),
		SymUniverse:  top.symUniverse,
	}

	// columnOrder preserves declaration order as encountered in the file,
	// which Serialize always writes in schema declaration order.
	for _, name := range columnOrder {
		cf := columns[name]
		if !cf.seen {
			return nil, fmt.Errorf("schema: column %q missing type", name)
		}
		s.Columns = append(s.Columns, Column{
			Name:      name,
			Type:      ColumnType(cf.typ),
			Stride:    cf.stride,
			BlockSize: cf.blockSize,
		})
	}

	return s, nil
}

func splitKV(line string) (key, value string, ok bool) {
	idx := strings.Index(line, "=")
	if idx < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:idx])
	value = strings.TrimSpace(line[idx+1:])
	if key == "" {
		return "", "", false
	}
	return key, value, true
}
