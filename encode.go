package tickdb

import "encoding/binary"

func encodeI64(v int64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(v))
	return buf
}

func putU16(dst []byte, v uint16) { binary.LittleEndian.PutUint16(dst, v) }
func putU32(dst []byte, v uint32) { binary.LittleEndian.PutUint32(dst, v) }
func putU64(dst []byte, v uint64) { binary.LittleEndian.PutUint64(dst, v) }
