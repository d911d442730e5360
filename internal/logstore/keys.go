package logstore

import "encoding/binary"

// Entry keys are "e/" followed by the big-endian offset, so byte order
// matches offset order.
var (
	entryPrefix = []byte("e/")
	// entryEnd is the exclusive upper bound of the entry keyspace.
	entryEnd = []byte("e0")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// KeyEntry builds the key for the record at offset.
func KeyEntry(offset int64) []byte {
	k := make([]byte, 0, len(entryPrefix)+8)
	k = append(k, entryPrefix...)
	return appendBE8(k, uint64(offset))
}

// OffsetFromKey parses an entry key. ok is false for foreign keys.
func OffsetFromKey(k []byte) (int64, bool) {
	if len(k) != len(entryPrefix)+8 || string(k[:len(entryPrefix)]) != string(entryPrefix) {
		return 0, false
	}
	return int64(binary.BigEndian.Uint64(k[len(entryPrefix):])), true
}
