package logstore

import (
	"encoding/binary"
	"hash/crc32"
)

// Envelope encoding: varint headerLen | header | payload | crc32c(header|payload).
// The header is the 8-byte big-endian timestamp.

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

const tsHeaderLen = 8

// EncodeRecord builds the on-disk envelope for a payload written at ts.
func EncodeRecord(ts int64, payload []byte) []byte {
	var header [tsHeaderLen]byte
	binary.BigEndian.PutUint64(header[:], uint64(ts))

	out := make([]byte, 0, binary.MaxVarintLen64+tsHeaderLen+len(payload)+4)
	out = binary.AppendUvarint(out, tsHeaderLen)
	out = append(out, header[:]...)
	out = append(out, payload...)

	crc := crc32.Update(0, castagnoli, header[:])
	crc = crc32.Update(crc, castagnoli, payload)
	return binary.BigEndian.AppendUint32(out, crc)
}

// DecodeRecord validates an envelope and returns copies of its contents.
func DecodeRecord(b []byte) (ts int64, payload []byte, ok bool) {
	if len(b) < 1+4 {
		return 0, nil, false
	}
	hlen, n := binary.Uvarint(b)
	if n <= 0 || hlen != tsHeaderLen {
		return 0, nil, false
	}
	if n+int(hlen)+4 > len(b) {
		return 0, nil, false
	}
	header := b[n : n+int(hlen)]
	body := b[n+int(hlen) : len(b)-4]
	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, body)
	if crc != binary.BigEndian.Uint32(b[len(b)-4:]) {
		return 0, nil, false
	}
	return int64(binary.BigEndian.Uint64(header)), append([]byte(nil), body...), true
}
