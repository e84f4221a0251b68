// Package leb128 decodes the variable-length integers and length-prefixed
// strings used throughout the JFR chunk format (spec §6.1).
package leb128

import (
	"encoding/binary"
	"errors"
	"io"
)

// ErrOverflow is returned when a varint would not fit in 64 bits.
var ErrOverflow = errors.New("leb128: varint overflows 64 bits")

// ReadUvarint reads an unsigned LEB128 varint from r.
func ReadUvarint(r io.ByteReader) (uint64, error) {
	var result uint64
	var shift uint
	for i := 0; i < 10; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
	return 0, ErrOverflow
}

// ReadVarint reads a signed LEB128 varint (JFR encodes signed fields as plain
// unsigned varints of the zig-zag-free two's complement value truncated to
// the field width, so this is just a width cast over ReadUvarint).
func ReadVarint(r io.ByteReader) (int64, error) {
	v, err := ReadUvarint(r)
	return int64(v), err
}

// ReadString reads a JFR-encoded string: a leading byte selecting the
// encoding (0 = null, 1 = empty, 3 = UTF-8 byte array, 4 = char array,
// 5 = latin1 byte array) followed by a length-prefixed payload for the
// non-trivial cases. jfrq only ever emits UTF-8, but accepts what a real
// recording may contain.
func ReadString(r io.ByteReader) (string, error) {
	kind, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	switch kind {
	case 0:
		return "", nil
	case 1:
		return "", nil
	case 3, 5:
		n, err := ReadUvarint(r)
		if err != nil {
			return "", err
		}
		buf := make([]byte, n)
		for i := range buf {
			b, err := r.ReadByte()
			if err != nil {
				return "", err
			}
			buf[i] = b
		}
		return string(buf), nil
	case 4:
		n, err := ReadUvarint(r)
		if err != nil {
			return "", err
		}
		runes := make([]rune, n)
		for i := range runes {
			v, err := ReadUvarint(r)
			if err != nil {
				return "", err
			}
			runes[i] = rune(v)
		}
		return string(runes), nil
	default:
		return "", errors.New("leb128: unsupported string encoding byte")
	}
}

// PutUvarint encodes v as an unsigned LEB128 varint, appended to buf.
func PutUvarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

// BigEndianUint32 is a small helper kept next to the varint codec since the
// chunk header (spec §6.1) uses fixed-width big-endian integers rather than
// varints for its top-level fields.
func BigEndianUint32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }
