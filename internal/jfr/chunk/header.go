package chunk

import (
	"encoding/binary"
	"fmt"
	"io"
)

// magic is the 4-byte sentinel every chunk header begins with (spec §6.1).
var magic = [4]byte{'F', 'L', 'R', 0}

const headerFixedSize = 4 + 2 + 2 + 8 + 8 + 8 + 8 + 8 + 8 + 8 + 4

const featureCompressedBit = 1 << 0

// header is the fixed-size chunk header from spec §6.1, read with
// encoding/binary since every field is fixed-width (LEB128 is reserved for
// the variable-length payload that follows).
type header struct {
	VersionMajor        uint16
	VersionMinor        uint16
	ChunkSize           int64
	ConstantPoolOffset  int64
	MetadataOffset      int64
	StartNanos          int64
	Duration            int64
	StartTicks          int64
	TickFrequency       int64
	Features            int32
}

func readHeader(r io.Reader) (header, error) {
	buf := make([]byte, headerFixedSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return header{}, err
	}
	if buf[0] != magic[0] || buf[1] != magic[1] || buf[2] != magic[2] || buf[3] != magic[3] {
		return header{}, fmt.Errorf("bad magic %x", buf[:4])
	}
	be := binary.BigEndian
	h := header{
		VersionMajor:       be.Uint16(buf[4:6]),
		VersionMinor:       be.Uint16(buf[6:8]),
		ChunkSize:          int64(be.Uint64(buf[8:16])),
		ConstantPoolOffset: int64(be.Uint64(buf[16:24])),
		MetadataOffset:     int64(be.Uint64(buf[24:32])),
		StartNanos:         int64(be.Uint64(buf[32:40])),
		Duration:           int64(be.Uint64(buf[40:48])),
		StartTicks:         int64(be.Uint64(buf[48:56])),
		TickFrequency:      int64(be.Uint64(buf[56:64])),
		Features:           int32(be.Uint32(buf[64:68])),
	}
	if h.ChunkSize < headerFixedSize {
		return header{}, fmt.Errorf("chunk size %d smaller than header", h.ChunkSize)
	}
	return h, nil
}

func (h header) compressed() bool { return h.Features&featureCompressedBit != 0 }

func (h header) summary(index int, offset int64) ChunkSummary {
	return ChunkSummary{
		Index:           index,
		Offset:          offset,
		Size:            h.ChunkSize,
		StartNanos:      h.StartNanos,
		StartTicks:      h.StartTicks,
		TickFrequency:   h.TickFrequency,
		Duration:        h.Duration,
		Compressed:      h.compressed(),
		VersionMajor:    h.VersionMajor,
		VersionMinor:    h.VersionMinor,
		ConstantPoolOff: h.ConstantPoolOffset,
		MetadataOff:     h.MetadataOffset,
	}
}
