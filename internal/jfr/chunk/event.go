package chunk

import (
	"bufio"
	"io"

	"jfrq/internal/jfr/leb128"
)

// readEvent decodes one event record from the events region of a chunk: a
// varint record length (record framing, spec §4.1), the event's type name,
// a field count, and (name, Value) pairs.
//
// recordLength is the number of bytes following the length varint itself.
// It bounds the payload decode and lets trailing bytes of a well-formed
// record be drained. A payload that fails to decode is returned as an
// error, which StreamEvents reports as a CorruptRecordingError and stops
// on; the bad event is not skipped.
func readEvent(r *bufio.Reader, pools constantPools) (typeName string, fields FieldMap, err error) {
	recordLength, err := leb128.ReadUvarint(r)
	if err != nil {
		return "", nil, err
	}
	lr := &io.LimitedReader{R: r, N: int64(recordLength)}
	br := bufio.NewReader(lr)

	typeName, err = leb128.ReadString(br)
	if err != nil {
		return "", nil, err
	}
	fieldCount, err := leb128.ReadUvarint(br)
	if err != nil {
		return "", nil, err
	}
	fields = make(FieldMap, fieldCount)
	for i := uint64(0); i < fieldCount; i++ {
		name, err := leb128.ReadString(br)
		if err != nil {
			return "", nil, err
		}
		v, err := readValue(br, pools)
		if err != nil {
			return "", nil, err
		}
		fields[name] = v
	}
	// Drain any trailer the writer left for forward-compatibility so the
	// outer reader's position lands exactly at the next record boundary.
	if lr.N > 0 {
		if _, err := io.CopyN(io.Discard, lr, lr.N); err != nil {
			return "", nil, err
		}
	}
	return typeName, fields, nil
}
