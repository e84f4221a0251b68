// Package chunktest builds synthetic JFR chunk bytes for exercising the
// chunk package's decoder and the query packages layered on top of it.
// Production code never needs to write recordings (spec's write-path
// Non-goal), so this encoder lives only under a _test-facing package, not
// on package chunk's public surface.
package chunktest

import (
	"encoding/binary"
	"math"

	"jfrq/internal/jfr/leb128"
)

// FieldValue is the test-fixture counterpart of chunk.Value: a small,
// writable variant covering the shapes events and constant pools need for
// tests (strings, longs, doubles, bools, nested maps/arrays, and
// constant-pool references).
type FieldValue struct {
	kind int // mirrors chunk's valueTag ordering
	s    string
	i    int64
	f    float64
	b    bool
	m    map[string]FieldValue
	arr  []FieldValue
	ref  struct {
		poolType string
		id       int64
	}
}

func Null() FieldValue                 { return FieldValue{kind: 0} }
func Str(s string) FieldValue          { return FieldValue{kind: 1, s: s} }
func Long(i int64) FieldValue          { return FieldValue{kind: 2, i: i} }
func Double(f float64) FieldValue      { return FieldValue{kind: 3, f: f} }
func Bool(b bool) FieldValue           { return FieldValue{kind: 4, b: b} }
func Map(m map[string]FieldValue) FieldValue { return FieldValue{kind: 5, m: m} }
func Array(vs ...FieldValue) FieldValue { return FieldValue{kind: 6, arr: vs} }
func Ref(poolType string, id int64) FieldValue {
	v := FieldValue{kind: 7}
	v.ref.poolType = poolType
	v.ref.id = id
	return v
}

func appendString(buf []byte, s string) []byte {
	if s == "" {
		return append(buf, 1)
	}
	buf = append(buf, 3)
	buf = leb128.PutUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func appendValue(buf []byte, v FieldValue) []byte {
	buf = append(buf, byte(v.kind))
	switch v.kind {
	case 0: // null
	case 1:
		buf = appendString(buf, v.s)
	case 2:
		buf = leb128.PutUvarint(buf, uint64(v.i))
	case 3:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(v.f))
		buf = append(buf, b[:]...)
	case 4:
		if v.b {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case 5:
		buf = leb128.PutUvarint(buf, uint64(len(v.m)))
		for k, fv := range v.m {
			buf = appendString(buf, k)
			buf = appendValue(buf, fv)
		}
	case 6:
		buf = leb128.PutUvarint(buf, uint64(len(v.arr)))
		for _, ev := range v.arr {
			buf = appendValue(buf, ev)
		}
	case 7:
		buf = appendString(buf, v.ref.poolType)
		buf = leb128.PutUvarint(buf, uint64(v.ref.id))
	}
	return buf
}

// Event is one record to place in a chunk's events region.
type Event struct {
	TypeName string
	Fields   map[string]FieldValue
}

// ConstantEntry is one (id, value) pair in a constant pool.
type ConstantEntry struct {
	ID    int64
	Value FieldValue
}

// Field describes one metadata field for a type.
type Field struct {
	Name          string
	TypeName      string
	IsArray       bool
	IsConstantRef bool
}

// TypeDef describes one metadata type declaration.
type TypeDef struct {
	Name      string
	SuperType string
	Fields    []Field
}

// ChunkSpec is the full set of inputs to build one chunk's bytes.
type ChunkSpec struct {
	VersionMajor  uint16
	VersionMinor  uint16
	StartNanos    int64
	Duration      int64
	StartTicks    int64
	TickFrequency int64
	Compressed    bool
	Events        []Event
	Types         []TypeDef
	ConstantPools map[string][]ConstantEntry
}

func encodeEvent(e Event) []byte {
	var body []byte
	body = appendString(body, e.TypeName)
	body = leb128.PutUvarint(body, uint64(len(e.Fields)))
	for name, v := range e.Fields {
		body = appendString(body, name)
		body = appendValue(body, v)
	}
	var rec []byte
	rec = leb128.PutUvarint(rec, uint64(len(body)))
	return append(rec, body...)
}

func encodeMetadata(types []TypeDef) []byte {
	var buf []byte
	buf = leb128.PutUvarint(buf, uint64(len(types)))
	for _, t := range types {
		buf = appendString(buf, t.Name)
		buf = appendString(buf, t.SuperType)
		buf = leb128.PutUvarint(buf, 0) // no type-level annotations in fixtures
		buf = leb128.PutUvarint(buf, uint64(len(t.Fields)))
		for _, f := range t.Fields {
			buf = appendString(buf, f.Name)
			buf = appendString(buf, f.TypeName)
			if f.IsArray {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
			if f.IsConstantRef {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
			buf = leb128.PutUvarint(buf, 0) // no field-level annotations in fixtures
		}
	}
	return buf
}

func encodeCheckpoint(pools map[string][]ConstantEntry) []byte {
	var buf []byte
	buf = leb128.PutUvarint(buf, uint64(len(pools)))
	for typeName, entries := range pools {
		buf = appendString(buf, typeName)
		buf = leb128.PutUvarint(buf, uint64(len(entries)))
		for _, e := range entries {
			buf = leb128.PutUvarint(buf, uint64(e.ID))
			buf = appendValue(buf, e.Value)
		}
	}
	return buf
}

const headerFixedSize = 4 + 2 + 2 + 8 + 8 + 8 + 8 + 8 + 8 + 8 + 4

// Build encodes spec into one bare chunk's bytes, matching the layout
// chunk.Open expects: a fixed header, then the events region, then the
// metadata block, then the constant-pool checkpoint block.
func Build(spec ChunkSpec) []byte {
	var events []byte
	for _, e := range spec.Events {
		events = append(events, encodeEvent(e)...)
	}
	metadata := encodeMetadata(spec.Types)
	checkpoint := encodeCheckpoint(spec.ConstantPools)

	metadataOffset := int64(headerFixedSize + len(events))
	constantPoolOffset := metadataOffset + int64(len(metadata))
	chunkSize := constantPoolOffset + int64(len(checkpoint))

	header := make([]byte, 0, headerFixedSize)
	header = append(header, 'F', 'L', 'R', 0)
	var u16 [2]byte
	binary.BigEndian.PutUint16(u16[:], spec.VersionMajor)
	header = append(header, u16[:]...)
	binary.BigEndian.PutUint16(u16[:], spec.VersionMinor)
	header = append(header, u16[:]...)
	header = appendU64(header, uint64(chunkSize))
	header = appendU64(header, uint64(constantPoolOffset))
	header = appendU64(header, uint64(metadataOffset))
	header = appendU64(header, uint64(spec.StartNanos))
	header = appendU64(header, uint64(spec.Duration))
	header = appendU64(header, uint64(spec.StartTicks))
	header = appendU64(header, uint64(spec.TickFrequency))
	var features uint32
	if spec.Compressed {
		features |= 1
	}
	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], features)
	header = append(header, u32[:]...)

	out := make([]byte, 0, int(chunkSize))
	out = append(out, header...)
	out = append(out, events...)
	out = append(out, metadata...)
	out = append(out, checkpoint...)
	return out
}

func appendU64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

// BuildRecording concatenates one or more chunks into a complete bare
// recording's bytes, suitable for writing to a temp file and passing to
// chunk.Open in tests.
func BuildRecording(specs ...ChunkSpec) []byte {
	var out []byte
	for _, s := range specs {
		out = append(out, Build(s)...)
	}
	return out
}
