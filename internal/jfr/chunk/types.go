// Package chunk implements the deterministic JFR chunk/metadata/constant-pool
// streaming reader described in spec §4.1 and §6.1.
package chunk

import (
	"math/big"
	"time"
)

// ChunkSummary describes one chunk's header and timing (spec §6.1).
type ChunkSummary struct {
	Index          int
	Offset         int64
	Size           int64
	StartNanos     int64
	StartTicks     int64
	TickFrequency  int64
	Duration       int64
	Compressed     bool
	VersionMajor   uint16
	VersionMinor   uint16
	ConstantPoolOff int64
	MetadataOff     int64
}

// NanosPerTick is ticks_to_nanos's conversion factor: nanos_per_tick = 1e9 / freq.
func (c ChunkSummary) NanosPerTick() float64 {
	if c.TickFrequency == 0 {
		return 0
	}
	return 1e9 / float64(c.TickFrequency)
}

// TicksToNanos implements spec §3.1's ticks_to_nanos(Δt) = round(Δt * 1e9 / freq),
// computed with an integer intermediate to stay exact for large tick deltas
// (spec §9, "Tick conversion correctness").
func (c ChunkSummary) TicksToNanos(delta int64) int64 {
	if c.TickFrequency == 0 {
		return 0
	}
	const nanosPerSec = int64(1e9)
	// round(delta * 1e9 / freq) using integer math: (delta*1e9 + freq/2) / freq,
	// with delta's sign handled separately so the rounding bias stays symmetric.
	// The product is formed in a big.Int so it cannot overflow int64.
	neg := delta < 0
	if neg {
		delta = -delta
	}
	num := new(big.Int).Mul(big.NewInt(delta), big.NewInt(nanosPerSec))
	num.Add(num, big.NewInt(c.TickFrequency/2))
	result := num.Quo(num, big.NewInt(c.TickFrequency)).Int64()
	if neg {
		return -result
	}
	return result
}

// TicksToInstant implements ticks_to_instant(chunk, ticks) = chunk.startNanos +
// ticks_to_nanos(chunk, ticks - chunk.startTicks).
func (c ChunkSummary) TicksToInstant(ticks int64) time.Time {
	deltaNanos := c.TicksToNanos(ticks - c.StartTicks)
	return time.Unix(0, c.StartNanos+deltaNanos).UTC()
}

// FieldKind tags the shape of a Value in a FieldMap (spec §3.1, "Polymorphic
// field values").
type FieldKind int

const (
	KindNull FieldKind = iota
	KindScalar
	KindMap
	KindArray
	KindReference
)

// Value is a tagged variant over Scalar | Map | Array | Reference, per spec §9
// ("Represent with a tagged variant ... avoid hidden conversions").
type Value struct {
	Kind FieldKind
	// Scalar holds int64, float64, bool, or string for KindScalar.
	Scalar interface{}
	// Map holds nested fields for KindMap.
	Map FieldMap
	// Array holds elements for KindArray; ElemKind records what they are.
	Array    []Value
	ElemKind FieldKind
	// Ref carries the constant pool type and id for KindReference.
	Ref Reference
}

// Reference is a lazy pointer into a chunk-local constant pool.
type Reference struct {
	PoolType string
	ID       int64
	pool     *ConstantPool // set by the reader that produced this reference
}

// FieldMap is an O(1)-lookup map from field name to Value (spec §4.1).
type FieldMap map[string]Value

// RowChunkStartNanosKey, RowChunkStartTicksKey, and RowChunkTickFreqKey are
// hidden bookkeeping fields the evaluator stamps onto every retained event
// row, carrying the owning chunk's timing so pipeline operators (timeRange,
// decorateByTime, spec §4.5) can convert the row's tick-valued fields to
// wall-clock time without re-streaming. They are not part of any recording's
// declared metadata, so a real field of the same name can never collide in
// practice, and QPath queries have no reason to reference them directly.
const (
	RowChunkStartNanosKey = "__chunkStartNanos"
	RowChunkStartTicksKey = "__chunkStartTicks"
	RowChunkTickFreqKey   = "__chunkTickFrequency"
)

// TypeInfo describes one metadata class (spec §3.1).
type TypeInfo struct {
	Name       string
	Fields     []FieldInfo
	SuperType  string
	Annotations map[string]string
}

// FieldInfo describes one metadata field (spec §3.1).
type FieldInfo struct {
	Name          string
	TypeName      string
	IsArray       bool
	IsConstantRef bool
	Annotations   map[string]string
}

// PoolSummary is one row of load_constant_pool_summary (spec §4.1).
type PoolSummary struct {
	Name      string
	TotalSize int
}

// Row is a generic ordered result row, used for constant pool entries and
// chunk summaries surfaced to callers outside the evaluator (spec §3.1).
type Row struct {
	Columns []string
	Values  []Value
}

// Control is passed to the streaming visitor; Abort() stops iteration as soon
// as possible without reading further events (spec §4.1, §5). Chunk carries
// the timing of the chunk the current event belongs to, so callers can
// convert the event's tick-valued fields to wall-clock instants without a
// second pass over ListChunks (spec §4.1, "exposes chunk timing so tick
// values can be converted to wall-clock instants").
type Control struct {
	aborted bool
	Chunk   ChunkSummary
}

// Abort requests that streaming stop after the current event.
func (c *Control) Abort() { c.aborted = true }

// Aborted reports whether Abort has been called.
func (c *Control) Aborted() bool { return c.aborted }
