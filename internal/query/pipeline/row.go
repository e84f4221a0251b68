// Package pipeline implements the closed pipeline-operator set of spec §4.5:
// count, sum, stats, quantiles, sketch, groupBy, top, sortBy, select (with
// the embedded expression language), toMap, timeRange, decorateByTime,
// decorateByKey, and the per-row scalar transforms. Operators compose
// left-to-right, each consuming and producing a Row stream (spec §3.1,
// "Row: an ordered mapping from column name to value").
//
// The operator dispatch loop (Run's type switch over ast.PipelineOp; the
// package has no builder type) is grounded on app/query/pipeline.go's
// QueryPipeline/PipelineBuilder shape; the
// aggregation stages (stats/quantiles/sketch) reuse the single-pass,
// precompute-then-scan discipline of app/histogram/histogram.go's
// BuildFromStageResult.
package pipeline

import (
	"sort"
	"strings"

	"jfrq/internal/jfr/chunk"
	"jfrq/internal/query/predicate"
)

// Row is an insertion-ordered column->value mapping, the uniform output of
// the evaluator and every pipeline operator (spec §3.1, §9 "Model each row
// as an insertion-ordered key->value mapping; operators copy-on-write rather
// than mutate upstream rows"). Hidden bookkeeping columns (chunk timing, see
// chunk.RowChunkStartNanosKey) are retrievable via Get but never appear in
// Keys(), so they stay invisible to select/groupBy/toMap output.
type Row struct {
	keys   []string
	hidden map[string]chunk.Value
	vals   map[string]chunk.Value
}

// NewRow returns an empty row.
func NewRow() *Row {
	return &Row{vals: make(map[string]chunk.Value), hidden: make(map[string]chunk.Value)}
}

// Set assigns a visible column. Re-setting an existing key keeps its
// original position in Keys().
func (r *Row) Set(key string, v chunk.Value) {
	if _, exists := r.vals[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.vals[key] = v
}

// SetHidden assigns a bookkeeping column invisible to Keys() and to any
// operator that renders columns by name (select, toMap, groupBy output).
func (r *Row) SetHidden(key string, v chunk.Value) {
	r.hidden[key] = v
}

// Get looks up a column, visible or hidden.
func (r *Row) Get(key string) (chunk.Value, bool) {
	if v, ok := r.vals[key]; ok {
		return v, true
	}
	v, ok := r.hidden[key]
	return v, ok
}

// Keys returns the visible columns in declaration order.
func (r *Row) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Clone performs the copy-on-write every operator owes its input rows
// (spec §9): downstream mutation never observes upstream state.
func (r *Row) Clone() *Row {
	out := &Row{
		keys:   make([]string, len(r.keys)),
		vals:   make(map[string]chunk.Value, len(r.vals)),
		hidden: make(map[string]chunk.Value, len(r.hidden)),
	}
	copy(out.keys, r.keys)
	for k, v := range r.vals {
		out.vals[k] = v
	}
	for k, v := range r.hidden {
		out.hidden[k] = v
	}
	return out
}

// AsFieldMap flattens a Row (visible and hidden columns alike) into a
// chunk.FieldMap so path navigation (predicate.Navigate, expr.Eval) can run
// unchanged against a materialized row.
func (r *Row) AsFieldMap() chunk.FieldMap {
	fm := make(chunk.FieldMap, len(r.vals)+len(r.hidden))
	for k, v := range r.vals {
		fm[k] = v
	}
	for k, v := range r.hidden {
		fm[k] = v
	}
	return fm
}

// FromFieldMap converts one evaluator-produced event row into a pipeline
// Row: the hidden chunk.RowChunk* timing columns stay hidden, every other
// key becomes a visible column. Visible column order is not meaningful for a
// raw event row (chunk.FieldMap carries no declared order of its own), so
// keys are sorted for determinism (spec §5, "sort before emitting" whenever
// hash-map iteration order would otherwise leak through).
func FromFieldMap(fm chunk.FieldMap) *Row {
	r := NewRow()
	names := make([]string, 0, len(fm))
	for k := range fm {
		if isHiddenKey(k) {
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		r.Set(k, fm[k])
	}
	for _, hk := range []string{chunk.RowChunkStartNanosKey, chunk.RowChunkStartTicksKey, chunk.RowChunkTickFreqKey} {
		if v, ok := fm[hk]; ok {
			r.SetHidden(hk, v)
		}
	}
	return r
}

func isHiddenKey(k string) bool {
	return k == chunk.RowChunkStartNanosKey || k == chunk.RowChunkStartTicksKey || k == chunk.RowChunkTickFreqKey
}

// FromFieldMaps converts a batch of evaluator rows.
func FromFieldMaps(fms []chunk.FieldMap) []*Row {
	out := make([]*Row, len(fms))
	for i, fm := range fms {
		out[i] = FromFieldMap(fm)
	}
	return out
}

// rowChunk reconstructs the ChunkSummary a row was stamped with, for
// tick-to-wall-clock conversion (timeRange, decorateByTime). ok is false
// when the row carries no chunk stamp (e.g. it was synthesized by an
// upstream aggregation, not read directly off the event stream).
func rowChunk(r *Row) (chunk.ChunkSummary, bool) {
	nanos, ok1 := r.Get(chunk.RowChunkStartNanosKey)
	ticks, ok2 := r.Get(chunk.RowChunkStartTicksKey)
	freq, ok3 := r.Get(chunk.RowChunkTickFreqKey)
	if !ok1 || !ok2 || !ok3 {
		return chunk.ChunkSummary{}, false
	}
	startNanos, _ := nanos.Scalar.(int64)
	startTicks, _ := ticks.Scalar.(int64)
	tickFreq, _ := freq.Scalar.(int64)
	return chunk.ChunkSummary{StartNanos: startNanos, StartTicks: startTicks, TickFrequency: tickFreq}, true
}

// navigate resolves path against a row using the same automatic
// array-iteration rules path navigation uses everywhere else in jfrq
// (predicate.Navigate), by flattening the row back into a chunk.FieldMap
// first.
func navigate(r *Row, path string) []chunk.Value {
	return predicate.Navigate(r.AsFieldMap(), path)
}

// navigateOne is navigate's single-value form, used by operators that treat
// a path as scalar (sortBy/top, select, toMap, the scalar transforms,
// decorateByKey); sum/stats/groupBy use the array-aware navigate.
func navigateOne(r *Row, path string) (chunk.Value, bool) {
	vs := navigate(r, path)
	if len(vs) == 0 {
		return chunk.Value{Kind: chunk.KindNull}, false
	}
	return vs[0], true
}

// lastPathSegment derives select()'s default column name from a bare field
// path: the final "/"-separated segment, with any trailing "[...]"
// index/slice stripped (spec §4.5.1).
func lastPathSegment(path string) string {
	parts := strings.Split(path, "/")
	last := parts[len(parts)-1]
	if i := strings.IndexByte(last, '['); i >= 0 {
		last = last[:i]
	}
	return last
}
