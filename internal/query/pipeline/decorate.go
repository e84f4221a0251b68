package pipeline

import (
	"sort"

	"jfrq/internal/jfr/chunk"
	"jfrq/internal/query/ast"
	"jfrq/internal/query/predicate"
)

const (
	defaultThreadPath = "eventThread/javaThreadId"
	decoratorPrefix   = "$decorator."
)

// decoratorEvent is one collected decorator occurrence: its wall-clock
// interval and thread, plus the raw fields for later $decorator.* lookup.
type decoratorEvent struct {
	threadID   string
	startNanos int64
	endNanos   int64
	fields     chunk.FieldMap
}

// collectDecorators runs pass 1 of decorateByTime (spec §4.5.2): stream the
// whole recording, keep only decoratorType events, convert each to a
// wall-clock interval via its own chunk's timing, and sort by
// (threadID, startNanos) so pass 2 can bound its scan to one thread.
func collectDecorators(handle *chunk.RecordingHandle, decoratorType, threadPath string) ([]decoratorEvent, error) {
	if threadPath == "" {
		threadPath = defaultThreadPath
	}
	var decorators []decoratorEvent
	err := handle.StreamEvents(func(typeName string, fields chunk.FieldMap, ctl *chunk.Control) error {
		if typeName != decoratorType {
			return nil
		}
		d, ok := eventInterval(fields, ctl.Chunk, threadPath)
		if !ok {
			return nil
		}
		decorators = append(decorators, d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(decorators, func(i, j int) bool {
		if decorators[i].threadID != decorators[j].threadID {
			return decorators[i].threadID < decorators[j].threadID
		}
		return decorators[i].startNanos < decorators[j].startNanos
	})
	return decorators, nil
}

// eventInterval extracts (threadId, startNanos, endNanos) from a raw event's
// standard JFR startTime/duration fields (both tick-valued), using cs to
// convert to wall-clock nanoseconds.
func eventInterval(fields chunk.FieldMap, cs chunk.ChunkSummary, threadPath string) (decoratorEvent, bool) {
	tidVal, ok := predicate.NavigateOne(fields, threadPath)
	if !ok {
		return decoratorEvent{}, false
	}
	threadID := groupKeyString(tidVal)

	startVal, ok := predicate.NavigateOne(fields, "startTime")
	if !ok {
		return decoratorEvent{}, false
	}
	startTicks, ok := startVal.Resolve().AsFloat64()
	if !ok {
		return decoratorEvent{}, false
	}
	var durTicks float64
	if durVal, ok := predicate.NavigateOne(fields, "duration"); ok {
		durTicks, _ = durVal.Resolve().AsFloat64()
	}

	start := cs.TicksToInstant(int64(startTicks)).UnixNano()
	end := cs.TicksToInstant(int64(startTicks + durTicks)).UnixNano()
	return decoratorEvent{threadID: threadID, startNanos: start, endNanos: end, fields: fields}, true
}

// findThreadBounds binary-searches the (threadID, startNanos)-sorted
// decorators for the [lo, hi) sub-slice belonging to threadID.
func findThreadBounds(decorators []decoratorEvent, threadID string) (int, int) {
	lo := sort.Search(len(decorators), func(i int) bool { return decorators[i].threadID >= threadID })
	hi := sort.Search(len(decorators), func(i int) bool { return decorators[i].threadID > threadID })
	return lo, hi
}

// firstOverlap scans a thread's decorator sub-slice (already ascending by
// startNanos) for the first one whose interval overlaps [start, end); "first
// in sort order" is what spec §4.5.2 says is used for scalar access.
func firstOverlap(decorators []decoratorEvent, lo, hi int, start, end int64) (decoratorEvent, bool) {
	for i := lo; i < hi; i++ {
		d := decorators[i]
		if d.startNanos < end && start < d.endNanos {
			return d, true
		}
	}
	return decoratorEvent{}, false
}

// decoratorColumns renders requested field values (or, when fields is empty,
// every top-level field the matched decorator carries, sorted for
// determinism) into "$decorator.<name>" -> value pairs. When match is false,
// every explicitly requested field still materializes as null so downstream
// operators see a stable column set (spec §4.5.2); an empty fields list with
// no match produces no columns, since there is no decorator schema to infer.
func decoratorColumns(fields []string, match *chunk.FieldMap) map[string]chunk.Value {
	out := make(map[string]chunk.Value)
	if len(fields) == 0 {
		if match == nil {
			return out
		}
		names := make([]string, 0, len(*match))
		for k := range *match {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, name := range names {
			out[decoratorPrefix+name] = (*match)[name].Resolve()
		}
		return out
	}
	for _, name := range fields {
		if match == nil {
			out[decoratorPrefix+name] = chunk.Value{Kind: chunk.KindNull}
			continue
		}
		v, ok := predicate.NavigateOne(*match, name)
		if !ok {
			out[decoratorPrefix+name] = chunk.Value{Kind: chunk.KindNull}
			continue
		}
		out[decoratorPrefix+name] = v.Resolve()
	}
	return out
}

// runDecorateByTime implements spec §4.5.2: temporal join on
// [start, start+duration) overlap plus equal thread id.
func runDecorateByTime(handle *chunk.RecordingHandle, rows []*Row, op ast.DecorateByTimeOp) ([]*Row, error) {
	decorators, err := collectDecorators(handle, op.DecoratorType, op.DecoratorThreadPath)
	if err != nil {
		return nil, err
	}
	threadPath := op.ThreadPath
	if threadPath == "" {
		threadPath = defaultThreadPath
	}

	out := make([]*Row, len(rows))
	for i, r := range rows {
		nr := r.Clone()
		cs, ok := rowChunk(r)
		if ok {
			fields := r.AsFieldMap()
			if interval, ok := eventInterval(fields, cs, threadPath); ok {
				lo, hi := findThreadBounds(decorators, interval.threadID)
				var matchFields *chunk.FieldMap
				if d, found := firstOverlap(decorators, lo, hi, interval.startNanos, interval.endNanos); found {
					matchFields = &d.fields
				}
				for k, v := range decoratorColumns(op.Fields, matchFields) {
					nr.Set(k, v)
				}
				out[i] = nr
				continue
			}
		}
		for k, v := range decoratorColumns(op.Fields, nil) {
			nr.Set(k, v)
		}
		out[i] = nr
	}
	return out, nil
}

// runDecorateByKey implements spec §4.5.3: the same join and visibility
// rules as decorateByTime, but with equality on user-chosen key paths
// instead of interval overlap. Pass 1 builds a hash index key -> decorator
// fields (last-write-wins per key, matching toMap's convention); pass 2
// looks up each primary row's own key.
func runDecorateByKey(handle *chunk.RecordingHandle, rows []*Row, op ast.DecorateByKeyOp) ([]*Row, error) {
	index := make(map[string]chunk.FieldMap)
	err := handle.StreamEvents(func(typeName string, fields chunk.FieldMap, ctl *chunk.Control) error {
		if typeName != op.DecoratorType {
			return nil
		}
		kv, ok := predicate.NavigateOne(fields, op.DecoratorKey)
		if !ok {
			return nil
		}
		index[groupKeyString(kv)] = fields
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]*Row, len(rows))
	for i, r := range rows {
		nr := r.Clone()
		kv, ok := navigateOne(r, op.Key)
		var matchFields *chunk.FieldMap
		if ok {
			if fields, found := index[groupKeyString(kv)]; found {
				matchFields = &fields
			}
		}
		for k, v := range decoratorColumns(op.Fields, matchFields) {
			nr.Set(k, v)
		}
		out[i] = nr
	}
	return out, nil
}
