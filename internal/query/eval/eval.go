// Package eval implements the streaming QPath evaluator (spec §4.3): it
// drives a chunk.RecordingHandle's untyped event stream, applies predicate
// matching and automatic-array-iteration projection, honors early abort
// under a row limit, and validates event-type names against the recording's
// declared metadata with a Levenshtein did-you-mean suggestion.
package eval

import (
	"jfrq/internal/jfr/chunk"
	"jfrq/internal/query/ast"
	"jfrq/internal/query/predicate"
)

// Evaluate materializes every row a query produces (spec §4.3, "evaluate").
func Evaluate(h *chunk.RecordingHandle, q *ast.Query) ([]chunk.FieldMap, error) {
	return EvaluateWithLimit(h, q, 0)
}

// EvaluateWithLimit aborts streaming as soon as limit rows have been
// collected (0 means unlimited). Applies only to the events root; other
// roots are already materialized and return their full row set.
func EvaluateWithLimit(h *chunk.RecordingHandle, q *ast.Query, limit int) ([]chunk.FieldMap, error) {
	switch q.Root {
	case ast.RootEvents:
		return evaluateEvents(h, q, limit)
	case ast.RootMetadata:
		return evaluateMetadata(h, q)
	case ast.RootChunks:
		return evaluateChunks(h, q)
	case ast.RootConstantPool:
		return evaluateConstantPool(h, q)
	default:
		return nil, nil
	}
}

// EvaluateValues is for queries whose segments project past the event type
// and whose pipeline is empty (spec §4.3, scenario 3): it returns the
// flattened leaf values rather than wrapping them into rows.
func EvaluateValues(h *chunk.RecordingHandle, q *ast.Query) ([]chunk.Value, error) {
	return EvaluateValuesWithLimit(h, q, 0)
}

// EvaluateValuesWithLimit is EvaluateValues with an early-abort row limit.
func EvaluateValuesWithLimit(h *chunk.RecordingHandle, q *ast.Query, limit int) ([]chunk.Value, error) {
	if q.Root != ast.RootEvents {
		rows, err := EvaluateWithLimit(h, q, limit)
		if err != nil {
			return nil, err
		}
		values := make([]chunk.Value, 0, len(rows))
		for _, r := range rows {
			values = append(values, chunk.Value{Kind: chunk.KindMap, Map: r})
		}
		return values, nil
	}

	if err := validateEventTypes(h, q); err != nil {
		return nil, err
	}
	matches := eventTypeMatcher(q.EventTypes)

	var out []chunk.Value
	err := h.StreamEvents(func(typeName string, fields chunk.FieldMap, ctl *chunk.Control) error {
		if !matches(typeName) {
			return nil
		}
		ok, err := matchAllPredicates(fields, q.Predicates)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		projected := projectSegments(chunk.Value{Kind: chunk.KindMap, Map: fields}, q.Segments)
		out = append(out, projected...)
		if limit > 0 && len(out) >= limit {
			ctl.Abort()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func evaluateEvents(h *chunk.RecordingHandle, q *ast.Query, limit int) ([]chunk.FieldMap, error) {
	if err := validateEventTypes(h, q); err != nil {
		return nil, err
	}
	matches := eventTypeMatcher(q.EventTypes)

	var rows []chunk.FieldMap
	err := h.StreamEvents(func(typeName string, fields chunk.FieldMap, ctl *chunk.Control) error {
		if !matches(typeName) {
			return nil
		}
		ok, err := matchAllPredicates(fields, q.Predicates)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		if len(q.Segments) > 0 {
			projected := projectSegments(chunk.Value{Kind: chunk.KindMap, Map: fields}, q.Segments)
			for _, v := range projected {
				row := wrapAsRow(v)
				stampChunkTiming(row, ctl.Chunk)
				rows = append(rows, row)
			}
		} else {
			row := copyFields(fields)
			stampChunkTiming(row, ctl.Chunk)
			rows = append(rows, row)
		}

		if limit > 0 && len(rows) >= limit {
			ctl.Abort()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// wrapAsRow presents a projected leaf value as a single-column row so
// pipeline operators downstream of a projection still see a uniform row
// stream; the column is named "value".
func wrapAsRow(v chunk.Value) chunk.FieldMap {
	if v.Kind == chunk.KindMap {
		return copyFields(v.Map)
	}
	return chunk.FieldMap{"value": v}
}

// copyFields performs the shallow resolution copy the evaluator owes every
// retained event (spec §3.1, "Events are ephemeral: the evaluator must copy
// what it keeps").
func copyFields(fields chunk.FieldMap) chunk.FieldMap {
	out := make(chunk.FieldMap, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// stampChunkTiming attaches the hidden chunk.RowChunk* bookkeeping fields so
// pipeline operators downstream (timeRange, decorateByTime, both spec §4.5)
// can convert a retained row's tick-valued fields back to wall-clock time
// without a second streaming pass per row.
func stampChunkTiming(row chunk.FieldMap, c chunk.ChunkSummary) {
	row[chunk.RowChunkStartNanosKey] = chunk.Value{Kind: chunk.KindScalar, Scalar: c.StartNanos}
	row[chunk.RowChunkStartTicksKey] = chunk.Value{Kind: chunk.KindScalar, Scalar: c.StartTicks}
	row[chunk.RowChunkTickFreqKey] = chunk.Value{Kind: chunk.KindScalar, Scalar: c.TickFrequency}
}

func matchAllPredicates(fields chunk.FieldMap, preds []ast.Predicate) (bool, error) {
	for _, p := range preds {
		ok, err := predicate.MatchPredicate(fields, p)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// eventTypeMatcher picks a direct string-compare fast path for a single
// event type and a hash-set lookup only for a multi-type union (spec §9,
// "Event-type union").
func eventTypeMatcher(types []string) func(string) bool {
	if len(types) == 0 {
		return func(string) bool { return true }
	}
	if len(types) == 1 {
		want := types[0]
		return func(name string) bool { return name == want }
	}
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return func(name string) bool {
		_, ok := set[name]
		return ok
	}
}

// validateEventTypes implements spec §3.2/§4.3.2: every queried event type
// must match a declared type, or the set is empty and validation is
// skipped.
func validateEventTypes(h *chunk.RecordingHandle, q *ast.Query) error {
	declared, err := h.DeclaredEventTypeNames()
	if err != nil {
		return err
	}
	if len(declared) == 0 {
		return nil
	}
	for _, name := range q.EventTypes {
		if _, ok := declared[name]; !ok {
			return &UnknownEventTypeError{Name: name, Suggestion: suggest(name, declared)}
		}
	}
	return nil
}

func evaluateMetadata(h *chunk.RecordingHandle, q *ast.Query) ([]chunk.FieldMap, error) {
	typeName := ""
	if len(q.Segments) > 0 {
		typeName = q.Segments[0].Name
	}
	types, err := h.LoadMetadata(typeName)
	if err != nil {
		return nil, err
	}
	rows := make([]chunk.FieldMap, 0, len(types))
	for _, t := range types {
		fieldNames := make([]chunk.Value, 0, len(t.Fields))
		for _, f := range t.Fields {
			fieldNames = append(fieldNames, chunk.Value{Kind: chunk.KindScalar, Scalar: f.Name})
		}
		row := chunk.FieldMap{
			"name":       {Kind: chunk.KindScalar, Scalar: t.Name},
			"superType":  {Kind: chunk.KindScalar, Scalar: t.SuperType},
			"fieldCount": {Kind: chunk.KindScalar, Scalar: int64(len(t.Fields))},
			"fields":     {Kind: chunk.KindArray, Array: fieldNames, ElemKind: chunk.KindScalar},
		}
		if ok, err := matchAllPredicates(row, q.Predicates); err != nil {
			return nil, err
		} else if ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func evaluateChunks(h *chunk.RecordingHandle, q *ast.Query) ([]chunk.FieldMap, error) {
	summaries := h.ListChunks()
	rows := make([]chunk.FieldMap, 0, len(summaries))
	for _, c := range summaries {
		row := chunk.FieldMap{
			"index":         {Kind: chunk.KindScalar, Scalar: int64(c.Index)},
			"offset":        {Kind: chunk.KindScalar, Scalar: c.Offset},
			"size":          {Kind: chunk.KindScalar, Scalar: c.Size},
			"startNanos":    {Kind: chunk.KindScalar, Scalar: c.StartNanos},
			"startTicks":    {Kind: chunk.KindScalar, Scalar: c.StartTicks},
			"tickFrequency": {Kind: chunk.KindScalar, Scalar: c.TickFrequency},
			"duration":      {Kind: chunk.KindScalar, Scalar: c.Duration},
			"compressed":    {Kind: chunk.KindScalar, Scalar: c.Compressed},
		}
		if ok, err := matchAllPredicates(row, q.Predicates); err != nil {
			return nil, err
		} else if ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func evaluateConstantPool(h *chunk.RecordingHandle, q *ast.Query) ([]chunk.FieldMap, error) {
	if len(q.Segments) == 0 {
		summaries, err := h.ConstantPoolSummary()
		if err != nil {
			return nil, err
		}
		rows := make([]chunk.FieldMap, 0, len(summaries))
		for _, s := range summaries {
			rows = append(rows, chunk.FieldMap{
				"name":      {Kind: chunk.KindScalar, Scalar: s.Name},
				"totalSize": {Kind: chunk.KindScalar, Scalar: int64(s.TotalSize)},
			})
		}
		return rows, nil
	}

	typeName := q.Segments[0].Name
	entries, err := h.ConstantPoolEntries(typeName, nil)
	if err != nil {
		return nil, err
	}
	rows := make([]chunk.FieldMap, 0, len(entries))
	for _, e := range entries {
		row := make(chunk.FieldMap, len(e.Columns))
		for i, col := range e.Columns {
			row[col] = e.Values[i]
		}
		if ok, err := matchAllPredicates(row, q.Predicates); err != nil {
			return nil, err
		} else if ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}
