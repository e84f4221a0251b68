package eval

import (
	"jfrq/internal/jfr/chunk"
	"jfrq/internal/query/ast"
	"jfrq/internal/query/predicate"
)

// projectSegments walks segments over root per spec §4.3.1: a string segment
// reached while the current value is an array fans out across every
// element, continuing the same segment on each; an explicit index or slice
// on a segment addresses the named field's array directly; nulls and type
// mismatches terminate a branch silently rather than erroring.
func projectSegments(root chunk.Value, segments []ast.Segment) []chunk.Value {
	values := []chunk.Value{root}
	for _, seg := range segments {
		var next []chunk.Value
		for _, v := range values {
			next = append(next, stepInto(v, seg)...)
		}
		values = next
	}
	return values
}

func stepInto(v chunk.Value, seg ast.Segment) []chunk.Value {
	v = v.Resolve()

	if v.Kind == chunk.KindArray {
		var out []chunk.Value
		for _, elem := range v.Array {
			out = append(out, stepInto(elem, seg)...)
		}
		return out
	}

	if v.Kind != chunk.KindMap {
		return nil
	}
	field, ok := v.Map[seg.Name]
	if !ok {
		return nil
	}
	field = field.Resolve()

	var result chunk.Value
	switch {
	case seg.Index != nil:
		if field.Kind != chunk.KindArray {
			return nil
		}
		idx := int(*seg.Index)
		if idx < 0 || idx >= len(field.Array) {
			return nil
		}
		result = field.Array[idx]
	case seg.Slice != nil:
		if field.Kind != chunk.KindArray {
			return nil
		}
		from, to := clampSlice(seg.Slice.From, seg.Slice.To, len(field.Array))
		sliced := make([]chunk.Value, to-from)
		copy(sliced, field.Array[from:to])
		result = chunk.Value{Kind: chunk.KindArray, Array: sliced, ElemKind: field.ElemKind}
	default:
		result = field
	}

	results := []chunk.Value{result}
	if len(seg.Predicates) > 0 {
		results = filterByPredicates(results, seg.Predicates)
	}
	return results
}

func clampSlice(from, to int64, n int) (int, int) {
	f, t := int(from), int(to)
	if f < 0 {
		f = 0
	}
	if t > n {
		t = n
	}
	if f > t {
		f = t
	}
	return f, t
}

// filterByPredicates applies segment-scoped predicates to the sub-structure
// reached at that segment (spec §4.4, "a predicate after a segment applies
// to the sub-structure at that segment"). Predicates are conjoined.
func filterByPredicates(values []chunk.Value, preds []ast.Predicate) []chunk.Value {
	var out []chunk.Value
	for _, v := range values {
		resolved := v.Resolve()
		if resolved.Kind != chunk.KindMap {
			// Predicates only meaningfully constrain map sub-structures;
			// non-map values pass through unfiltered.
			out = append(out, v)
			continue
		}
		allMatch := true
		for _, p := range preds {
			ok, err := predicate.MatchPredicate(resolved.Map, p)
			if err != nil || !ok {
				allMatch = false
				break
			}
		}
		if allMatch {
			out = append(out, v)
		}
	}
	return out
}
