package pipeline

import (
	"fmt"
	"math"
	"strings"

	"jfrq/internal/jfr/chunk"
	"jfrq/internal/query/ast"
)

// runTransform applies one of the per-row scalar transforms (spec §4.5:
// len, uppercase/lowercase/trim, abs/round/floor/ceil, contains, replace) to
// the field at op.Path (defaulting to "value"), writing the result back
// under that field's own name on a cloned row — every other column passes
// through untouched (spec §9, copy-on-write).
func runTransform(rows []*Row, op ast.TransformOp) ([]*Row, error) {
	path := valuePathOrDefault(op.Path)
	outName := lastPathSegment(path)

	out := make([]*Row, len(rows))
	for i, r := range rows {
		nr := r.Clone()
		v, ok := navigateOne(r, path)
		if ok {
			v = v.Resolve()
			transformed, err := applyTransform(op.Kind, v, op.Args)
			if err != nil {
				return nil, err
			}
			nr.Set(outName, transformed)
		}
		out[i] = nr
	}
	return out, nil
}

func applyTransform(kind ast.TransformKind, v chunk.Value, args []string) (chunk.Value, error) {
	switch kind {
	case ast.TransformLen:
		return transformLen(v), nil
	case ast.TransformUpper:
		s, _ := v.AsString()
		return chunk.Value{Kind: chunk.KindScalar, Scalar: strings.ToUpper(s)}, nil
	case ast.TransformLower:
		s, _ := v.AsString()
		return chunk.Value{Kind: chunk.KindScalar, Scalar: strings.ToLower(s)}, nil
	case ast.TransformTrim:
		s, _ := v.AsString()
		return chunk.Value{Kind: chunk.KindScalar, Scalar: strings.TrimSpace(s)}, nil
	case ast.TransformAbs:
		f, _ := v.AsFloat64()
		return numericResult(v, math.Abs(f)), nil
	case ast.TransformRound:
		f, _ := v.AsFloat64()
		return numericResult(v, math.Round(f)), nil
	case ast.TransformFloor:
		f, _ := v.AsFloat64()
		return numericResult(v, math.Floor(f)), nil
	case ast.TransformCeil:
		f, _ := v.AsFloat64()
		return numericResult(v, math.Ceil(f)), nil
	case ast.TransformContains:
		if len(args) < 1 {
			return chunk.Value{}, fmt.Errorf("contains() requires a needle argument")
		}
		s, _ := v.AsString()
		return chunk.Value{Kind: chunk.KindScalar, Scalar: strings.Contains(s, args[0])}, nil
	case ast.TransformReplace:
		if len(args) < 2 {
			return chunk.Value{}, fmt.Errorf("replace() requires old and new arguments")
		}
		s, _ := v.AsString()
		return chunk.Value{Kind: chunk.KindScalar, Scalar: strings.ReplaceAll(s, args[0], args[1])}, nil
	default:
		return chunk.Value{}, fmt.Errorf("unknown transform kind %v", kind)
	}
}

// transformLen reports a string's rune count or an array's element count;
// anything else transforms to 0, matching null/type-mismatch propagation
// elsewhere in jfrq (spec §7).
func transformLen(v chunk.Value) chunk.Value {
	switch v.Kind {
	case chunk.KindArray:
		return chunk.Value{Kind: chunk.KindScalar, Scalar: int64(len(v.Array))}
	case chunk.KindScalar:
		if s, ok := v.Scalar.(string); ok {
			return chunk.Value{Kind: chunk.KindScalar, Scalar: int64(len([]rune(s)))}
		}
	}
	return chunk.Value{Kind: chunk.KindScalar, Scalar: int64(0)}
}

// numericResult preserves an originally-integral value's int64 representation
// for round/floor/ceil/abs when f has no fractional part worth keeping as a
// float, matching how JFR integral fields (byte counts, durations) are
// usually consumed downstream.
func numericResult(orig chunk.Value, f float64) chunk.Value {
	if _, ok := orig.Scalar.(int64); ok && f == math.Trunc(f) {
		return chunk.Value{Kind: chunk.KindScalar, Scalar: int64(f)}
	}
	return chunk.Value{Kind: chunk.KindScalar, Scalar: f}
}
