// Package predicate evaluates QPath predicates — both the simple
// `path op literal` form and the full boolean-expression form — against a
// decoded chunk.FieldMap row (spec §4.4). It reuses the teacher's
// ExprNode/AndNode/OrNode/NotNode evaluation-tree shape from
// app/query/filter_expr.go, generalized from one opaque literal string per
// leaf to a typed path/operator/literal comparison.
package predicate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"jfrq/internal/jfr/chunk"
	"jfrq/internal/query/ast"
)

// Navigate resolves a "/"-separated path against row, performing automatic
// array-iteration projection (spec §4.3.1): a string segment encountered
// while the current value is an array fans out across every element and
// continues the remaining path on each; an integer segment instead selects
// one element. Constant-pool references are resolved transparently at each
// step. The result is the set of leaf values the path reaches; for a path
// with no arrays along it, this is at most a single-element slice (empty
// when a field along the path is absent).
func Navigate(row chunk.FieldMap, path string) []chunk.Value {
	if path == "" {
		return nil
	}
	segments := strings.Split(path, "/")
	start := chunk.Value{Kind: chunk.KindMap, Map: row}
	return navigate(start, segments)
}

func resolve(v chunk.Value) chunk.Value {
	return v.Resolve()
}

func navigate(v chunk.Value, segments []string) []chunk.Value {
	v = resolve(v)
	if len(segments) == 0 {
		return []chunk.Value{v}
	}
	seg := segments[0]
	rest := segments[1:]

	if v.Kind == chunk.KindArray {
		if idx, err := strconv.Atoi(seg); err == nil {
			if idx < 0 || idx >= len(v.Array) {
				return nil
			}
			return navigate(v.Array[idx], rest)
		}
		// string segment on an array: project across every element (spec §4.3.1)
		var out []chunk.Value
		for _, elem := range v.Array {
			out = append(out, navigate(elem, segments)...)
		}
		return out
	}

	if v.Kind == chunk.KindMap {
		field, ok := v.Map[seg]
		if !ok {
			return nil
		}
		return navigate(field, rest)
	}

	return nil
}

// NavigateOne returns the first value Navigate finds, for contexts (like
// select expressions) that treat a field reference as scalar (spec §4.5.1,
// "same rules as projection, minus recursive array iteration" — a materialized
// row already has arrays flattened into concrete rows by the time select
// expressions run, so a single match is expected).
func NavigateOne(row chunk.FieldMap, path string) (chunk.Value, bool) {
	vs := Navigate(row, path)
	if len(vs) == 0 {
		return chunk.Value{Kind: chunk.KindNull}, false
	}
	return vs[0], true
}

// MatchPredicate evaluates one bracketed predicate against row, honoring its
// match mode when Field's path crosses an array (spec §4.4).
func MatchPredicate(row chunk.FieldMap, p ast.Predicate) (bool, error) {
	if p.Field != nil {
		return matchField(row, p.Mode, *p.Field)
	}
	if p.Expr != nil {
		return evalBoolExpr(row, p.Mode, p.Expr)
	}
	return true, nil
}

func matchField(row chunk.FieldMap, mode ast.MatchMode, fp ast.FieldPredicate) (bool, error) {
	values := Navigate(row, fp.Path)
	return applyMode(mode, values, func(v chunk.Value) (bool, error) {
		return compare(v, fp.Op, fp.Literal)
	})
}

func evalBoolExpr(row chunk.FieldMap, mode ast.MatchMode, expr ast.BoolExpr) (bool, error) {
	switch e := expr.(type) {
	case ast.Cmp:
		return matchField(row, mode, ast.FieldPredicate{Path: e.Path, Op: e.Op, Literal: e.Literal})
	case ast.Logical:
		left, err := evalBoolExpr(row, mode, e.Left)
		if err != nil {
			return false, err
		}
		right, err := evalBoolExpr(row, mode, e.Right)
		if err != nil {
			return false, err
		}
		if e.Op == ast.LogicalAnd {
			return left && right, nil
		}
		return left || right, nil
	case ast.Not:
		inner, err := evalBoolExpr(row, mode, e.Inner)
		if err != nil {
			return false, err
		}
		return !inner, nil
	case ast.FuncBool:
		return evalFuncBool(row, mode, e)
	default:
		return false, fmt.Errorf("predicate: unknown bool expr %T", expr)
	}
}

// applyMode reduces a per-value predicate over values according to mode
// (spec §4.4): ANY is true iff at least one value matches (default, and also
// the vacuous-false result for an empty/absent path); ALL requires every
// value to match and is vacuously true for an empty path; NONE requires no
// value to match and is vacuously true for an empty path.
func applyMode(mode ast.MatchMode, values []chunk.Value, pred func(chunk.Value) (bool, error)) (bool, error) {
	switch mode {
	case ast.MatchAll:
		for _, v := range values {
			ok, err := pred(v)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case ast.MatchNone:
		for _, v := range values {
			ok, err := pred(v)
			if err != nil {
				return false, err
			}
			if ok {
				return false, nil
			}
		}
		return true, nil
	default: // ast.MatchAny
		for _, v := range values {
			ok, err := pred(v)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
}

func compare(v chunk.Value, op ast.CmpOp, lit ast.Literal) (bool, error) {
	if op == ast.CmpRegex {
		s, ok := v.AsString()
		if !ok {
			return false, nil
		}
		pattern, ok := lit.Value.(string)
		if !ok {
			return false, fmt.Errorf("predicate: regex operator requires a string literal")
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Errorf("predicate: invalid regex %q: %w", pattern, err)
		}
		return re.MatchString(s), nil
	}

	if lf, ok := numericLiteral(lit); ok {
		if vf, ok := v.AsFloat64(); ok {
			return compareOrdered(vf, lf, op), nil
		}
	}
	if ls, ok := lit.Value.(string); ok {
		if vs, ok := v.AsString(); ok {
			return compareOrdered(strings.Compare(vs, ls), 0, op), nil
		}
	}
	if lb, ok := lit.Value.(bool); ok {
		if vb, ok := v.Scalar.(bool); ok && v.Kind == chunk.KindScalar {
			eq := vb == lb
			switch op {
			case ast.CmpEq:
				return eq, nil
			case ast.CmpNotEq:
				return !eq, nil
			}
		}
	}
	// type mismatch: only != holds; every other comparison is false
	return op == ast.CmpNotEq, nil
}

func numericLiteral(lit ast.Literal) (float64, bool) {
	switch n := lit.Value.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// compareOrdered works for both float64 and int comparisons via Go generics'
// ordered constraint-free approach: callers pass already-reduced numeric
// operands (float64 for numbers, -1/0/1 for strings via strings.Compare).
func compareOrdered[T int | float64](a, b T, op ast.CmpOp) bool {
	switch op {
	case ast.CmpEq:
		return a == b
	case ast.CmpNotEq:
		return a != b
	case ast.CmpGt:
		return a > b
	case ast.CmpGtEq:
		return a >= b
	case ast.CmpLt:
		return a < b
	case ast.CmpLtEq:
		return a <= b
	default:
		return false
	}
}

// evalFuncBool dispatches the predicate filter-function set: contains,
// starts_with, ends_with, matches, exists, empty, between, len (spec §4.4).
func evalFuncBool(row chunk.FieldMap, mode ast.MatchMode, fb ast.FuncBool) (bool, error) {
	path, rest, err := funcPathArg(fb)
	if err != nil {
		return false, err
	}
	values := Navigate(row, path)

	switch strings.ToLower(fb.Name) {
	case "exists":
		return len(values) > 0, nil
	case "empty":
		if len(values) == 0 {
			return true, nil
		}
		return applyMode(mode, values, func(v chunk.Value) (bool, error) {
			return isEmptyValue(v)
		})
	case "contains":
		needle, err := stringArg(rest, 0)
		if err != nil {
			return false, err
		}
		return applyMode(mode, values, func(v chunk.Value) (bool, error) {
			s, ok := v.AsString()
			return ok && strings.Contains(s, needle), nil
		})
	case "starts_with":
		needle, err := stringArg(rest, 0)
		if err != nil {
			return false, err
		}
		return applyMode(mode, values, func(v chunk.Value) (bool, error) {
			s, ok := v.AsString()
			return ok && strings.HasPrefix(s, needle), nil
		})
	case "ends_with":
		needle, err := stringArg(rest, 0)
		if err != nil {
			return false, err
		}
		return applyMode(mode, values, func(v chunk.Value) (bool, error) {
			s, ok := v.AsString()
			return ok && strings.HasSuffix(s, needle), nil
		})
	case "matches":
		pattern, err := stringArg(rest, 0)
		if err != nil {
			return false, err
		}
		flags := ""
		if len(rest) > 1 {
			flags, _ = stringArg(rest, 1)
		}
		re, err := regexp.Compile(applyRegexFlags(pattern, flags))
		if err != nil {
			return false, fmt.Errorf("predicate: invalid regex %q: %w", pattern, err)
		}
		return applyMode(mode, values, func(v chunk.Value) (bool, error) {
			s, ok := v.AsString()
			return ok && re.MatchString(s), nil
		})
	case "between":
		lo, err := numberArg(rest, 0)
		if err != nil {
			return false, err
		}
		hi, err := numberArg(rest, 1)
		if err != nil {
			return false, err
		}
		return applyMode(mode, values, func(v chunk.Value) (bool, error) {
			f, ok := v.AsFloat64()
			return ok && f >= lo && f <= hi, nil
		})
	case "len":
		// len(path) in a predicate is true whenever the path reaches at
		// least one value. It does not yield a length to compare against,
		// and any arguments after the path are ignored.
		return len(values) > 0, nil
	default:
		return false, fmt.Errorf("predicate: unknown filter function %q", fb.Name)
	}
}

func isEmptyValue(v chunk.Value) (bool, error) {
	v = resolve(v)
	switch v.Kind {
	case chunk.KindNull:
		return true, nil
	case chunk.KindArray:
		return len(v.Array) == 0, nil
	case chunk.KindMap:
		return len(v.Map) == 0, nil
	case chunk.KindScalar:
		s, ok := v.Scalar.(string)
		return ok && s == "", nil
	}
	return false, nil
}

func funcPathArg(fb ast.FuncBool) (path string, rest []ast.Expr, err error) {
	if len(fb.Args) == 0 {
		return "", nil, fmt.Errorf("predicate: %s() requires a path argument", fb.Name)
	}
	ref, ok := fb.Args[0].(ast.FieldRef)
	if !ok {
		return "", nil, fmt.Errorf("predicate: %s()'s first argument must be a field path", fb.Name)
	}
	return ref.Path, fb.Args[1:], nil
}

func stringArg(args []ast.Expr, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("predicate: missing string argument %d", i)
	}
	lit, ok := args[i].(ast.LiteralExpr)
	if !ok {
		return "", fmt.Errorf("predicate: argument %d must be a string literal", i)
	}
	s, ok := lit.Literal.Value.(string)
	if !ok {
		return "", fmt.Errorf("predicate: argument %d must be a string literal", i)
	}
	return s, nil
}

func numberArg(args []ast.Expr, i int) (float64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("predicate: missing numeric argument %d", i)
	}
	lit, ok := args[i].(ast.LiteralExpr)
	if !ok {
		return 0, fmt.Errorf("predicate: argument %d must be numeric", i)
	}
	switch n := lit.Literal.Value.(type) {
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	}
	return 0, fmt.Errorf("predicate: argument %d must be numeric", i)
}

// applyRegexFlags maps matches()'s optional flags string onto Go's inline
// regexp flag syntax; "i" is the only flag spec §4.4 names (case-insensitive).
func applyRegexFlags(pattern, flags string) string {
	if strings.Contains(flags, "i") {
		return "(?i)" + pattern
	}
	return pattern
}
