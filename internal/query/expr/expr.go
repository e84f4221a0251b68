// Package expr evaluates the select-expression sub-language (spec §4.5.1):
// literals, field references, arithmetic with string-concatenation
// overload, the fixed function set (if/upper/lower/substring/length/
// coalesce), and pre-parsed string templates.
package expr

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"jfrq/internal/jfr/chunk"
	"jfrq/internal/query/ast"
	"jfrq/internal/query/predicate"
)

// Eval evaluates e against a materialized row (spec §4.5.1: field
// references navigate the row using projection's rules minus recursive
// array iteration — a materialized row's arrays propagate as-is).
func Eval(row chunk.FieldMap, e ast.Expr) (chunk.Value, error) {
	switch n := e.(type) {
	case ast.LiteralExpr:
		return literalValue(n.Literal), nil

	case ast.FieldRef:
		v, ok := predicate.NavigateOne(row, n.Path)
		if !ok {
			return chunk.Value{Kind: chunk.KindNull}, nil
		}
		return v.Resolve(), nil

	case ast.Binary:
		left, err := Eval(row, n.Left)
		if err != nil {
			return chunk.Value{}, err
		}
		right, err := Eval(row, n.Right)
		if err != nil {
			return chunk.Value{}, err
		}
		return evalBinary(n.Op, left, right), nil

	case ast.Func:
		return evalFunc(row, n)

	case ast.StringTemplate:
		return evalTemplate(row, n)

	default:
		return chunk.Value{}, fmt.Errorf("expr: unknown expression node %T", e)
	}
}

func literalValue(lit ast.Literal) chunk.Value {
	if lit.Value == nil {
		return chunk.Value{Kind: chunk.KindNull}
	}
	return chunk.Value{Kind: chunk.KindScalar, Scalar: lit.Value}
}

// evalBinary implements spec §4.5.1's arithmetic/concatenation rules: `+` is
// string concatenation when either operand is a string, numeric otherwise;
// `-`/`*`/`/` are always numeric; division by zero yields NaN, not an error.
func evalBinary(op ast.BinOp, left, right chunk.Value) chunk.Value {
	if op == ast.BinAdd && (isString(left) || isString(right)) {
		return chunk.Value{Kind: chunk.KindScalar, Scalar: coerceString(left) + coerceString(right)}
	}
	l, r := coerceNumber(left), coerceNumber(right)
	var result float64
	switch op {
	case ast.BinAdd:
		result = l + r
	case ast.BinSub:
		result = l - r
	case ast.BinMul:
		result = l * r
	case ast.BinDiv:
		if r == 0 {
			result = math.NaN()
		} else {
			result = l / r
		}
	}
	return chunk.Value{Kind: chunk.KindScalar, Scalar: result}
}

func isString(v chunk.Value) bool {
	_, ok := v.Scalar.(string)
	return v.Kind == chunk.KindScalar && ok
}

// coerceNumber implements spec §4.5.1's numeric coercion: null -> 0.0,
// strings parsed as double (non-parseable -> 0.0), numbers pass through.
func coerceNumber(v chunk.Value) float64 {
	if v.Kind == chunk.KindNull {
		return 0
	}
	if f, ok := v.AsFloat64(); ok {
		return f
	}
	if s, ok := v.Scalar.(string); ok && v.Kind == chunk.KindScalar {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

// coerceString stringifies a value for `+` concatenation; nulls stringify
// to empty (spec §4.5.1, matching string-template interleaving).
func coerceString(v chunk.Value) string {
	if v.Kind == chunk.KindNull {
		return ""
	}
	if s, ok := v.AsString(); ok {
		return s
	}
	return ""
}

// truthy implements if()'s condition coercion (spec §4.5.1).
func truthy(v chunk.Value) bool {
	switch v.Kind {
	case chunk.KindNull:
		return false
	case chunk.KindScalar:
		switch s := v.Scalar.(type) {
		case bool:
			return s
		case int64:
			return s != 0
		case float64:
			return s != 0
		case string:
			return s != ""
		}
	}
	return true
}

func evalFunc(row chunk.FieldMap, f ast.Func) (chunk.Value, error) {
	args := make([]chunk.Value, len(f.Args))
	for i, a := range f.Args {
		v, err := Eval(row, a)
		if err != nil {
			return chunk.Value{}, err
		}
		args[i] = v
	}

	switch strings.ToLower(f.Name) {
	case "if":
		if len(args) != 3 {
			return chunk.Value{}, fmt.Errorf("expr: if() requires 3 arguments, got %d", len(args))
		}
		if truthy(args[0]) {
			return args[1], nil
		}
		return args[2], nil

	case "upper":
		return chunk.Value{Kind: chunk.KindScalar, Scalar: strings.ToUpper(coerceString(arg(args, 0)))}, nil

	case "lower":
		return chunk.Value{Kind: chunk.KindScalar, Scalar: strings.ToLower(coerceString(arg(args, 0)))}, nil

	case "substring":
		return evalSubstring(args)

	case "length":
		return chunk.Value{Kind: chunk.KindScalar, Scalar: int64(len([]rune(coerceString(arg(args, 0)))))}, nil

	case "coalesce":
		for _, a := range args {
			if a.Kind != chunk.KindNull {
				return a, nil
			}
		}
		return chunk.Value{Kind: chunk.KindNull}, nil

	default:
		return chunk.Value{}, fmt.Errorf("expr: unknown function %q", f.Name)
	}
}

func arg(args []chunk.Value, i int) chunk.Value {
	if i >= len(args) {
		return chunk.Value{Kind: chunk.KindNull}
	}
	return args[i]
}

// evalSubstring implements substring(s, start[, length]) with the end
// clamped to len(s) (spec §4.5.1).
func evalSubstring(args []chunk.Value) (chunk.Value, error) {
	if len(args) < 2 {
		return chunk.Value{}, fmt.Errorf("expr: substring() requires at least 2 arguments")
	}
	s := []rune(coerceString(args[0]))
	start := int(coerceNumber(args[1]))
	if start < 0 {
		start = 0
	}
	if start > len(s) {
		start = len(s)
	}
	end := len(s)
	if len(args) >= 3 {
		length := int(coerceNumber(args[2]))
		if start+length < end {
			end = start + length
		}
	}
	return chunk.Value{Kind: chunk.KindScalar, Scalar: string(s[start:end])}, nil
}

// evalTemplate interleaves parts and stringified expressions; it never
// re-parses the template (spec §4.5.1/§9 — parsing happened once, at parse
// time, into (parts, exprs)).
func evalTemplate(row chunk.FieldMap, t ast.StringTemplate) (chunk.Value, error) {
	var sb strings.Builder
	sb.WriteString(t.Parts[0])
	for i, e := range t.Exprs {
		v, err := Eval(row, e)
		if err != nil {
			return chunk.Value{}, err
		}
		sb.WriteString(stringifyForTemplate(v))
		sb.WriteString(t.Parts[i+1])
	}
	return chunk.Value{Kind: chunk.KindScalar, Scalar: sb.String()}, nil
}

func stringifyForTemplate(v chunk.Value) string {
	if v.Kind == chunk.KindNull {
		return ""
	}
	if s, ok := v.AsString(); ok {
		return s
	}
	return fmt.Sprintf("%v", v.Scalar)
}
