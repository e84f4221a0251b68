package expr

import (
	"math"
	"testing"

	"jfrq/internal/jfr/chunk"
	"jfrq/internal/query/ast"
)

func scalar(v interface{}) chunk.Value { return chunk.Value{Kind: chunk.KindScalar, Scalar: v} }

func mustEval(t *testing.T, row chunk.FieldMap, e ast.Expr) chunk.Value {
	t.Helper()
	v, err := Eval(row, e)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	return v
}

func TestEvalSelectDivisionScenario5(t *testing.T) {
	row := chunk.FieldMap{"bytes": scalar(int64(2048))}
	e := ast.Binary{Op: ast.BinDiv, Left: ast.FieldRef{Path: "bytes"}, Right: ast.LiteralExpr{Literal: ast.Literal{Value: int64(1024)}}}
	v := mustEval(t, row, e)
	f, ok := v.AsFloat64()
	if !ok || f != 2.0 {
		t.Fatalf("expected 2.0, got %v", v)
	}
}

func TestEvalStringConcatOverload(t *testing.T) {
	row := chunk.FieldMap{"name": scalar("thread")}
	e := ast.Binary{Op: ast.BinAdd, Left: ast.FieldRef{Path: "name"}, Right: ast.LiteralExpr{Literal: ast.Literal{Value: "-1"}}}
	v := mustEval(t, row, e)
	s, ok := v.AsString()
	if !ok || s != "thread-1" {
		t.Fatalf("expected thread-1, got %v", v)
	}
}

func TestEvalDivisionByZeroYieldsNaN(t *testing.T) {
	e := ast.Binary{Op: ast.BinDiv, Left: ast.LiteralExpr{Literal: ast.Literal{Value: int64(1)}}, Right: ast.LiteralExpr{Literal: ast.Literal{Value: int64(0)}}}
	v := mustEval(t, nil, e)
	f, _ := v.AsFloat64()
	if !math.IsNaN(f) {
		t.Fatalf("expected NaN, got %v", f)
	}
}

func TestEvalIfFunction(t *testing.T) {
	row := chunk.FieldMap{"bytes": scalar(int64(5000))}
	e := ast.Func{Name: "if", Args: []ast.Expr{
		ast.Binary{Op: ast.BinSub, Left: ast.FieldRef{Path: "bytes"}, Right: ast.LiteralExpr{Literal: ast.Literal{Value: int64(1024)}}},
		ast.LiteralExpr{Literal: ast.Literal{Value: "big"}},
		ast.LiteralExpr{Literal: ast.Literal{Value: "small"}},
	}}
	v := mustEval(t, row, e)
	s, _ := v.AsString()
	if s != "big" {
		t.Fatalf("expected big, got %v", v)
	}
}

func TestEvalCoalesceSkipsNulls(t *testing.T) {
	e := ast.Func{Name: "coalesce", Args: []ast.Expr{
		ast.FieldRef{Path: "missing"},
		ast.LiteralExpr{Literal: ast.Literal{Value: "fallback"}},
	}}
	v := mustEval(t, chunk.FieldMap{}, e)
	s, ok := v.AsString()
	if !ok || s != "fallback" {
		t.Fatalf("expected fallback, got %v", v)
	}
}

func TestEvalSubstringClampsEnd(t *testing.T) {
	e := ast.Func{Name: "substring", Args: []ast.Expr{
		ast.LiteralExpr{Literal: ast.Literal{Value: "hello"}},
		ast.LiteralExpr{Literal: ast.Literal{Value: int64(2)}},
		ast.LiteralExpr{Literal: ast.Literal{Value: int64(100)}},
	}}
	v := mustEval(t, chunk.FieldMap{}, e)
	s, _ := v.AsString()
	if s != "llo" {
		t.Fatalf("expected llo, got %v", v)
	}
}

func TestEvalStringTemplate(t *testing.T) {
	row := chunk.FieldMap{"name": scalar("worker"), "n": scalar(int64(3))}
	tmpl := ast.StringTemplate{
		Parts: []string{"thread:", " (#", ")"},
		Exprs: []ast.Expr{ast.FieldRef{Path: "name"}, ast.FieldRef{Path: "n"}},
	}
	v := mustEval(t, row, tmpl)
	s, _ := v.AsString()
	if s != "thread:worker (#3)" {
		t.Fatalf("unexpected template result: %q", s)
	}
}

func TestEvalNullCoercesToZeroForArithmetic(t *testing.T) {
	e := ast.Binary{Op: ast.BinAdd, Left: ast.FieldRef{Path: "missing"}, Right: ast.LiteralExpr{Literal: ast.Literal{Value: int64(5)}}}
	v := mustEval(t, chunk.FieldMap{}, e)
	f, ok := v.AsFloat64()
	if !ok || f != 5 {
		t.Fatalf("expected 5, got %v", v)
	}
}
