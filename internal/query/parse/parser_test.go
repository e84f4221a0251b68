package parse

import (
	"testing"

	"jfrq/internal/query/ast"
)

func TestParseSimpleCountQuery(t *testing.T) {
	q, err := Parse("events/jdk.FileRead | count()")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if q.Root != ast.RootEvents {
		t.Fatalf("expected events root, got %v", q.Root)
	}
	if len(q.EventTypes) != 1 || q.EventTypes[0] != "jdk.FileRead" {
		t.Fatalf("unexpected event types: %v", q.EventTypes)
	}
	if len(q.Pipeline) != 1 {
		t.Fatalf("expected 1 pipeline op, got %d", len(q.Pipeline))
	}
	if _, ok := q.Pipeline[0].(ast.CountOp); !ok {
		t.Fatalf("expected CountOp, got %T", q.Pipeline[0])
	}
}

func TestParseFieldPredicateAndSum(t *testing.T) {
	q, err := Parse(`events/jdk.FileRead[bytes > 1024] | sum(bytes)`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(q.Predicates) != 1 {
		t.Fatalf("expected 1 predicate, got %d", len(q.Predicates))
	}
	fp := q.Predicates[0].Field
	if fp == nil || fp.Path != "bytes" || fp.Op != ast.CmpGt {
		t.Fatalf("unexpected field predicate: %+v", fp)
	}
	if fp.Literal.Value.(int64) != 1024 {
		t.Fatalf("unexpected literal: %v", fp.Literal.Value)
	}
	sum, ok := q.Pipeline[0].(ast.SumOp)
	if !ok || sum.Path != "bytes" {
		t.Fatalf("unexpected sum op: %+v", q.Pipeline[0])
	}
}

func TestParseMultiEventTypeUnion(t *testing.T) {
	q, err := Parse("events/jdk.A,jdk.B | count()")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(q.EventTypes) != 2 || q.EventTypes[1] != "jdk.B" {
		t.Fatalf("unexpected event types: %v", q.EventTypes)
	}
}

func TestParseProjectionSegments(t *testing.T) {
	q, err := Parse("events/jdk.ExecutionSample/sampledThread/javaName")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(q.Segments) != 2 || q.Segments[0].Name != "sampledThread" || q.Segments[1].Name != "javaName" {
		t.Fatalf("unexpected segments: %+v", q.Segments)
	}
}

func TestParseGroupByAndSelectWithAlias(t *testing.T) {
	q, err := Parse(`events/jdk.ExecutionSample | groupBy(sampledThread/javaName)`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	gb, ok := q.Pipeline[0].(ast.GroupByOp)
	if !ok || gb.KeyPath != "sampledThread/javaName" {
		t.Fatalf("unexpected groupBy op: %+v", q.Pipeline[0])
	}

	q2, err := Parse(`events/jdk.FileRead | select(path, bytes/1024 as kb)`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sel, ok := q2.Pipeline[0].(ast.SelectOp)
	if !ok || len(sel.Items) != 2 {
		t.Fatalf("unexpected select op: %+v", q2.Pipeline[0])
	}
	if sel.Items[0].Path != "path" || sel.Items[0].Alias != "" {
		t.Fatalf("unexpected first select item: %+v", sel.Items[0])
	}
	if sel.Items[1].Alias != "kb" {
		t.Fatalf("unexpected alias: %+v", sel.Items[1])
	}
	bin, ok := sel.Items[1].Expr.(ast.Binary)
	if !ok || bin.Op != ast.BinDiv {
		t.Fatalf("unexpected select expr: %+v", sel.Items[1].Expr)
	}
}

func TestParseRegexPredicate(t *testing.T) {
	q, err := Parse(`events/jdk.FileRead[path =~ "/tmp/.*"]`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	fp := q.Predicates[0].Field
	if fp == nil || fp.Op != ast.CmpRegex {
		t.Fatalf("expected regex predicate, got %+v", fp)
	}
}

func TestParseMatchModePrefix(t *testing.T) {
	q, err := Parse(`events/jdk.ExecutionSample[all: stackTrace/frames/bytecodeIndex >= 0]`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if q.Predicates[0].Mode != ast.MatchAll {
		t.Fatalf("expected ALL match mode, got %v", q.Predicates[0].Mode)
	}
}

func TestParseLogicalExpression(t *testing.T) {
	q, err := Parse(`events/jdk.FileRead[bytes > 1024 and path =~ "/tmp/.*"]`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	logical, ok := q.Predicates[0].Expr.(ast.Logical)
	if !ok || logical.Op != ast.LogicalAnd {
		t.Fatalf("unexpected predicate expr: %+v", q.Predicates[0].Expr)
	}
}

func TestParseSyntaxErrorHasPosition(t *testing.T) {
	_, err := Parse("events/jdk.FileRead[bytes >]")
	if err == nil {
		t.Fatalf("expected syntax error")
	}
	se, ok := err.(*SyntaxError)
	if !ok {
		t.Fatalf("expected *SyntaxError, got %T", err)
	}
	if se.Position == 0 {
		t.Fatalf("expected non-zero error position")
	}
}

func TestParseDecorateByTime(t *testing.T) {
	q, err := Parse(`events/jdk.ExecutionSample | decorateByTime(jdk.ThreadPark, fields=delay)`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	d, ok := q.Pipeline[0].(ast.DecorateByTimeOp)
	if !ok || d.DecoratorType != "jdk.ThreadPark" || len(d.Fields) != 1 || d.Fields[0] != "delay" {
		t.Fatalf("unexpected decorateByTime op: %+v", q.Pipeline[0])
	}
}
