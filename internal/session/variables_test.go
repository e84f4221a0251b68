package session_test

import (
	"testing"

	"jfrq/internal/query/ast"
	"jfrq/internal/session"
)

func TestVariableSetAndApplyPipeline(t *testing.T) {
	path := writeRecording(t, fileReadSpec(10, 20, 30))
	s, err := session.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	store := session.NewVariableStore()
	v, err := s.Set(store, "reads", "events/jdk.FileRead")
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(v.Rows) != 3 {
		t.Fatalf("expected 3 rows bound to $reads, got %d", len(v.Rows))
	}

	got, ok := store.Get("reads")
	if !ok || len(got.Rows) != 3 {
		t.Fatalf("expected Get to return the bound variable, got %+v ok=%v", got, ok)
	}

	rows, err := s.ApplyPipeline(store, "reads", []ast.PipelineOp{ast.CountOp{}})
	if err != nil {
		t.Fatalf("ApplyPipeline: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected count() to collapse to 1 row, got %d", len(rows))
	}

	rebound, ok := store.Get("reads")
	if !ok || len(rebound.Rows) != 1 {
		t.Fatalf("expected $reads rebound to the counted result, got %+v", rebound)
	}
}

func TestVariableStoreDeleteAndClear(t *testing.T) {
	store := session.NewVariableStore()
	path := writeRecording(t, fileReadSpec(10))
	s, err := session.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Set(store, "a", "events/jdk.FileRead"); err != nil {
		t.Fatalf("Set a: %v", err)
	}
	if _, err := s.Set(store, "b", "events/jdk.FileRead"); err != nil {
		t.Fatalf("Set b: %v", err)
	}
	if names := store.Names(); len(names) != 2 {
		t.Fatalf("expected 2 bound names, got %v", names)
	}

	store.Delete("a")
	if _, ok := store.Get("a"); ok {
		t.Fatalf("expected $a to be gone after Delete")
	}
	if names := store.Names(); len(names) != 1 || names[0] != "b" {
		t.Fatalf("expected only $b to remain, got %v", names)
	}

	store.Clear()
	if names := store.Names(); len(names) != 0 {
		t.Fatalf("expected Clear to empty the store, got %v", names)
	}
}

func TestApplyPipelineUnknownVariableErrors(t *testing.T) {
	path := writeRecording(t, fileReadSpec(10))
	s, err := session.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	store := session.NewVariableStore()
	if _, err := s.ApplyPipeline(store, "missing", nil); err == nil {
		t.Fatalf("expected an error for an unbound variable")
	}
}
