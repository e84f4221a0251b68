package eval_test

import (
	"os"
	"path/filepath"
	"testing"

	"jfrq/internal/jfr/chunk"
	"jfrq/internal/jfr/chunk/chunktest"
	"jfrq/internal/query/eval"
	"jfrq/internal/query/parse"
)

func openRecording(t *testing.T, specs ...chunktest.ChunkSpec) *chunk.RecordingHandle {
	t.Helper()
	data := chunktest.BuildRecording(specs...)
	path := filepath.Join(t.TempDir(), "recording.jfr")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("os.WriteFile: %v", err)
	}
	h, err := chunk.Open(path)
	if err != nil {
		t.Fatalf("chunk.Open: %v", err)
	}
	return h
}

func fileReadSpec(sizes ...int64) chunktest.ChunkSpec {
	events := make([]chunktest.Event, 0, len(sizes))
	for i, sz := range sizes {
		events = append(events, chunktest.Event{TypeName: "jdk.FileRead", Fields: map[string]chunktest.FieldValue{
			"path":  chunktest.Str("/tmp/file" + string(rune('a'+i))),
			"bytes": chunktest.Long(sz),
		}})
	}
	return chunktest.ChunkSpec{VersionMajor: 1, TickFrequency: 1_000_000_000, Events: events}
}

func TestEvaluateCountMatchesScenario1(t *testing.T) {
	sizes := make([]int64, 12)
	for i := range sizes {
		sizes[i] = int64(i)
	}
	h := openRecording(t, fileReadSpec(sizes...))
	q, err := parse.Parse("events/jdk.FileRead")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rows, err := eval.Evaluate(h, q)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(rows) != 12 {
		t.Fatalf("expected 12 rows, got %d", len(rows))
	}
}

func TestEvaluatePredicateFilterScenario2(t *testing.T) {
	h := openRecording(t, fileReadSpec(512, 2048, 4096))
	q, err := parse.Parse("events/jdk.FileRead[bytes > 1024]")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rows, err := eval.Evaluate(h, q)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
}

func TestEvaluateValuesProjectionScenario3(t *testing.T) {
	spec := chunktest.ChunkSpec{
		VersionMajor: 1, TickFrequency: 1_000_000_000,
		Events: []chunktest.Event{
			{TypeName: "jdk.ExecutionSample", Fields: map[string]chunktest.FieldValue{
				"sampledThread": chunktest.Map(map[string]chunktest.FieldValue{"javaName": chunktest.Str("main")}),
			}},
			{TypeName: "jdk.ExecutionSample", Fields: map[string]chunktest.FieldValue{
				"sampledThread": chunktest.Map(map[string]chunktest.FieldValue{"javaName": chunktest.Str("main")}),
			}},
			{TypeName: "jdk.ExecutionSample", Fields: map[string]chunktest.FieldValue{
				"sampledThread": chunktest.Map(map[string]chunktest.FieldValue{"javaName": chunktest.Str("worker-1")}),
			}},
		},
	}
	h := openRecording(t, spec)
	q, err := parse.Parse("events/jdk.ExecutionSample/sampledThread/javaName")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	values, err := eval.EvaluateValues(h, q)
	if err != nil {
		t.Fatalf("EvaluateValues: %v", err)
	}
	if len(values) != 3 {
		t.Fatalf("expected 3 values, got %d", len(values))
	}
	want := []string{"main", "main", "worker-1"}
	for i, v := range values {
		s, ok := v.AsString()
		if !ok || s != want[i] {
			t.Fatalf("value %d: expected %q, got %v", i, want[i], v)
		}
	}
}

func TestEvaluateRegexPredicateScenario6(t *testing.T) {
	spec := chunktest.ChunkSpec{
		VersionMajor: 1, TickFrequency: 1_000_000_000,
		Events: []chunktest.Event{
			{TypeName: "jdk.FileRead", Fields: map[string]chunktest.FieldValue{"path": chunktest.Str("/tmp/a")}},
			{TypeName: "jdk.FileRead", Fields: map[string]chunktest.FieldValue{"path": chunktest.Str("/var/b")}},
			{TypeName: "jdk.FileRead", Fields: map[string]chunktest.FieldValue{"path": chunktest.Str("/tmp/c")}},
		},
	}
	h := openRecording(t, spec)
	q, err := parse.Parse(`events/jdk.FileRead[path =~ "/tmp/.*"]`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rows, err := eval.Evaluate(h, q)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
}

func TestEvaluateWithLimitAbortsEarly(t *testing.T) {
	sizes := make([]int64, 50)
	h := openRecording(t, fileReadSpec(sizes...))
	q, err := parse.Parse("events/jdk.FileRead")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rows, err := eval.EvaluateWithLimit(h, q, 5)
	if err != nil {
		t.Fatalf("EvaluateWithLimit: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(rows))
	}
}

func TestEvaluateUnknownEventTypeSuggestsDeclaredName(t *testing.T) {
	spec := chunktest.ChunkSpec{
		VersionMajor: 1, TickFrequency: 1_000_000_000,
		Events: []chunktest.Event{
			{TypeName: "jdk.FileRead", Fields: map[string]chunktest.FieldValue{"path": chunktest.Str("/tmp/a")}},
		},
		Types: []chunktest.TypeDef{
			{Name: "jdk.FileRead", Fields: []chunktest.Field{{Name: "path", TypeName: "string"}}},
		},
	}
	h := openRecording(t, spec)
	q, err := parse.Parse("events/jdk.FileReed")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err = eval.Evaluate(h, q)
	if err == nil {
		t.Fatalf("expected unknown event type error")
	}
	ue, ok := err.(*eval.UnknownEventTypeError)
	if !ok {
		t.Fatalf("expected *UnknownEventTypeError, got %T", err)
	}
	if ue.Suggestion != "jdk.FileRead" {
		t.Fatalf("expected suggestion jdk.FileRead, got %q", ue.Suggestion)
	}
}

func TestEvaluateMultiTypeUnion(t *testing.T) {
	spec := chunktest.ChunkSpec{
		VersionMajor: 1, TickFrequency: 1_000_000_000,
		Events: []chunktest.Event{
			{TypeName: "jdk.A", Fields: map[string]chunktest.FieldValue{}},
			{TypeName: "jdk.B", Fields: map[string]chunktest.FieldValue{}},
			{TypeName: "jdk.C", Fields: map[string]chunktest.FieldValue{}},
		},
	}
	h := openRecording(t, spec)
	q, err := parse.Parse("events/jdk.A,jdk.B")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rows, err := eval.Evaluate(h, q)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
}
