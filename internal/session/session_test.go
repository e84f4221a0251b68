package session_test

import (
	"os"
	"path/filepath"
	"testing"

	"jfrq/internal/jfr/chunk/chunktest"
	"jfrq/internal/session"
)

func writeRecording(t *testing.T, specs ...chunktest.ChunkSpec) string {
	t.Helper()
	data := chunktest.BuildRecording(specs...)
	path := filepath.Join(t.TempDir(), "recording.jfr")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("os.WriteFile: %v", err)
	}
	return path
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

func TestOpenReportsRecordingPath(t *testing.T) {
	path := writeRecording(t, fileReadSpec(10, 20))
	s, err := session.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := s.RecordingPath(); got != path {
		t.Fatalf("RecordingPath() = %q, want %q", got, path)
	}
}

func TestAvailableEventTypesIncludesDeclaredEvents(t *testing.T) {
	path := writeRecording(t, fileReadSpec(10))
	s, err := session.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	types, err := s.AvailableEventTypes()
	if err != nil {
		t.Fatalf("AvailableEventTypes: %v", err)
	}
	if _, ok := types["jdk.FileRead"]; !ok {
		t.Fatalf("expected jdk.FileRead in available event types, got %v", types)
	}
}

func TestEvaluateCachesSecondCall(t *testing.T) {
	path := writeRecording(t, fileReadSpec(10, 20, 30))
	s, err := session.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	rows, err := s.Evaluate("events/jdk.FileRead")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	cached, err := s.Evaluate("events/jdk.FileRead")
	if err != nil {
		t.Fatalf("Evaluate (cached): %v", err)
	}
	if len(cached) != 3 {
		t.Fatalf("expected 3 cached rows, got %d", len(cached))
	}

	if n := s.InvalidateCache(); n == 0 {
		t.Fatalf("expected InvalidateCache to drop at least one entry")
	}
}

func TestEvaluatePropagatesParseErrors(t *testing.T) {
	path := writeRecording(t, fileReadSpec(10))
	s, err := session.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Evaluate("not a valid query ["); err == nil {
		t.Fatalf("expected an error for an invalid query")
	}
}

func TestApplyToRowsWithNoOpsPassesRowsThrough(t *testing.T) {
	path := writeRecording(t, fileReadSpec(10, 20))
	s, err := session.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rows, err := s.Evaluate("events/jdk.FileRead | count()")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	again, err := s.ApplyToRows(rows, nil)
	if err != nil {
		t.Fatalf("ApplyToRows: %v", err)
	}
	if len(again) != len(rows) {
		t.Fatalf("expected ApplyToRows with no ops to pass rows through unchanged, got %d rows", len(again))
	}
}
