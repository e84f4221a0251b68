package chunk_test

import (
	"os"
	"path/filepath"
	"testing"

	"jfrq/internal/jfr/chunk"
	"jfrq/internal/jfr/chunk/chunktest"
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

func TestOpenSingleChunkStreamEvents(t *testing.T) {
	spec := chunktest.ChunkSpec{
		VersionMajor:  1,
		VersionMinor:  0,
		StartNanos:    1_000_000_000,
		Duration:      500_000_000,
		StartTicks:    0,
		TickFrequency: 1_000_000_000,
		Events: []chunktest.Event{
			{TypeName: "jdk.ExecutionSample", Fields: map[string]chunktest.FieldValue{
				"startTime": chunktest.Long(10),
				"stackTrace": chunktest.Ref("jdk.types.StackTrace", 1),
			}},
			{TypeName: "jdk.ExecutionSample", Fields: map[string]chunktest.FieldValue{
				"startTime": chunktest.Long(20),
				"stackTrace": chunktest.Ref("jdk.types.StackTrace", 2),
			}},
		},
		Types: []chunktest.TypeDef{
			{Name: "jdk.ExecutionSample", Fields: []chunktest.Field{
				{Name: "startTime", TypeName: "long"},
				{Name: "stackTrace", TypeName: "jdk.types.StackTrace", IsConstantRef: true},
			}},
		},
		ConstantPools: map[string][]chunktest.ConstantEntry{
			"jdk.types.StackTrace": {
				{ID: 1, Value: chunktest.Str("frame-a")},
				{ID: 2, Value: chunktest.Str("frame-b")},
			},
		},
	}
	path := writeRecording(t, spec)

	h, err := chunk.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	chunks := h.ListChunks()
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].TickFrequency != 1_000_000_000 {
		t.Fatalf("unexpected tick frequency: %d", chunks[0].TickFrequency)
	}

	var count int
	err = h.StreamEvents(func(typeName string, fields chunk.FieldMap, ctl *chunk.Control) error {
		count++
		if typeName != "jdk.ExecutionSample" {
			t.Fatalf("unexpected type %q", typeName)
		}
		st, ok := fields["stackTrace"]
		if !ok {
			t.Fatalf("missing stackTrace field")
		}
		if st.Kind != chunk.KindReference {
			t.Fatalf("expected stackTrace to stream as an unresolved reference, got kind %v", st.Kind)
		}
		if resolved := st.Resolve(); resolved.Kind != chunk.KindScalar {
			t.Fatalf("expected resolved stackTrace to be a scalar, got kind %v", resolved.Kind)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("StreamEvents: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 events, got %d", count)
	}

	types, err := h.LoadMetadata("jdk.ExecutionSample")
	if err != nil {
		t.Fatalf("LoadMetadata: %v", err)
	}
	if len(types) != 1 || len(types[0].Fields) != 2 {
		t.Fatalf("unexpected metadata: %+v", types)
	}

	summary, err := h.ConstantPoolSummary()
	if err != nil {
		t.Fatalf("ConstantPoolSummary: %v", err)
	}
	if len(summary) != 1 || summary[0].TotalSize != 2 {
		t.Fatalf("unexpected constant pool summary: %+v", summary)
	}
}

func TestStreamEventsAbortStopsEarly(t *testing.T) {
	spec := chunktest.ChunkSpec{
		TickFrequency: 1,
		Events: []chunktest.Event{
			{TypeName: "jdk.GCHeapSummary", Fields: map[string]chunktest.FieldValue{"used": chunktest.Long(1)}},
			{TypeName: "jdk.GCHeapSummary", Fields: map[string]chunktest.FieldValue{"used": chunktest.Long(2)}},
			{TypeName: "jdk.GCHeapSummary", Fields: map[string]chunktest.FieldValue{"used": chunktest.Long(3)}},
		},
	}
	path := writeRecording(t, spec)

	h, err := chunk.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	var count int
	err = h.StreamEvents(func(typeName string, fields chunk.FieldMap, ctl *chunk.Control) error {
		count++
		ctl.Abort()
		return nil
	})
	if err != nil {
		t.Fatalf("StreamEvents: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected abort after first event, got %d events", count)
	}
}

func TestDeclaredEventTypeNamesEmptyWhenNoMetadata(t *testing.T) {
	spec := chunktest.ChunkSpec{TickFrequency: 1}
	path := writeRecording(t, spec)

	h, err := chunk.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	names, err := h.DeclaredEventTypeNames()
	if err != nil {
		t.Fatalf("DeclaredEventTypeNames: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("expected empty set, got %v", names)
	}
}
