package pipeline_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"jfrq/internal/jfr/chunk"
	"jfrq/internal/jfr/chunk/chunktest"
	"jfrq/internal/query/ast"
	"jfrq/internal/query/eval"
	"jfrq/internal/query/parse"
	"jfrq/internal/query/pipeline"
)

func fm(n int64) chunk.FieldMap {
	return chunk.FieldMap{"value": chunk.Value{Kind: chunk.KindScalar, Scalar: n}}
}

func valueRows(ns ...int64) []*pipeline.Row {
	fms := make([]chunk.FieldMap, len(ns))
	for i, n := range ns {
		fms[i] = fm(n)
	}
	return pipeline.FromFieldMaps(fms)
}

func getScalar(t *testing.T, r *pipeline.Row, key string) interface{} {
	t.Helper()
	v, ok := r.Get(key)
	if !ok {
		t.Fatalf("missing column %q", key)
	}
	return v.Scalar
}

func TestRunCount(t *testing.T) {
	rows := valueRows(1, 2, 3)
	out, err := pipeline.Run(nil, rows, []ast.PipelineOp{ast.CountOp{}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 row, got %d", len(out))
	}
	if getScalar(t, out[0], "count") != int64(3) {
		t.Fatalf("expected count=3, got %v", getScalar(t, out[0], "count"))
	}
}

func TestRunSumAndStats(t *testing.T) {
	rows := valueRows(1, 2, 3, 4)
	out, err := pipeline.Run(nil, rows, []ast.PipelineOp{ast.SumOp{}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if getScalar(t, out[0], "sum") != float64(10) {
		t.Fatalf("expected sum=10, got %v", getScalar(t, out[0], "sum"))
	}

	out, err = pipeline.Run(nil, rows, []ast.PipelineOp{ast.StatsOp{}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if getScalar(t, out[0], "min") != float64(1) || getScalar(t, out[0], "max") != float64(4) {
		t.Fatalf("unexpected stats row: min=%v max=%v", getScalar(t, out[0], "min"), getScalar(t, out[0], "max"))
	}
}

func TestRunQuantilesMedianEvenCountAverages(t *testing.T) {
	rows := valueRows(1, 2, 3, 4)
	out, err := pipeline.Run(nil, rows, []ast.PipelineOp{ast.QuantilesOp{Quantiles: []float64{0.5}}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if getScalar(t, out[0], "p50") != float64(2.5) {
		t.Fatalf("expected p50=2.5, got %v", getScalar(t, out[0], "p50"))
	}
}

func TestRunSketchComposesStatsAndQuantiles(t *testing.T) {
	rows := valueRows(1, 2, 3, 4, 5)
	out, err := pipeline.Run(nil, rows, []ast.PipelineOp{ast.SketchOp{}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, col := range []string{"count", "min", "max", "avg", "stddev", "p50", "p90", "p99"} {
		if _, ok := out[0].Get(col); !ok {
			t.Fatalf("sketch row missing column %q", col)
		}
	}
}

func groupByFixture() []*pipeline.Row {
	fms := []chunk.FieldMap{
		{"host": chunk.Value{Kind: chunk.KindScalar, Scalar: "b"}, "value": chunk.Value{Kind: chunk.KindScalar, Scalar: int64(1)}},
		{"host": chunk.Value{Kind: chunk.KindScalar, Scalar: "a"}, "value": chunk.Value{Kind: chunk.KindScalar, Scalar: int64(2)}},
		{"host": chunk.Value{Kind: chunk.KindScalar, Scalar: "b"}, "value": chunk.Value{Kind: chunk.KindScalar, Scalar: int64(3)}},
	}
	return pipeline.FromFieldMaps(fms)
}

func TestRunGroupByDefaultsToFirstSeenOrder(t *testing.T) {
	rows := groupByFixture()
	out, err := pipeline.Run(nil, rows, []ast.PipelineOp{ast.GroupByOp{KeyPath: "host", Agg: ast.AggSum, ValuePath: "value"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(out))
	}
	if getScalar(t, out[0], "key") != "b" || getScalar(t, out[1], "key") != "a" {
		t.Fatalf("expected first-seen order [b, a], got [%v, %v]", getScalar(t, out[0], "key"), getScalar(t, out[1], "key"))
	}
	if getScalar(t, out[0], "sum") != float64(4) {
		t.Fatalf("expected group b sum=4, got %v", getScalar(t, out[0], "sum"))
	}
}

func TestRunGroupBySortByKey(t *testing.T) {
	rows := groupByFixture()
	out, err := pipeline.Run(nil, rows, []ast.PipelineOp{ast.GroupByOp{KeyPath: "host", Agg: ast.AggCount, SortBy: "key", Asc: true}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if getScalar(t, out[0], "key") != "a" || getScalar(t, out[1], "key") != "b" {
		t.Fatalf("expected sorted order [a, b], got [%v, %v]", getScalar(t, out[0], "key"), getScalar(t, out[1], "key"))
	}
}

func TestRunTopClampsAndSorts(t *testing.T) {
	rows := valueRows(5, 1, 9, 3)
	out, err := pipeline.Run(nil, rows, []ast.PipelineOp{ast.TopOp{N: 2, By: "value"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(out))
	}
	if getScalar(t, out[0], "value") != int64(9) || getScalar(t, out[1], "value") != int64(5) {
		t.Fatalf("unexpected top order: %v, %v", getScalar(t, out[0], "value"), getScalar(t, out[1], "value"))
	}
}

func TestRunSortByAscending(t *testing.T) {
	rows := valueRows(5, 1, 9, 3)
	out, err := pipeline.Run(nil, rows, []ast.PipelineOp{ast.SortByOp{Field: "value", Asc: true}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []int64{1, 3, 5, 9}
	for i, w := range want {
		if getScalar(t, out[i], "value") != w {
			t.Fatalf("position %d: expected %d, got %v", i, w, getScalar(t, out[i], "value"))
		}
	}
}

func TestRunSelectFieldAndExpression(t *testing.T) {
	rows := valueRows(10)
	out, err := pipeline.Run(nil, rows, []ast.PipelineOp{ast.SelectOp{Items: []ast.SelectItem{
		{Path: "value"},
		{Expr: ast.Binary{Op: ast.BinMul, Left: ast.FieldRef{Path: "value"}, Right: ast.LiteralExpr{Literal: ast.Literal{Value: int64(2)}}}, Alias: "doubled"},
	}}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if getScalar(t, out[0], "value") != int64(10) {
		t.Fatalf("expected value=10, got %v", getScalar(t, out[0], "value"))
	}
	if getScalar(t, out[0], "doubled") != float64(20) {
		t.Fatalf("expected doubled=20, got %v", getScalar(t, out[0], "doubled"))
	}
}

func TestRunSelectRequiresAliasForExpressions(t *testing.T) {
	rows := valueRows(1)
	_, err := pipeline.Run(nil, rows, []ast.PipelineOp{ast.SelectOp{Items: []ast.SelectItem{
		{Expr: ast.LiteralExpr{Literal: ast.Literal{Value: int64(1)}}},
	}}})
	if err == nil {
		t.Fatalf("expected an error for an unaliased expression item")
	}
}

func TestRunSelectJSONPathSuffix(t *testing.T) {
	fms := []chunk.FieldMap{
		{"requestParameters": chunk.Value{Kind: chunk.KindScalar, Scalar: `{"durationSeconds": 42}`}},
	}
	rows := pipeline.FromFieldMaps(fms)
	out, err := pipeline.Run(nil, rows, []ast.PipelineOp{ast.SelectOp{Items: []ast.SelectItem{
		{Path: "requestParameters{$.durationSeconds}", Alias: "duration"},
	}}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if getScalar(t, out[0], "duration") != int64(42) {
		t.Fatalf("expected duration=42, got %v", getScalar(t, out[0], "duration"))
	}
}

func TestRunToMapDropsNullKeysAndKeepsLastValue(t *testing.T) {
	fms := []chunk.FieldMap{
		{"k": chunk.Value{Kind: chunk.KindScalar, Scalar: "a"}, "v": chunk.Value{Kind: chunk.KindScalar, Scalar: int64(1)}},
		{"k": chunk.Value{Kind: chunk.KindNull}, "v": chunk.Value{Kind: chunk.KindScalar, Scalar: int64(2)}},
		{"k": chunk.Value{Kind: chunk.KindScalar, Scalar: "a"}, "v": chunk.Value{Kind: chunk.KindScalar, Scalar: int64(3)}},
	}
	rows := pipeline.FromFieldMaps(fms)
	out, err := pipeline.Run(nil, rows, []ast.PipelineOp{ast.ToMapOp{KeyField: "k", ValueField: "v"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	mv, ok := out[0].Get("map")
	if !ok {
		t.Fatalf("expected a map column")
	}
	if len(mv.Map) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(mv.Map))
	}
	if mv.Map["a"].Scalar != int64(3) {
		t.Fatalf("expected last-write-wins value 3, got %v", mv.Map["a"].Scalar)
	}
}

func TestRunTransformContainsAndReplace(t *testing.T) {
	fms := []chunk.FieldMap{
		{"value": chunk.Value{Kind: chunk.KindScalar, Scalar: "hello world"}},
	}
	rows := pipeline.FromFieldMaps(fms)
	out, err := pipeline.Run(nil, rows, []ast.PipelineOp{ast.TransformOp{Kind: ast.TransformContains, Args: []string{"world"}}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if getScalar(t, out[0], "value") != true {
		t.Fatalf("expected contains() to report true, got %v", getScalar(t, out[0], "value"))
	}

	out, err = pipeline.Run(nil, rows, []ast.PipelineOp{ast.TransformOp{Kind: ast.TransformReplace, Args: []string{"world", "there"}}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if getScalar(t, out[0], "value") != "hello there" {
		t.Fatalf("expected replaced value, got %v", getScalar(t, out[0], "value"))
	}
}

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

func TestRunTimeRangeUsesChunkTiming(t *testing.T) {
	spec := chunktest.ChunkSpec{
		VersionMajor:  1,
		StartNanos:    1_000_000_000,
		StartTicks:    0,
		TickFrequency: 1_000_000_000,
		Events: []chunktest.Event{
			{TypeName: "jdk.FileRead", Fields: map[string]chunktest.FieldValue{
				"startTime": chunktest.Long(1),
				"duration":  chunktest.Long(2),
			}},
			{TypeName: "jdk.FileRead", Fields: map[string]chunktest.FieldValue{
				"startTime": chunktest.Long(5),
				"duration":  chunktest.Long(1),
			}},
		},
	}
	h := openRecording(t, spec)
	q, err := parse.Parse("events/jdk.FileRead")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	fms, err := eval.Evaluate(h, q)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	rows := pipeline.FromFieldMaps(fms)
	out, err := pipeline.Run(nil, rows, []ast.PipelineOp{ast.TimeRangeOp{TicksPath: "startTime", DurationPath: "duration"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if getScalar(t, out[0], "minTicks") != int64(1) || getScalar(t, out[0], "maxTicks") != int64(6) {
		t.Fatalf("expected minTicks=1 maxTicks=6, got min=%v max=%v", getScalar(t, out[0], "minTicks"), getScalar(t, out[0], "maxTicks"))
	}
}

func TestRunDecorateByTimeNullsWhenNoMatch(t *testing.T) {
	spec := chunktest.ChunkSpec{
		VersionMajor:  1,
		StartNanos:    0,
		StartTicks:    0,
		TickFrequency: 1_000_000_000,
		Events: []chunktest.Event{
			{TypeName: "jdk.ExecutionSample", Fields: map[string]chunktest.FieldValue{
				"startTime": chunktest.Long(10),
				"duration":  chunktest.Long(1),
				"eventThread": chunktest.Map(map[string]chunktest.FieldValue{
					"javaThreadId": chunktest.Long(1),
				}),
			}},
		},
	}
	h := openRecording(t, spec)
	q, err := parse.Parse("events/jdk.ExecutionSample")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	fms, err := eval.Evaluate(h, q)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	rows := pipeline.FromFieldMaps(fms)
	ctx := &pipeline.Context{Handle: h}
	out, err := pipeline.Run(ctx, rows, []ast.PipelineOp{ast.DecorateByTimeOp{
		DecoratorType: "jdk.ThreadPark",
		Fields:        []string{"reason"},
	}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 row, got %d", len(out))
	}
	v, ok := out[0].Get("$decorator.reason")
	if !ok {
		t.Fatalf("expected $decorator.reason column to be present even with no match")
	}
	if !v.IsNull() {
		t.Fatalf("expected $decorator.reason to be null, got %v", v.Scalar)
	}
}

func TestApplyCacheableSkipsDecorateOps(t *testing.T) {
	rows := valueRows(1, 2)
	out, err := pipeline.ApplyCacheable(rows, []ast.PipelineOp{
		ast.DecorateByTimeOp{DecoratorType: "jdk.ThreadPark"},
		ast.CountOp{},
	})
	if err != nil {
		t.Fatalf("ApplyCacheable: %v", err)
	}
	if len(out) != 1 || getScalar(t, out[0], "count") != int64(2) {
		t.Fatalf("expected decorateByTime to be skipped and count to run, got %#v", out)
	}
}

func TestRunReportsProgressPerStage(t *testing.T) {
	rows := valueRows(1, 2, 3, 4)
	var reports []string
	ctx := &pipeline.Context{Progress: func(stage string, current, total int64, message string) {
		reports = append(reports, stage)
	}}
	_, err := pipeline.Run(ctx, rows, []ast.PipelineOp{ast.SumOp{Path: "value"}, ast.CountOp{}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(reports) != 4 {
		t.Fatalf("expected 2 start + 2 complete reports, got %d: %v", len(reports), reports)
	}
	if reports[0] != "sum" || reports[1] != "sum" || reports[2] != "count" || reports[3] != "count" {
		t.Fatalf("unexpected stage report order: %v", reports)
	}
}

func TestThrottledProgressCallbackDropsBurstyReports(t *testing.T) {
	var calls int
	throttled := pipeline.ThrottledProgressCallback(func(stage string, current, total int64, message string) {
		calls++
	}, time.Hour)
	throttled("count", 0, 1, "start")
	throttled("count", 1, 1, "done")
	if calls != 1 {
		t.Fatalf("expected only the first call to pass the throttle, got %d calls", calls)
	}
}
