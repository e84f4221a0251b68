package pipeline

import (
	"fmt"
	"time"

	"jfrq/internal/jfr/chunk"
	"jfrq/internal/query/ast"
)

// Context carries the resources a pipeline op may need beyond its input
// rows. Handle is non-nil only when the pipeline runs against a live
// recording (a fresh evaluation); decorateByTime/decorateByKey require it to
// re-stream decorator events and fail without it (spec §4.6, "decoration
// ... require event streaming and are skipped for cached rows"). Progress,
// if set, receives a start/complete report for every operator Run executes.
type Context struct {
	Handle   *chunk.RecordingHandle
	Progress ProgressCallback
}

// Run executes ops left-to-right over rows, exactly as declared (spec §4.5,
// "Operators are not required to be commutative. The implementation must
// respect the declared order").
func Run(ctx *Context, rows []*Row, ops []ast.PipelineOp) ([]*Row, error) {
	var tracker *ProgressTracker
	if ctx != nil && ctx.Progress != nil {
		tracker = NewProgressTracker(ctx.Progress, len(ops))
	}

	current := rows
	for _, op := range ops {
		name := opName(op)
		if tracker != nil {
			tracker.StartStage(name, int64(len(current)))
		}
		start := time.Now()

		next, err := runOp(ctx, current, op)
		if err != nil {
			return nil, fmt.Errorf("pipeline: %s: %w", name, err)
		}
		current = next

		if tracker != nil {
			tracker.CompleteStage(name, int64(len(current)), time.Since(start))
		}
	}
	return current, nil
}

// ApplyCacheable re-runs every op in ops that CanCache reports true for,
// silently dropping decorateByTime/decorateByKey stages (spec §4.6): it is
// the operation a Session performs on previously materialized rows, which
// carry no live recording handle to re-stream decorator events from.
func ApplyCacheable(rows []*Row, ops []ast.PipelineOp) ([]*Row, error) {
	cacheable := make([]ast.PipelineOp, 0, len(ops))
	for _, op := range ops {
		if CanCache(op) {
			cacheable = append(cacheable, op)
		}
	}
	return Run(nil, rows, cacheable)
}

// CanCache reports whether op can be re-run against already-materialized
// rows without a live recording handle (spec §4.6). Every op is cacheable
// except the two that require re-streaming the recording to correlate
// events.
func CanCache(op ast.PipelineOp) bool {
	switch op.(type) {
	case ast.DecorateByTimeOp, ast.DecorateByKeyOp:
		return false
	default:
		return true
	}
}

func runOp(ctx *Context, rows []*Row, op ast.PipelineOp) ([]*Row, error) {
	switch o := op.(type) {
	case ast.CountOp:
		return runCount(rows), nil
	case ast.SumOp:
		return runSum(rows, o), nil
	case ast.StatsOp:
		return runStats(rows, o), nil
	case ast.QuantilesOp:
		return runQuantiles(rows, o), nil
	case ast.SketchOp:
		return runSketch(rows, o), nil
	case ast.GroupByOp:
		return runGroupBy(rows, o), nil
	case ast.TopOp:
		return runTop(rows, o), nil
	case ast.SortByOp:
		return runSortBy(rows, o), nil
	case ast.TransformOp:
		return runTransform(rows, o)
	case ast.SelectOp:
		return runSelect(rows, o)
	case ast.ToMapOp:
		return runToMap(rows, o), nil
	case ast.TimeRangeOp:
		return runTimeRange(rows, o), nil
	case ast.DecorateByTimeOp:
		if ctx == nil || ctx.Handle == nil {
			return nil, fmt.Errorf("decorateByTime requires a live recording handle")
		}
		return runDecorateByTime(ctx.Handle, rows, o)
	case ast.DecorateByKeyOp:
		if ctx == nil || ctx.Handle == nil {
			return nil, fmt.Errorf("decorateByKey requires a live recording handle")
		}
		return runDecorateByKey(ctx.Handle, rows, o)
	default:
		return nil, fmt.Errorf("unknown pipeline operator %T", op)
	}
}

func opName(op ast.PipelineOp) string {
	switch op.(type) {
	case ast.CountOp:
		return "count"
	case ast.SumOp:
		return "sum"
	case ast.StatsOp:
		return "stats"
	case ast.QuantilesOp:
		return "quantiles"
	case ast.SketchOp:
		return "sketch"
	case ast.GroupByOp:
		return "groupBy"
	case ast.TopOp:
		return "top"
	case ast.SortByOp:
		return "sortBy"
	case ast.TransformOp:
		return "transform"
	case ast.SelectOp:
		return "select"
	case ast.ToMapOp:
		return "toMap"
	case ast.TimeRangeOp:
		return "timeRange"
	case ast.DecorateByTimeOp:
		return "decorateByTime"
	case ast.DecorateByKeyOp:
		return "decorateByKey"
	default:
		return "unknown"
	}
}
