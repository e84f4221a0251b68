package pipeline

import (
	"strings"
	"time"

	"jfrq/internal/jfr/chunk"
	"jfrq/internal/query/ast"
)

// runTimeRange implements spec §4.5's timeRange(ticksPath[, duration=path,
// format=pattern]): one output row carrying the min/max of ticksPath (and,
// when duration is given, ticksPath+durationPath) in both raw ticks and
// wall-clock form, derived per-row via the owning chunk's timing (rowChunk).
// Rows with no chunk stamp (synthesized by an earlier aggregation stage)
// cannot be converted and are skipped.
func runTimeRange(rows []*Row, op ast.TimeRangeOp) []*Row {
	var (
		haveAny            bool
		minTicks, maxTicks int64
		minInstant         time.Time
		maxInstant         time.Time
	)

	consider := func(ticks int64, instant time.Time) {
		if !haveAny {
			minTicks, maxTicks = ticks, ticks
			minInstant, maxInstant = instant, instant
			haveAny = true
			return
		}
		if ticks < minTicks {
			minTicks = ticks
			minInstant = instant
		}
		if ticks > maxTicks {
			maxTicks = ticks
			maxInstant = instant
		}
	}

	for _, r := range rows {
		cs, ok := rowChunk(r)
		if !ok {
			continue
		}
		for _, tv := range navigate(r, op.TicksPath) {
			f, ok := tv.Resolve().AsFloat64()
			if !ok {
				continue
			}
			startTicks := int64(f)
			consider(startTicks, cs.TicksToInstant(startTicks))

			if op.DurationPath == "" {
				continue
			}
			dv, ok := navigateOne(r, op.DurationPath)
			if !ok {
				continue
			}
			durTicks, ok := dv.Resolve().AsFloat64()
			if !ok {
				continue
			}
			endTicks := startTicks + int64(durTicks)
			consider(endTicks, cs.TicksToInstant(endTicks))
		}
	}

	out := NewRow()
	if !haveAny {
		out.Set("minTicks", chunk.Value{Kind: chunk.KindNull})
		out.Set("maxTicks", chunk.Value{Kind: chunk.KindNull})
		out.Set("minTime", chunk.Value{Kind: chunk.KindNull})
		out.Set("maxTime", chunk.Value{Kind: chunk.KindNull})
		return []*Row{out}
	}

	out.Set("minTicks", chunk.Value{Kind: chunk.KindScalar, Scalar: minTicks})
	out.Set("maxTicks", chunk.Value{Kind: chunk.KindScalar, Scalar: maxTicks})
	out.Set("minTime", chunk.Value{Kind: chunk.KindScalar, Scalar: formatInstant(minInstant, op.Format)})
	out.Set("maxTime", chunk.Value{Kind: chunk.KindScalar, Scalar: formatInstant(maxInstant, op.Format)})
	return []*Row{out}
}

// formatInstant renders t per a strftime-like pattern (spec §4.5's "format is
// a strftime-like pattern"), translating the common directives into Go's
// reference-time layout; RFC3339Nano is used when no pattern is given. No
// example repo in the corpus carries a strftime library (the teacher formats
// timestamps with stdlib time.Format directly, see app/timestamps), so this
// directive table is stdlib-only by necessity.
func formatInstant(t time.Time, pattern string) string {
	if pattern == "" {
		return t.Format(time.RFC3339Nano)
	}
	replacer := strings.NewReplacer(
		"%Y", "2006",
		"%m", "01",
		"%d", "02",
		"%H", "15",
		"%M", "04",
		"%S", "05",
		"%Z", "Z07:00",
	)
	return t.Format(replacer.Replace(pattern))
}
