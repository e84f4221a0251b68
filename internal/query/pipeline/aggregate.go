package pipeline

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"jfrq/internal/jfr/chunk"
	"jfrq/internal/query/ast"
)

// defaultValuePath is the value path every optional-path aggregation op
// falls back to when none is given: the common shape after a bare
// projection, which the evaluator wraps into a single-column {value: ...}
// row (see eval.wrapAsRow).
const defaultValuePath = "value"

func valuePathOrDefault(path string) string {
	if path == "" {
		return defaultValuePath
	}
	return path
}

func runCount(rows []*Row) []*Row {
	out := NewRow()
	out.Set("count", chunk.Value{Kind: chunk.KindScalar, Scalar: int64(len(rows))})
	return []*Row{out}
}

// numericValues collects every numeric value path resolves to across rows,
// skipping non-numeric results (spec §4.5, "sums numeric values; non-numeric
// skipped").
func numericValues(rows []*Row, path string) []float64 {
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		for _, v := range navigate(r, path) {
			if f, ok := v.Resolve().AsFloat64(); ok {
				out = append(out, f)
			}
		}
	}
	return out
}

func runSum(rows []*Row, op ast.SumOp) []*Row {
	values := numericValues(rows, valuePathOrDefault(op.Path))
	var sum float64
	for _, v := range values {
		sum += v
	}
	out := NewRow()
	out.Set("sum", chunk.Value{Kind: chunk.KindScalar, Scalar: sum})
	out.Set("count", chunk.Value{Kind: chunk.KindScalar, Scalar: int64(len(values))})
	return []*Row{out}
}

// welfordStats computes count/min/max/avg/stddev in one pass (spec §4.5,
// "Welford's online variance"), grounded on app/histogram/histogram.go's
// single-pass, precompute-then-scan discipline.
func welfordStats(values []float64) (count int64, min, max, avg, stddev float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0, 0
	}
	min, max = values[0], values[0]
	var mean, m2 float64
	var n int64
	for _, v := range values {
		n++
		delta := v - mean
		mean += delta / float64(n)
		m2 += delta * (v - mean)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return n, min, max, mean, math.Sqrt(m2 / float64(n))
}

func statsRow(values []float64) *Row {
	count, min, max, avg, stddev := welfordStats(values)
	row := NewRow()
	row.Set("count", chunk.Value{Kind: chunk.KindScalar, Scalar: count})
	row.Set("min", chunk.Value{Kind: chunk.KindScalar, Scalar: min})
	row.Set("max", chunk.Value{Kind: chunk.KindScalar, Scalar: max})
	row.Set("avg", chunk.Value{Kind: chunk.KindScalar, Scalar: avg})
	row.Set("stddev", chunk.Value{Kind: chunk.KindScalar, Scalar: stddev})
	return row
}

func runStats(rows []*Row, op ast.StatsOp) []*Row {
	values := numericValues(rows, valuePathOrDefault(op.Path))
	return []*Row{statsRow(values)}
}

// quantile implements spec §4.5's nearest-rank rule, except the median
// (q==0.5) which averages the two middle elements when n is even. sorted
// must already be sorted ascending.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if q == 0.5 && n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	rank := int(math.Ceil(q * float64(n)))
	if rank < 1 {
		rank = 1
	}
	if rank > n {
		rank = n
	}
	return sorted[rank-1]
}

// quantileColumnName renders p<q*100>, trimming trailing zeros (p50, p90,
// p99, p99.9) per spec §4.5's "p<q·100>" column naming.
func quantileColumnName(q float64) string {
	pct := q * 100
	s := strconv.FormatFloat(pct, 'f', -1, 64)
	return "p" + s
}

func quantilesRow(values []float64, qs []float64) *Row {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	row := NewRow()
	row.Set("count", chunk.Value{Kind: chunk.KindScalar, Scalar: int64(len(values))})
	for _, q := range qs {
		row.Set(quantileColumnName(q), chunk.Value{Kind: chunk.KindScalar, Scalar: quantile(sorted, q)})
	}
	return row
}

func runQuantiles(rows []*Row, op ast.QuantilesOp) []*Row {
	values := numericValues(rows, valuePathOrDefault(op.Path))
	return []*Row{quantilesRow(values, op.Quantiles)}
}

// runSketch is stats composed with quantiles(0.5, 0.9, 0.99), merged into
// one output row (spec §4.5, "equivalent to stats composed with
// quantiles(0.5, 0.9, 0.99)").
func runSketch(rows []*Row, op ast.SketchOp) []*Row {
	values := numericValues(rows, valuePathOrDefault(op.Path))
	row := statsRow(values)
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	for _, q := range []float64{0.5, 0.9, 0.99} {
		row.Set(quantileColumnName(q), chunk.Value{Kind: chunk.KindScalar, Scalar: quantile(sorted, q)})
	}
	return []*Row{row}
}

// groupAccumulator tracks one groupBy key's running aggregate, in the same
// single-pass spirit as welfordStats.
type groupAccumulator struct {
	count int64
	sum   float64
	min   float64
	max   float64
	seen  bool
}

func (g *groupAccumulator) add(v float64) {
	g.count++
	g.sum += v
	if !g.seen || v < g.min {
		g.min = v
	}
	if !g.seen || v > g.max {
		g.max = v
	}
	g.seen = true
}

func (g *groupAccumulator) result(agg ast.AggFunc) float64 {
	switch agg {
	case ast.AggSum:
		return g.sum
	case ast.AggAvg:
		if g.count == 0 {
			return 0
		}
		return g.sum / float64(g.count)
	case ast.AggMin:
		return g.min
	case ast.AggMax:
		return g.max
	default:
		return float64(g.count)
	}
}

// groupKeyString renders a navigated key value into the string used both as
// the map key (so equal values group together) and as the output "key"
// column's display form.
func groupKeyString(v chunk.Value) string {
	v = v.Resolve()
	if s, ok := v.AsString(); ok {
		return s
	}
	return "null"
}

// runGroupBy implements spec §4.5's groupBy: array-aware key extraction per
// row (spec §9's "one increment per group membership" resolution of the
// open question — an event whose key path crosses an array contributes to
// every group its key values land in, not just one), first-seen key order,
// and an agg-named output column (count/sum/avg/min/max).
func runGroupBy(rows []*Row, op ast.GroupByOp) []*Row {
	groups := make(map[string]*groupAccumulator)
	var order []string
	for _, r := range rows {
		keys := navigate(r, op.KeyPath)
		if len(keys) == 0 {
			continue
		}
		var rowValues []float64
		if op.Agg != ast.AggCount {
			rowValues = numericValues([]*Row{r}, valuePathOrDefault(op.ValuePath))
		}
		for _, kv := range keys {
			key := groupKeyString(kv)
			g, ok := groups[key]
			if !ok {
				g = &groupAccumulator{}
				groups[key] = g
				order = append(order, key)
			}
			switch op.Agg {
			case ast.AggCount:
				g.count++
				g.seen = true
			default:
				for _, v := range rowValues {
					g.add(v)
				}
			}
		}
	}

	out := make([]*Row, 0, len(order))
	for _, key := range order {
		g := groups[key]
		row := NewRow()
		row.Set("key", chunk.Value{Kind: chunk.KindScalar, Scalar: key})
		row.Set(op.Agg.String(), chunk.Value{Kind: chunk.KindScalar, Scalar: g.result(op.Agg)})
		out = append(out, row)
	}

	switch strings.ToLower(op.SortBy) {
	case "value":
		sort.SliceStable(out, func(i, j int) bool {
			vi, _ := out[i].Get(op.Agg.String())
			vj, _ := out[j].Get(op.Agg.String())
			fi, _ := vi.AsFloat64()
			fj, _ := vj.AsFloat64()
			if op.Asc {
				return fi < fj
			}
			return fi > fj
		})
	case "key":
		sort.SliceStable(out, func(i, j int) bool {
			ki, _ := out[i].Get("key")
			kj, _ := out[j].Get("key")
			si, _ := ki.AsString()
			sj, _ := kj.AsString()
			if op.Asc {
				return si < sj
			}
			return si > sj
		})
	default:
		// sortBy unset: first-seen key order, per spec §5 ("groupBy emits
		// keys in first-seen order — tested"); out is already built in
		// that order.
	}
	return out
}
