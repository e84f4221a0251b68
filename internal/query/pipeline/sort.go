package pipeline

import (
	"sort"

	"jfrq/internal/query/ast"
)

// compareRows orders two rows by field, numeric comparison when both sides
// are numeric values (int64, float64 or bool; numeric strings are not
// parsed) and case-sensitive string comparison otherwise — the
// same numeric-then-string fallback app/query/stages.go's
// sortRowsByResolvedColumns uses.
func compareRows(a, b *Row, field string) int {
	av, aok := navigateOne(a, field)
	bv, bok := navigateOne(b, field)
	if !aok && !bok {
		return 0
	}
	if !aok {
		return -1
	}
	if !bok {
		return 1
	}
	af, aIsNum := av.Resolve().AsFloat64()
	bf, bIsNum := bv.Resolve().AsFloat64()
	if aIsNum && bIsNum {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, _ := av.Resolve().AsString()
	bs, _ := bv.Resolve().AsString()
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

// runSortBy implements spec §4.5's single-key sortBy: a stable sort so
// equal-key rows keep their relative input order, descending by default.
func runSortBy(rows []*Row, op ast.SortByOp) []*Row {
	out := make([]*Row, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		c := compareRows(out[i], out[j], op.Field)
		if op.Asc {
			return c < 0
		}
		return c > 0
	})
	return out
}

// runTop implements spec §4.5's top(n[, by=path, asc=false]): a stable sort
// (descending unless asc is requested, ties preserving input order) followed
// by taking the first n rows.
func runTop(rows []*Row, op ast.TopOp) []*Row {
	out := make([]*Row, len(rows))
	copy(out, rows)
	if op.By != "" {
		sort.SliceStable(out, func(i, j int) bool {
			c := compareRows(out[i], out[j], op.By)
			if op.Asc {
				return c < 0
			}
			return c > 0
		})
	}
	n := op.N
	if n < 0 {
		n = 0
	}
	if n > len(out) {
		n = len(out)
	}
	return out[:n]
}
