package pipeline

import (
	"jfrq/internal/jfr/chunk"
	"jfrq/internal/query/ast"
)

// runToMap implements spec §4.5's toMap(keyField, valueField): folds rows
// into a single output row carrying one map-valued column, "map". Rows whose
// key resolves to null are dropped; duplicate keys keep the last row's value.
func runToMap(rows []*Row, op ast.ToMapOp) []*Row {
	m := make(map[string]chunk.Value)
	var order []string
	for _, r := range rows {
		kv, ok := navigateOne(r, op.KeyField)
		if !ok || kv.Resolve().IsNull() {
			continue
		}
		key := groupKeyString(kv)
		vv, ok := navigateOne(r, op.ValueField)
		if !ok {
			vv = chunk.Value{Kind: chunk.KindNull}
		} else {
			vv = vv.Resolve()
		}
		if _, exists := m[key]; !exists {
			order = append(order, key)
		}
		m[key] = vv
	}

	entries := make(map[string]chunk.Value, len(order))
	for _, k := range order {
		entries[k] = m[k]
	}

	out := NewRow()
	out.Set("map", chunk.Value{Kind: chunk.KindMap, Map: entries})
	return []*Row{out}
}
