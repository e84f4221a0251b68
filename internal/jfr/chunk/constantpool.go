package chunk

// ConstantPool is a chunk-local map from a 64-bit id to a value of a specific
// type, populated at checkpoint boundaries (spec §3.1).
type ConstantPool struct {
	typeName string
	entries  map[int64]Value
	visiting map[int64]bool // re-entry guard, see Resolve
}

func newConstantPool(typeName string) *ConstantPool {
	return &ConstantPool{
		typeName: typeName,
		entries:  make(map[int64]Value),
		visiting: make(map[int64]bool),
	}
}

func (p *ConstantPool) put(id int64, v Value) {
	p.entries[id] = v
}

// Resolve looks up id in the pool. Constant-pool references can form cycles
// (e.g. a class loader referencing its own defining package); rather than
// materializing eagerly, Resolve tracks a small per-pool visited set so a
// cyclic reference returns a shallow snapshot (KindReference, unresolved)
// instead of recursing forever (spec §9, "Cyclic / recursive structures").
// Unknown ids resolve to the zero Value (KindNull) rather than erroring
// (spec §4.1: "Unknown constant-pool reference ... never throws").
func (p *ConstantPool) Resolve(id int64) Value {
	if p.visiting[id] {
		return Value{Kind: KindReference, Ref: Reference{PoolType: p.typeName, ID: id, pool: p}}
	}
	v, ok := p.entries[id]
	if !ok {
		return Value{Kind: KindNull}
	}
	p.visiting[id] = true
	resolved := resolveNestedReferences(v)
	delete(p.visiting, id)
	return resolved
}

// resolveNestedReferences resolves v itself when it is a Reference,
// following a chain of references and relying on each pool's own re-entry
// guard to break cycles. Maps and arrays are copied one level deep; the
// references they contain are left unresolved for the caller to Resolve.
func resolveNestedReferences(v Value) Value {
	switch v.Kind {
	case KindReference:
		if v.Ref.pool == nil {
			return v
		}
		return v.Ref.pool.Resolve(v.Ref.ID)
	case KindMap:
		out := make(FieldMap, len(v.Map))
		for k, fv := range v.Map {
			out[k] = fv
		}
		return Value{Kind: KindMap, Map: out}
	case KindArray:
		out := make([]Value, len(v.Array))
		copy(out, v.Array)
		return Value{Kind: KindArray, Array: out, ElemKind: v.ElemKind}
	default:
		return v
	}
}

// Summary returns the pool's type name and entry count, for
// load_constant_pool_summary (spec §4.1).
func (p *ConstantPool) Summary() PoolSummary {
	return PoolSummary{Name: p.typeName, TotalSize: len(p.entries)}
}

// constantPools indexes a chunk's constant pools by type name.
type constantPools map[string]*ConstantPool

func (cps constantPools) poolFor(typeName string) *ConstantPool {
	p, ok := cps[typeName]
	if !ok {
		p = newConstantPool(typeName)
		cps[typeName] = p
	}
	return p
}
