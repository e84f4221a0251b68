package chunk

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"jfrq/internal/jfr/leb128"
)

// valueTag identifies the on-disk shape of one encoded Value within a chunk's
// event or constant-pool payload. This is jfrq's own concrete encoding of the
// Scalar|Map|Array|Reference variant spec §9 calls for — the prose leaves the
// exact wire shape implementation-defined, only fixing the primitives
// (LEB128 integers, length-prefixed UTF-8 strings) that jfrq's encoder and
// decoder agree on here.
type valueTag byte

const (
	tagNull valueTag = iota
	tagString
	tagLong
	tagDouble
	tagBool
	tagMap
	tagArray
	tagReference
)

func readValue(r *bufio.Reader, pools constantPools) (Value, error) {
	tagByte, err := r.ReadByte()
	if err != nil {
		return Value{}, err
	}
	switch valueTag(tagByte) {
	case tagNull:
		return Value{Kind: KindNull}, nil
	case tagString:
		s, err := leb128.ReadString(r)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindScalar, Scalar: s}, nil
	case tagLong:
		v, err := leb128.ReadVarint(r)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindScalar, Scalar: v}, nil
	case tagDouble:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return Value{}, err
		}
		bits := binary.BigEndian.Uint64(buf[:])
		return Value{Kind: KindScalar, Scalar: math.Float64frombits(bits)}, nil
	case tagBool:
		b, err := r.ReadByte()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindScalar, Scalar: b != 0}, nil
	case tagMap:
		n, err := leb128.ReadUvarint(r)
		if err != nil {
			return Value{}, err
		}
		m := make(FieldMap, n)
		for i := uint64(0); i < n; i++ {
			name, err := leb128.ReadString(r)
			if err != nil {
				return Value{}, err
			}
			v, err := readValue(r, pools)
			if err != nil {
				return Value{}, err
			}
			m[name] = v
		}
		return Value{Kind: KindMap, Map: m}, nil
	case tagArray:
		n, err := leb128.ReadUvarint(r)
		if err != nil {
			return Value{}, err
		}
		arr := make([]Value, n)
		var elemKind FieldKind
		for i := uint64(0); i < n; i++ {
			v, err := readValue(r, pools)
			if err != nil {
				return Value{}, err
			}
			arr[i] = v
			elemKind = v.Kind
		}
		return Value{Kind: KindArray, Array: arr, ElemKind: elemKind}, nil
	case tagReference:
		poolType, err := leb128.ReadString(r)
		if err != nil {
			return Value{}, err
		}
		id, err := leb128.ReadUvarint(r)
		if err != nil {
			return Value{}, err
		}
		var pool *ConstantPool
		if pools != nil {
			pool = pools.poolFor(poolType)
		}
		return Value{Kind: KindReference, Ref: Reference{PoolType: poolType, ID: int64(id), pool: pool}}, nil
	default:
		return Value{}, fmt.Errorf("chunk: unknown value tag %d", tagByte)
	}
}

// AsString resolves a Value to its string representation, used by the
// evaluator when a path step needs a stringified scalar (predicates,
// select's implicit string coercion, regex matching).
func (v Value) AsString() (string, bool) {
	switch v.Kind {
	case KindScalar:
		switch s := v.Scalar.(type) {
		case string:
			return s, true
		case int64:
			return fmt.Sprintf("%d", s), true
		case float64:
			return fmt.Sprintf("%v", s), true
		case bool:
			return fmt.Sprintf("%t", s), true
		}
	}
	return "", false
}

// AsFloat64 resolves a Value to a float64, used by numeric predicate
// operators and pipeline aggregations (spec §4.5, stats/sum/quantiles).
func (v Value) AsFloat64() (float64, bool) {
	switch v.Kind {
	case KindScalar:
		switch s := v.Scalar.(type) {
		case int64:
			return float64(s), true
		case float64:
			return s, true
		case bool:
			if s {
				return 1, true
			}
			return 0, true
		}
	}
	return 0, false
}

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Resolve dereferences v if it is a KindReference, returning the constant
// pool entry it points to (or the null Value if the reference's pool was
// never attached, or the id is unknown). Non-reference values are returned
// unchanged. Callers outside this package (the predicate/eval/pipeline
// layers) use this to navigate through constant-pool references
// transparently without reaching into ConstantPool internals.
func (v Value) Resolve() Value {
	if v.Kind != KindReference {
		return v
	}
	if v.Ref.pool == nil {
		return Value{Kind: KindNull}
	}
	return v.Ref.pool.Resolve(v.Ref.ID)
}
