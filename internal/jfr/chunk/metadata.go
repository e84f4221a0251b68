package chunk

import (
	"bufio"

	"jfrq/internal/jfr/leb128"
)

// readMetadata decodes the metadata block at a chunk's metadataOffset: a
// varint type count followed by, per type, its name, super-type, annotation
// map, and field list (spec §3.1, §6.1).
func readMetadata(r *bufio.Reader) ([]TypeInfo, error) {
	n, err := leb128.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	types := make([]TypeInfo, n)
	for i := uint64(0); i < n; i++ {
		t, err := readTypeInfo(r)
		if err != nil {
			return nil, err
		}
		types[i] = t
	}
	return types, nil
}

func readTypeInfo(r *bufio.Reader) (TypeInfo, error) {
	name, err := leb128.ReadString(r)
	if err != nil {
		return TypeInfo{}, err
	}
	superType, err := leb128.ReadString(r)
	if err != nil {
		return TypeInfo{}, err
	}
	annotations, err := readAnnotations(r)
	if err != nil {
		return TypeInfo{}, err
	}
	fieldCount, err := leb128.ReadUvarint(r)
	if err != nil {
		return TypeInfo{}, err
	}
	fields := make([]FieldInfo, fieldCount)
	for i := uint64(0); i < fieldCount; i++ {
		f, err := readFieldInfo(r)
		if err != nil {
			return TypeInfo{}, err
		}
		fields[i] = f
	}
	return TypeInfo{Name: name, SuperType: superType, Annotations: annotations, Fields: fields}, nil
}

func readFieldInfo(r *bufio.Reader) (FieldInfo, error) {
	name, err := leb128.ReadString(r)
	if err != nil {
		return FieldInfo{}, err
	}
	typeName, err := leb128.ReadString(r)
	if err != nil {
		return FieldInfo{}, err
	}
	isArrayB, err := r.ReadByte()
	if err != nil {
		return FieldInfo{}, err
	}
	isRefB, err := r.ReadByte()
	if err != nil {
		return FieldInfo{}, err
	}
	annotations, err := readAnnotations(r)
	if err != nil {
		return FieldInfo{}, err
	}
	return FieldInfo{
		Name:          name,
		TypeName:      typeName,
		IsArray:       isArrayB != 0,
		IsConstantRef: isRefB != 0,
		Annotations:   annotations,
	}, nil
}

func readAnnotations(r *bufio.Reader) (map[string]string, error) {
	n, err := leb128.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make(map[string]string, n)
	for i := uint64(0); i < n; i++ {
		k, err := leb128.ReadString(r)
		if err != nil {
			return nil, err
		}
		v, err := leb128.ReadString(r)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
