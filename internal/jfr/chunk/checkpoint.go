package chunk

import (
	"bufio"

	"jfrq/internal/jfr/leb128"
)

// readCheckpoint decodes the constant-pool checkpoint block at a chunk's
// constantPoolOffset: a varint pool count, then per pool a type name, an
// entry count, and (id, Value) pairs (spec §3.1, §4.1).
func readCheckpoint(r *bufio.Reader, pools constantPools) error {
	n, err := leb128.ReadUvarint(r)
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		typeName, err := leb128.ReadString(r)
		if err != nil {
			return err
		}
		entryCount, err := leb128.ReadUvarint(r)
		if err != nil {
			return err
		}
		pool := pools.poolFor(typeName)
		for j := uint64(0); j < entryCount; j++ {
			id, err := leb128.ReadUvarint(r)
			if err != nil {
				return err
			}
			v, err := readValue(r, pools)
			if err != nil {
				return err
			}
			pool.put(int64(id), v)
		}
	}
	return nil
}
