package store

import (
	"encoding/binary"
	"hash/fnv"
	"math"

	"github.com/ahnlich/ahnlich-db/internal/metadata"
)

// RecordID is a deterministic, content-derived identifier for a vector.
// Two vectors with identical contents always produce the same RecordID,
// giving set semantics on vectors within a store.
type RecordID uint64

// DeriveRecordID computes the stable RecordID for a vector's contents.
func DeriveRecordID(vector []float32) RecordID {
	h := fnv.New64a()
	buf := make([]byte, 4)
	for _, f := range vector {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(f))
		h.Write(buf)
	}
	return RecordID(h.Sum64())
}

// Record is a (vector, metadata) pair as held inside a Store.
type Record struct {
	Vector   []float32
	Metadata metadata.Map
}
