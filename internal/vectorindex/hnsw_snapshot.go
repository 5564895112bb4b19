package vectorindex

import (
	"bytes"
	"encoding/gob"

	"github.com/ahnlich/ahnlich-db/internal/dberrors"
)

// hnswSnapshot wraps the gob-friendly metadata alongside the graph's own
// native export format, which is not gob-compatible.
type hnswSnapshot struct {
	Meta  hnswMeta
	Graph []byte
}

func encodeHNSWSnapshot(meta hnswMeta, graph []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(hnswSnapshot{Meta: meta, Graph: graph}); err != nil {
		return nil, dberrors.Wrap(dberrors.KindInternal, err)
	}
	return buf.Bytes(), nil
}

func decodeHNSWSnapshot(data []byte) (hnswMeta, []byte, error) {
	var snap hnswSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return hnswMeta{}, nil, dberrors.Wrap(dberrors.KindInternal, err)
	}
	return snap.Meta, snap.Graph, nil
}
