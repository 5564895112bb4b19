package vectorindex

import (
	"bufio"
	"bytes"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/coder/hnsw"

	"github.com/ahnlich/ahnlich-db/internal/dberrors"
)

// HNSWIndex is a non-linear vector index backed by coder/hnsw. Unlike
// KDTree it never rebuilds: deletes are lazy (the node stays in the graph
// but is hidden from results) because the underlying graph implementation
// does not support safe removal of arbitrary nodes.
type HNSWIndex struct {
	mu      sync.RWMutex
	dim     int
	graph   *hnsw.Graph[uint64]
	deleted map[uint64]struct{}
}

// NewHNSWIndex constructs an empty HNSW index over vectors of the given
// dimension, using Euclidean distance (the engine's HNSW variant operates
// directly on the caller's vectors; cosine/dot callers normalize before
// insert if desired).
func NewHNSWIndex(dim int) *HNSWIndex {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.EuclideanDistance
	return &HNSWIndex{dim: dim, graph: g, deleted: make(map[uint64]struct{})}
}

var _ Index = (*HNSWIndex)(nil)

// Insert adds or replaces vectors keyed by id. Inserting an id clears any
// tombstone recorded for it and adds a fresh node to the graph under the
// same key.
func (h *HNSWIndex) Insert(ids []uint64, vectors [][]float32) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, id := range ids {
		if len(vectors[i]) != h.dim {
			return dberrors.DimensionMismatch("", h.dim, len(vectors[i]))
		}
		delete(h.deleted, id)
		h.graph.Add(hnsw.MakeNode(id, vectors[i]))
	}
	return nil
}

// Delete tombstones the given ids, returning the count actually removed.
func (h *HNSWIndex) Delete(ids []uint64) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := 0
	for _, id := range ids {
		if _, already := h.deleted[id]; already {
			continue
		}
		h.deleted[id] = struct{}{}
		removed++
	}
	return removed
}

// NNearest returns up to n closest vectors to point, sorted best-first by
// Euclidean distance, optionally restricted to ids present in accept. The
// graph is over-queried to absorb lazily-deleted and rejected candidates.
func (h *HNSWIndex) NNearest(point []float32, n int, accept *roaring64.Bitmap) ([]Neighbor, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(point) != h.dim {
		return nil, dberrors.DimensionMismatch("", h.dim, len(point))
	}
	if n <= 0 || h.graph.Len() == 0 {
		return []Neighbor{}, nil
	}

	k := n * 4
	if k < 32 {
		k = 32
	}
	if k > h.graph.Len() {
		k = h.graph.Len()
	}

	var out []Neighbor
	for _, node := range h.graph.Search(point, k) {
		if _, gone := h.deleted[node.Key]; gone {
			continue
		}
		if accept != nil && !accept.Contains(node.Key) {
			continue
		}
		out = append(out, Neighbor{ID: node.Key, Vector: node.Value, Distance: EuclideanDistance(point, node.Value)})
	}
	sortBestFirst(out)
	return truncate(out, n), nil
}

// Size reports the number of live (non-tombstoned) vectors.
func (h *HNSWIndex) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph.Len() - len(h.deleted)
}

type hnswMeta struct {
	Dim     int
	Deleted []uint64
}

// Save serializes the graph structure and tombstone set. Grounded on the
// teacher's HNSWStore.Save split between graph export and a sidecar
// metadata blob, collapsed here into one byte slice since the persistence
// snapshot already frames each index's bytes independently.
func (h *HNSWIndex) Save() ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var graphBuf bytes.Buffer
	if err := h.graph.Export(&graphBuf); err != nil {
		return nil, dberrors.Wrap(dberrors.KindInternal, err)
	}

	deletedIDs := make([]uint64, 0, len(h.deleted))
	for id := range h.deleted {
		deletedIDs = append(deletedIDs, id)
	}

	return encodeHNSWSnapshot(hnswMeta{Dim: h.dim, Deleted: deletedIDs}, graphBuf.Bytes())
}

// Load replaces the index's contents from a previously Saved byte slice.
func (h *HNSWIndex) Load(data []byte) error {
	meta, graphBytes, err := decodeHNSWSnapshot(data)
	if err != nil {
		return err
	}

	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.EuclideanDistance
	if err := g.Import(bufio.NewReader(bytes.NewReader(graphBytes))); err != nil {
		return dberrors.Wrap(dberrors.KindInternal, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.dim = meta.Dim
	h.graph = g
	h.deleted = make(map[uint64]struct{}, len(meta.Deleted))
	for _, id := range meta.Deleted {
		h.deleted[id] = struct{}{}
	}
	return nil
}
