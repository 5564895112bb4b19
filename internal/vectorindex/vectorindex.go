// Package vectorindex implements the non-linear (approximate) and linear
// (exact) nearest-neighbor structures a store can maintain over its live
// vectors.
package vectorindex

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Neighbor is one scored candidate returned by a nearest-neighbor search.
// Distance follows the underlying algorithm's native convention (lower is
// closer for Euclidean, higher is more similar for Cosine/Dot); callers
// needing a consistent best-first ordering use NNearest's return order,
// which is always best-first regardless of convention.
type Neighbor struct {
	ID       uint64
	Vector   []float32
	Distance float32
}

// Index is the capability set every non-linear vector index implements:
// batch insert, batch delete, bounded nearest-neighbor search with an
// optional accept-list, size reporting, and binary persistence. Mirrors
// the variant-tag-plus-capability-set design used for KDTree and HNSW.
type Index interface {
	// Insert adds or replaces vectors keyed by id. Re-inserting an
	// existing id replaces its vector.
	Insert(ids []uint64, vectors [][]float32) error
	// Delete tombstones the given ids, returning the count actually
	// removed (ids not present are ignored).
	Delete(ids []uint64) int
	// NNearest returns up to n closest neighbors to point, sorted
	// best-first. When accept is non-nil, only ids present in accept are
	// eligible.
	NNearest(point []float32, n int, accept *roaring64.Bitmap) ([]Neighbor, error)
	// Size reports the number of live (non-tombstoned) vectors.
	Size() int
	// Save serializes the index to a byte slice for inclusion in a
	// persistence snapshot.
	Save() ([]byte, error)
	// Load replaces the index's contents from a previously Saved byte
	// slice.
	Load([]byte) error
}

// sortBestFirst sorts neighbors ascending by Distance, breaking ties by
// lexicographic vector order as required for deterministic GetSimN output.
func sortBestFirst(neighbors []Neighbor) {
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Distance != neighbors[j].Distance {
			return neighbors[i].Distance < neighbors[j].Distance
		}
		return lexLess(neighbors[i].Vector, neighbors[j].Vector)
	})
}

func lexLess(a, b []float32) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
