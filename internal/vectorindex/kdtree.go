package vectorindex

import (
	"bytes"
	"encoding/gob"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/ahnlich/ahnlich-db/internal/dberrors"
)

// rebalanceThreshold is the tombstone-to-total ratio at or past which KDTree
// rebuilds itself from scratch rather than continuing to accumulate dead
// leaves. The exact trigger is left to the implementer by the source
// material; a quarter of the tree being dead is a reasonable default that
// bounds worst-case search cost without rebuilding on every delete.
const rebalanceThreshold = 0.25

type kdNode struct {
	ID      uint64
	Vector  []float32
	Deleted bool
	Left    *kdNode
	Right   *kdNode
}

// KDTree is a k-dimensional binary search tree over fixed-length float32
// vectors. It is built with median-splitting for balance, tombstones
// deletes in place, and periodically rebuilds once the tombstone ratio
// crosses rebalanceThreshold.
type KDTree struct {
	mu         sync.RWMutex
	dim        int
	root       *kdNode
	byID       map[uint64]*kdNode
	live       int
	tombstones int
}

// NewKDTree constructs an empty KD-tree over vectors of the given
// dimension.
func NewKDTree(dim int) *KDTree {
	return &KDTree{dim: dim, byID: make(map[uint64]*kdNode)}
}

var _ Index = (*KDTree)(nil)

// Insert adds or replaces vectors keyed by id, then rebuilds the tree if
// the accumulated tombstone ratio warrants it.
func (t *KDTree) Insert(ids []uint64, vectors [][]float32) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, id := range ids {
		if len(vectors[i]) != t.dim {
			return dberrors.DimensionMismatch("", t.dim, len(vectors[i]))
		}
		if old, ok := t.byID[id]; ok && !old.Deleted {
			old.Deleted = true
			t.live--
			t.tombstones++
		}
		n := &kdNode{ID: id, Vector: vectors[i]}
		t.byID[id] = n
		t.live++
	}
	t.insertAll()
	t.maybeRebuild()
	return nil
}

// insertAll rebuilds the tree structure from every live, non-tombstoned
// node using median-split construction. Called after any batch insert
// since individual BST insertion (without rebalancing) can degrade the
// tree's depth under adversarial insertion order.
func (t *KDTree) insertAll() {
	live := make([]*kdNode, 0, t.live)
	for _, n := range t.byID {
		if !n.Deleted {
			live = append(live, n)
		}
	}
	t.root = buildMedian(live, 0, t.dim)
}

func buildMedian(nodes []*kdNode, depth, dim int) *kdNode {
	if len(nodes) == 0 {
		return nil
	}
	axis := depth % dim
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Vector[axis] < nodes[j].Vector[axis] })
	mid := len(nodes) / 2
	root := nodes[mid]
	root.Left = buildMedian(nodes[:mid], depth+1, dim)
	root.Right = buildMedian(nodes[mid+1:], depth+1, dim)
	return root
}

// Delete tombstones the given ids, returning the count actually removed.
func (t *KDTree) Delete(ids []uint64) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for _, id := range ids {
		if n, ok := t.byID[id]; ok && !n.Deleted {
			n.Deleted = true
			t.live--
			t.tombstones++
			removed++
		}
	}
	t.maybeRebuild()
	return removed
}

func (t *KDTree) maybeRebuild() {
	total := t.live + t.tombstones
	if total == 0 || t.tombstones == 0 {
		return
	}
	if float64(t.tombstones)/float64(total) < rebalanceThreshold {
		return
	}
	live := make([]*kdNode, 0, t.live)
	for id, n := range t.byID {
		if n.Deleted {
			delete(t.byID, id)
			continue
		}
		live = append(live, n)
	}
	t.root = buildMedian(live, 0, t.dim)
	t.tombstones = 0
}

// NNearest returns up to n closest vectors to point, sorted best-first by
// Euclidean distance, optionally restricted to ids present in accept.
func (t *KDTree) NNearest(point []float32, n int, accept *roaring64.Bitmap) ([]Neighbor, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(point) != t.dim {
		return nil, dberrors.DimensionMismatch("", t.dim, len(point))
	}
	if n <= 0 || t.root == nil {
		return []Neighbor{}, nil
	}

	var best []Neighbor
	var search func(node *kdNode, depth int)
	search = func(node *kdNode, depth int) {
		if node == nil {
			return
		}
		if !node.Deleted && (accept == nil || accept.Contains(node.ID)) {
			d := EuclideanDistance(point, node.Vector)
			best = insertBounded(best, Neighbor{ID: node.ID, Vector: node.Vector, Distance: d}, n)
		}

		axis := depth % t.dim
		diff := point[axis] - node.Vector[axis]
		near, far := node.Left, node.Right
		if diff > 0 {
			near, far = node.Right, node.Left
		}
		search(near, depth+1)
		if len(best) < n || float32(mathAbs(diff)) < best[len(best)-1].Distance {
			search(far, depth+1)
		}
	}
	search(t.root, 0)
	return best, nil
}

// insertBounded keeps best sorted ascending by distance (ties broken
// lexicographically) and capped at n entries.
func insertBounded(best []Neighbor, cand Neighbor, n int) []Neighbor {
	idx := sort.Search(len(best), func(i int) bool {
		if best[i].Distance != cand.Distance {
			return best[i].Distance > cand.Distance
		}
		return lexLess(cand.Vector, best[i].Vector)
	})
	best = append(best, Neighbor{})
	copy(best[idx+1:], best[idx:])
	best[idx] = cand
	if len(best) > n {
		best = best[:n]
	}
	return best
}

func mathAbs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}

// Size reports the number of live (non-tombstoned) vectors.
func (t *KDTree) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live
}

type kdSnapshot struct {
	Dim     int
	IDs     []uint64
	Vectors [][]float32
}

// Save serializes the live vector set as a gob-encoded snapshot. The
// tombstone/tree structure is discarded; Load rebuilds a fresh balanced
// tree from the live set.
func (t *KDTree) Save() ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := kdSnapshot{Dim: t.dim}
	for id, n := range t.byID {
		if n.Deleted {
			continue
		}
		snap.IDs = append(snap.IDs, id)
		snap.Vectors = append(snap.Vectors, n.Vector)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, dberrors.Wrap(dberrors.KindInternal, err)
	}
	return buf.Bytes(), nil
}

// Load replaces the tree's contents from a previously Saved snapshot.
func (t *KDTree) Load(data []byte) error {
	var snap kdSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return dberrors.Wrap(dberrors.KindInternal, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.dim = snap.Dim
	t.byID = make(map[uint64]*kdNode, len(snap.IDs))
	t.live = 0
	t.tombstones = 0
	live := make([]*kdNode, 0, len(snap.IDs))
	for i, id := range snap.IDs {
		n := &kdNode{ID: id, Vector: snap.Vectors[i]}
		t.byID[id] = n
		live = append(live, n)
		t.live++
	}
	t.root = buildMedian(live, 0, t.dim)
	return nil
}
