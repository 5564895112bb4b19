// Package store implements a single tenant store: a fixed-dimension
// collection of (vector, metadata) records backed by a predicate index
// and zero or more non-linear vector indexes.
package store

import (
	"context"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/ahnlich/ahnlich-db/internal/dberrors"
	"github.com/ahnlich/ahnlich-db/internal/memguard"
	"github.com/ahnlich/ahnlich-db/internal/metadata"
	"github.com/ahnlich/ahnlich-db/internal/predicate"
	"github.com/ahnlich/ahnlich-db/internal/protocol"
	"github.com/ahnlich/ahnlich-db/internal/vectorindex"
	"github.com/ahnlich/ahnlich-db/internal/workerpool"
)

// Store is a single named tenant: a fixed dimensionality, a concurrent
// id->record map, the live-vector set, its predicate index, and its
// non-linear vector indexes. The Store Handler owns the set of Stores;
// a Store exclusively owns everything listed above.
type Store struct {
	Name string
	Dim  int

	mu        sync.RWMutex
	records   map[RecordID]*Record
	liveIDs   *roaring64.Bitmap
	predIndex *predicateIndex
	nonLinear map[protocol.Algorithm]vectorindex.Index

	governor *memguard.Governor
	pool     *workerpool.Pool
}

// New constructs an empty Store over vectors of dimension dim, with the
// given predicate keys pre-indexed. pool bounds concurrent non-linear
// index builds; a nil pool builds them unbounded.
func New(name string, dim int, predicateKeys []metadata.Key, governor *memguard.Governor, pool *workerpool.Pool) *Store {
	if pool == nil {
		pool = workerpool.New(0)
	}
	s := &Store{
		Name:      name,
		Dim:       dim,
		records:   make(map[RecordID]*Record),
		liveIDs:   roaring64.New(),
		predIndex: newPredicateIndex(),
		nonLinear: make(map[protocol.Algorithm]vectorindex.Index),
		governor:  governor,
		pool:      pool,
	}
	for _, k := range predicateKeys {
		s.predIndex.createIndex(k, s.records)
	}
	return s
}

func recordByteSize(vector []float32, m metadata.Map) uint64 {
	n := uint64(len(vector)) * 4
	for k, v := range m {
		n += uint64(len(k))
		if v.Kind() == metadata.KindText {
			n += uint64(len(v.TextValue()))
		} else {
			n += uint64(len(v.BytesValue()))
		}
	}
	return n
}

func (s *Store) validateDim(vector []float32) error {
	if len(vector) != s.Dim {
		return dberrors.DimensionMismatch(s.Name, s.Dim, len(vector))
	}
	return nil
}

// Set inserts or replaces records. Each vector maps to a stable RecordID
// derived from its contents: an existing id has its metadata replaced (a
// diff against the predicate index), a new id is inserted and indexed.
// Repeats of the same vector within one batch collapse to the last
// occurrence.
func (s *Store) Set(records []protocol.Record) (inserted, updated uint64, err error) {
	for _, r := range records {
		if err := s.validateDim(r.Vector); err != nil {
			return 0, 0, err
		}
	}

	dedup := make(map[RecordID]protocol.Record, len(records))
	order := make([]RecordID, 0, len(records))
	for _, r := range records {
		id := DeriveRecordID(r.Vector)
		if _, seen := dedup[id]; !seen {
			order = append(order, id)
		}
		dedup[id] = r
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	newIDs := make([]uint64, 0)
	newVectors := make([][]float32, 0)

	for _, id := range order {
		r := dedup[id]
		if existing, ok := s.records[id]; ok {
			s.predIndex.diffRecord(id, existing.Metadata, r.Metadata)
			existing.Metadata = r.Metadata.Clone()
			updated++
			continue
		}

		if s.governor != nil {
			if err := s.governor.Reserve(recordByteSize(r.Vector, r.Metadata)); err != nil {
				return inserted, updated, err
			}
		}

		s.records[id] = &Record{Vector: r.Vector, Metadata: r.Metadata.Clone()}
		s.liveIDs.Add(uint64(id))
		s.predIndex.indexRecord(id, r.Metadata)
		newIDs = append(newIDs, uint64(id))
		newVectors = append(newVectors, r.Vector)
		inserted++
	}

	for _, idx := range s.nonLinear {
		if len(newIDs) > 0 {
			_ = idx.Insert(newIDs, newVectors)
		}
	}

	return inserted, updated, nil
}

// DelKey removes the records identified by the given vectors' content
// hashes, returning the count actually removed.
func (s *Store) DelKey(vectors [][]float32) (uint64, error) {
	for _, v := range vectors {
		if err := s.validateDim(v); err != nil {
			return 0, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed uint64
	var removedIDs []uint64
	for _, v := range vectors {
		id := DeriveRecordID(v)
		rec, ok := s.records[id]
		if !ok {
			continue
		}
		s.predIndex.deindexRecord(id, rec.Metadata)
		delete(s.records, id)
		s.liveIDs.Remove(uint64(id))
		if s.governor != nil {
			s.governor.Release(recordByteSize(rec.Vector, rec.Metadata))
		}
		removedIDs = append(removedIDs, uint64(id))
		removed++
	}

	if len(removedIDs) > 0 {
		for _, idx := range s.nonLinear {
			idx.Delete(removedIDs)
		}
	}

	return removed, nil
}

// DelPred removes every record matching cond, returning the count
// removed. Fails with PredicateNotFound only when a referenced key is
// both unindexed and not present on any record currently in this store.
func (s *Store) DelPred(cond *predicate.Condition) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range collectKeys(cond) {
		if s.predIndex.hasIndex(key) {
			continue
		}
		if !s.keyEverUsedLocked(key) {
			return 0, dberrors.PredicateNotFound(string(key))
		}
	}

	ids := s.evaluateLocked(cond)

	var removed uint64
	var removedIDs []uint64
	ids.Iterate(func(v uint64) bool {
		id := RecordID(v)
		rec, ok := s.records[id]
		if !ok {
			return true
		}
		s.predIndex.deindexRecord(id, rec.Metadata)
		delete(s.records, id)
		s.liveIDs.Remove(v)
		if s.governor != nil {
			s.governor.Release(recordByteSize(rec.Vector, rec.Metadata))
		}
		removedIDs = append(removedIDs, v)
		removed++
		return true
	})

	if len(removedIDs) > 0 {
		for _, idx := range s.nonLinear {
			idx.Delete(removedIDs)
		}
	}

	return removed, nil
}

// GetKey returns the records present for the given vectors, omitting any
// vector with no matching record.
func (s *Store) GetKey(vectors [][]float32) ([]protocol.Record, error) {
	for _, v := range vectors {
		if err := s.validateDim(v); err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]protocol.Record, 0, len(vectors))
	for _, v := range vectors {
		id := DeriveRecordID(v)
		if rec, ok := s.records[id]; ok {
			out = append(out, protocol.Record{Vector: rec.Vector, Metadata: rec.Metadata.Clone()})
		}
	}
	return out, nil
}

// GetPred returns every record matching cond.
func (s *Store) GetPred(cond *predicate.Condition) ([]protocol.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.evaluateLocked(cond)
	out := make([]protocol.Record, 0, ids.GetCardinality())
	ids.Iterate(func(v uint64) bool {
		if rec, ok := s.records[RecordID(v)]; ok {
			out = append(out, protocol.Record{Vector: rec.Vector, Metadata: rec.Metadata.Clone()})
		}
		return true
	})
	return out, nil
}

// GetSimN returns up to n nearest neighbors to point under algo, best
// first, optionally restricted by cond's accept-list.
func (s *Store) GetSimN(point []float32, n int, algo protocol.Algorithm, cond *predicate.Condition) ([]protocol.SimResult, error) {
	if err := s.validateDim(point); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var accept *roaring64.Bitmap
	if cond != nil {
		accept = s.evaluateLocked(cond)
		if accept.IsEmpty() {
			return []protocol.SimResult{}, nil
		}
	}

	var neighbors []vectorindex.Neighbor
	if algo.IsNonLinear() {
		idx, ok := s.nonLinear[algo]
		if !ok {
			return nil, dberrors.IndexNotFound(algo.String())
		}
		ns, err := idx.NNearest(point, n, accept)
		if err != nil {
			return nil, err
		}
		neighbors = ns
	} else {
		candidates := make([]vectorindex.Candidate, 0, len(s.records))
		s.liveIDs.Iterate(func(v uint64) bool {
			if accept != nil && !accept.Contains(v) {
				return true
			}
			if rec, ok := s.records[RecordID(v)]; ok {
				candidates = append(candidates, vectorindex.Candidate{ID: v, Vector: rec.Vector})
			}
			return true
		})
		switch algo {
		case protocol.EuclideanDistance:
			neighbors = vectorindex.ScanEuclidean(candidates, point, n)
		case protocol.CosineSimilarity:
			neighbors = vectorindex.ScanCosine(candidates, point, n)
		case protocol.DotProductSimilarity:
			neighbors = vectorindex.ScanDot(candidates, point, n)
		}
	}

	out := make([]protocol.SimResult, 0, len(neighbors))
	for _, nb := range neighbors {
		rec, ok := s.records[RecordID(nb.ID)]
		if !ok {
			continue
		}
		out = append(out, protocol.SimResult{Vector: nb.Vector, Metadata: rec.Metadata.Clone(), Score: nb.Distance})
	}
	return out, nil
}

// CreatePredIndex registers each key for indexing, retroactively indexing
// existing records. Idempotent per key; returns the count newly created.
func (s *Store) CreatePredIndex(keys []metadata.Key) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var created uint64
	for _, k := range keys {
		if s.predIndex.createIndex(k, s.records) {
			created++
		}
	}
	return created
}

// DropPredIndex removes each key's index. When errorIfMissing is set, the
// first missing key aborts the whole request with PredicateNotFound.
func (s *Store) DropPredIndex(keys []metadata.Key, errorIfMissing bool) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed uint64
	for _, k := range keys {
		if s.predIndex.dropIndex(k) {
			removed++
		} else if errorIfMissing {
			return removed, dberrors.PredicateNotFound(string(k))
		}
	}
	return removed, nil
}

// CreateNonLinearIndex builds a non-linear index for each algorithm not
// already present, populated from the store's current live vectors.
// Idempotent per algorithm; returns the count newly created.
func (s *Store) CreateNonLinearIndex(algos []protocol.Algorithm) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]uint64, 0, len(s.records))
	vecs := make([][]float32, 0, len(s.records))
	for id, rec := range s.records {
		ids = append(ids, uint64(id))
		vecs = append(vecs, rec.Vector)
	}

	pending := make(map[protocol.Algorithm]vectorindex.Index)
	for _, algo := range algos {
		if _, exists := s.nonLinear[algo]; exists {
			continue
		}
		if _, queued := pending[algo]; queued {
			continue
		}
		switch algo {
		case protocol.KDTree:
			pending[algo] = vectorindex.NewKDTree(s.Dim)
		case protocol.HNSW:
			pending[algo] = vectorindex.NewHNSWIndex(s.Dim)
		}
	}

	// Each algorithm's index is independent, so building them (the
	// CPU-heavy part, proportional to the store's record count) happens
	// concurrently, bounded by the configured threadpool size.
	tasks := make([]func(context.Context) error, 0, len(pending))
	for _, idx := range pending {
		idx := idx
		tasks = append(tasks, func(context.Context) error {
			if len(ids) > 0 {
				_ = idx.Insert(ids, vecs)
			}
			return nil
		})
	}
	_ = s.pool.Run(context.Background(), tasks...)

	for algo, idx := range pending {
		s.nonLinear[algo] = idx
	}
	return uint64(len(pending))
}

// DropNonLinearIndex removes each algorithm's index. When errorIfMissing
// is set, the first missing algorithm aborts the whole request with
// IndexNotFound.
func (s *Store) DropNonLinearIndex(algos []protocol.Algorithm, errorIfMissing bool) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed uint64
	for _, algo := range algos {
		if _, exists := s.nonLinear[algo]; exists {
			delete(s.nonLinear, algo)
			removed++
		} else if errorIfMissing {
			return removed, dberrors.IndexNotFound(algo.String())
		}
	}
	return removed, nil
}

// Info summarizes this store for ListStores.
func (s *Store) Info() protocol.StoreInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sizeBytes uint64
	for _, rec := range s.records {
		sizeBytes += recordByteSize(rec.Vector, rec.Metadata)
	}

	s.predIndex.mu.RLock()
	keys := make([]metadata.Key, 0, len(s.predIndex.indexed))
	for k := range s.predIndex.indexed {
		keys = append(keys, k)
	}
	s.predIndex.mu.RUnlock()

	algos := make([]protocol.Algorithm, 0, len(s.nonLinear))
	for a := range s.nonLinear {
		algos = append(algos, a)
	}

	return protocol.StoreInfo{
		Name:             s.Name,
		Dimension:        uint64(s.Dim),
		Length:           uint64(len(s.records)),
		SizeBytes:        sizeBytes,
		PredicateKeys:    keys,
		NonLinearIndexes: algos,
	}
}

// ExportRecords returns every live record, for use by the persistence
// snapshotter.
func (s *Store) ExportRecords() []protocol.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]protocol.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, protocol.Record{Vector: rec.Vector, Metadata: rec.Metadata.Clone()})
	}
	return out
}

// PredicateKeys returns every explicitly indexed predicate key.
func (s *Store) PredicateKeys() []metadata.Key {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.predIndex.mu.RLock()
	defer s.predIndex.mu.RUnlock()
	keys := make([]metadata.Key, 0, len(s.predIndex.indexed))
	for k := range s.predIndex.indexed {
		keys = append(keys, k)
	}
	return keys
}

// ExportNonLinearIndexes serializes every non-linear index currently
// built on this store, keyed by algorithm.
func (s *Store) ExportNonLinearIndexes() (map[protocol.Algorithm][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[protocol.Algorithm][]byte, len(s.nonLinear))
	for algo, idx := range s.nonLinear {
		blob, err := idx.Save()
		if err != nil {
			return nil, err
		}
		out[algo] = blob
	}
	return out, nil
}

// ImportNonLinearIndex restores a single non-linear index from a blob
// previously produced by ExportNonLinearIndexes.
func (s *Store) ImportNonLinearIndex(algo protocol.Algorithm, blob []byte) error {
	var idx vectorindex.Index
	switch algo {
	case protocol.KDTree:
		idx = vectorindex.NewKDTree(s.Dim)
	case protocol.HNSW:
		idx = vectorindex.NewHNSWIndex(s.Dim)
	default:
		return dberrors.IndexNotFound(algo.String())
	}
	if err := idx.Load(blob); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonLinear[algo] = idx
	return nil
}

func (s *Store) keyEverUsedLocked(key metadata.Key) bool {
	for _, rec := range s.records {
		if _, ok := rec.Metadata[key]; ok {
			return true
		}
	}
	return false
}

func collectKeys(cond *predicate.Condition) []metadata.Key {
	if cond == nil {
		return nil
	}
	switch cond.Kind {
	case predicate.NodeValue:
		return []metadata.Key{cond.Predicate.Key}
	case predicate.NodeAnd, predicate.NodeOr:
		return append(collectKeys(cond.Left), collectKeys(cond.Right)...)
	default:
		return nil
	}
}

// evaluateLocked evaluates a predicate condition tree into a candidate
// RecordID bitmap. Callers must hold s.mu (read or write).
func (s *Store) evaluateLocked(cond *predicate.Condition) *roaring64.Bitmap {
	if cond == nil {
		return s.liveIDs.Clone()
	}
	switch cond.Kind {
	case predicate.NodeValue:
		return s.evalLeafLocked(cond.Predicate)
	case predicate.NodeAnd:
		left := s.evaluateLocked(cond.Left)
		left.And(s.evaluateLocked(cond.Right))
		return left
	case predicate.NodeOr:
		left := s.evaluateLocked(cond.Left)
		left.Or(s.evaluateLocked(cond.Right))
		return left
	default:
		return roaring64.New()
	}
}

func (s *Store) evalLeafLocked(p predicate.Predicate) *roaring64.Bitmap {
	switch p.Op {
	case predicate.Equals:
		return s.predIndex.lookup(p.Key, p.Values[0])
	case predicate.In:
		return s.predIndex.lookupUnion(p.Key, p.Values)
	case predicate.NotEquals:
		if s.predIndex.hasIndex(p.Key) {
			out := s.liveIDs.Clone()
			out.AndNot(s.predIndex.lookup(p.Key, p.Values[0]))
			return out
		}
		return s.scanLocked(func(m metadata.Map) bool {
			return predicate.Predicate{Key: p.Key, Op: predicate.NotEquals, Values: p.Values}.Matches(m)
		})
	case predicate.NotIn:
		if s.predIndex.hasIndex(p.Key) {
			out := s.liveIDs.Clone()
			out.AndNot(s.predIndex.lookupUnion(p.Key, p.Values))
			return out
		}
		return s.scanLocked(func(m metadata.Map) bool {
			return predicate.Predicate{Key: p.Key, Op: predicate.NotIn, Values: p.Values}.Matches(m)
		})
	default:
		return roaring64.New()
	}
}

func (s *Store) scanLocked(match func(metadata.Map) bool) *roaring64.Bitmap {
	out := roaring64.New()
	for id, rec := range s.records {
		if match(rec.Metadata) {
			out.Add(uint64(id))
		}
	}
	return out
}
