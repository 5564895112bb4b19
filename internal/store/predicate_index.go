package store

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/ahnlich/ahnlich-db/internal/metadata"
)

// predicateIndex is the per-store inverted index from (metadata key,
// metadata value) to the set of record ids carrying that value. Only
// explicitly indexed keys (via CreatePredIndex) hold postings; queries
// against an unindexed key either return empty (Equals/In) or fall back
// to a full scan (NotEquals/NotIn).
type predicateIndex struct {
	mu       sync.RWMutex
	indexed  map[metadata.Key]bool
	postings map[metadata.Key]map[string]*roaring64.Bitmap
}

func newPredicateIndex() *predicateIndex {
	return &predicateIndex{
		indexed:  make(map[metadata.Key]bool),
		postings: make(map[metadata.Key]map[string]*roaring64.Bitmap),
	}
}

// hasIndex reports whether key has been explicitly indexed.
func (p *predicateIndex) hasIndex(key metadata.Key) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.indexed[key]
}

// createIndex registers key for indexing and retroactively indexes every
// record's current value for that key. Idempotent: creating an
// already-indexed key is a no-op and reports false (not newly created).
func (p *predicateIndex) createIndex(key metadata.Key, records map[RecordID]*Record) bool {
	p.mu.Lock()
	if p.indexed[key] {
		p.mu.Unlock()
		return false
	}
	p.indexed[key] = true
	p.postings[key] = make(map[string]*roaring64.Bitmap)
	p.mu.Unlock()

	for id, rec := range records {
		if v, ok := rec.Metadata[key]; ok {
			p.add(key, v, id)
		}
	}
	return true
}

// dropIndex removes key and all of its postings. Returns true if the key
// was indexed (and is now removed).
func (p *predicateIndex) dropIndex(key metadata.Key) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.indexed[key] {
		return false
	}
	delete(p.indexed, key)
	delete(p.postings, key)
	return true
}

func (p *predicateIndex) add(key metadata.Key, v metadata.Value, id RecordID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	byKey, ok := p.postings[key]
	if !ok {
		return
	}
	vk := v.Key()
	bm, ok := byKey[vk]
	if !ok {
		bm = roaring64.New()
		byKey[vk] = bm
	}
	bm.Add(uint64(id))
}

func (p *predicateIndex) remove(key metadata.Key, v metadata.Value, id RecordID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	byKey, ok := p.postings[key]
	if !ok {
		return
	}
	if bm, ok := byKey[v.Key()]; ok {
		bm.Remove(uint64(id))
	}
}

// indexRecord adds postings for every indexed key present in m.
func (p *predicateIndex) indexRecord(id RecordID, m metadata.Map) {
	for k, v := range m {
		if p.hasIndex(k) {
			p.add(k, v, id)
		}
	}
}

// deindexRecord removes postings for every indexed key present in m.
func (p *predicateIndex) deindexRecord(id RecordID, m metadata.Map) {
	for k, v := range m {
		if p.hasIndex(k) {
			p.remove(k, v, id)
		}
	}
}

// diffRecord updates postings when a record's metadata is replaced
// in-place: postings for keys/values present only in old are removed,
// postings for keys/values present only in new are added.
func (p *predicateIndex) diffRecord(id RecordID, old, next metadata.Map) {
	for k, v := range old {
		if nv, ok := next[k]; ok && nv.Equal(v) {
			continue
		}
		p.remove(k, v, id)
	}
	for k, v := range next {
		if ov, ok := old[k]; ok && ov.Equal(v) {
			continue
		}
		if p.hasIndex(k) {
			p.add(k, v, id)
		}
	}
}

// lookup returns the posting bitmap for (key,value), or an empty bitmap
// if the key is unindexed or the value has no postings.
func (p *predicateIndex) lookup(key metadata.Key, v metadata.Value) *roaring64.Bitmap {
	p.mu.RLock()
	defer p.mu.RUnlock()
	byKey, ok := p.postings[key]
	if !ok {
		return roaring64.New()
	}
	if bm, ok := byKey[v.Key()]; ok {
		return bm.Clone()
	}
	return roaring64.New()
}

// lookupUnion returns the union of posting bitmaps for key across values.
func (p *predicateIndex) lookupUnion(key metadata.Key, values []metadata.Value) *roaring64.Bitmap {
	out := roaring64.New()
	for _, v := range values {
		out.Or(p.lookup(key, v))
	}
	return out
}
