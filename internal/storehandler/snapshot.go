package storehandler

import (
	"github.com/ahnlich/ahnlich-db/internal/metadata"
	"github.com/ahnlich/ahnlich-db/internal/protocol"
	"github.com/ahnlich/ahnlich-db/internal/store"
	"github.com/ahnlich/ahnlich-db/internal/wire"
)

// StoreSnapshot is the gob-encodable persisted form of one Store.
type StoreSnapshot struct {
	Name          string
	Dim           int
	PredicateKeys []metadata.Key
	Records       []protocol.Record
	NonLinear     map[protocol.Algorithm][]byte
}

// Snapshot is the gob-encodable persisted form of the whole Handler,
// versioned with the same major-version discipline as the wire protocol.
type Snapshot struct {
	Version wire.Version
	Stores  []StoreSnapshot
}

// Export builds a Snapshot of every registered store's current state.
func (h *Handler) Export() (Snapshot, error) {
	h.mu.RLock()
	names := make([]*store.Store, 0, len(h.stores))
	for _, s := range h.stores {
		names = append(names, s)
	}
	h.mu.RUnlock()

	snap := Snapshot{Version: wire.CurrentVersion, Stores: make([]StoreSnapshot, 0, len(names))}
	for _, s := range names {
		nonLinear, err := s.ExportNonLinearIndexes()
		if err != nil {
			return Snapshot{}, err
		}
		snap.Stores = append(snap.Stores, StoreSnapshot{
			Name:          s.Name,
			Dim:           s.Dim,
			PredicateKeys: s.PredicateKeys(),
			Records:       s.ExportRecords(),
			NonLinear:     nonLinear,
		})
	}
	return snap, nil
}

// Import replaces the handler's entire store set from a Snapshot. The
// caller is responsible for checking Snapshot.Version compatibility
// before calling Import; an incompatible snapshot is a fatal startup
// error, not a partial-load condition.
func (h *Handler) Import(snap Snapshot) error {
	stores := make(map[string]*store.Store, len(snap.Stores))
	for _, ss := range snap.Stores {
		s := store.New(ss.Name, ss.Dim, ss.PredicateKeys, h.governor, h.pool)
		if len(ss.Records) > 0 {
			if _, _, err := s.Set(ss.Records); err != nil {
				return err
			}
		}
		for algo, blob := range ss.NonLinear {
			if err := s.ImportNonLinearIndex(algo, blob); err != nil {
				return err
			}
		}
		stores[ss.Name] = s
	}

	h.mu.Lock()
	h.stores = stores
	h.mu.Unlock()
	return nil
}
