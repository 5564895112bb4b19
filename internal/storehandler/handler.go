// Package storehandler implements the registry of stores by name, their
// lifecycle operations, and the dirty flag consumed by persistence.
package storehandler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ahnlich/ahnlich-db/internal/dberrors"
	"github.com/ahnlich/ahnlich-db/internal/memguard"
	"github.com/ahnlich/ahnlich-db/internal/metadata"
	"github.com/ahnlich/ahnlich-db/internal/protocol"
	"github.com/ahnlich/ahnlich-db/internal/store"
	"github.com/ahnlich/ahnlich-db/internal/workerpool"
	"github.com/ahnlich/ahnlich-db/pkg/version"
)

// Handler is the registry of every Store on the engine, keyed by name.
// Readers take shared access to the map; Create/Drop take exclusive
// access only for the duration of the map mutation itself.
type Handler struct {
	mu       sync.RWMutex
	stores   map[string]*store.Store
	dirty    atomic.Bool
	governor *memguard.Governor
	pool     *workerpool.Pool
	start    time.Time
}

// New constructs an empty Handler. governor may be nil to disable the
// memory cap (used in tests). threadpoolSize bounds how many non-linear
// indexes a single CreateNonLinearIndex call builds concurrently; 0 leaves it
// unbounded.
func New(governor *memguard.Governor, threadpoolSize int) *Handler {
	return &Handler{
		stores:   make(map[string]*store.Store),
		governor: governor,
		pool:     workerpool.New(threadpoolSize),
		start:    time.Now(),
	}
}

// CreateStore registers a new store. Fails with StoreAlreadyExists if a
// store of that name is already registered and errorIfExists is set (the
// spec's contract always sets it; the flag exists for symmetry with the
// Drop side's optional strictness).
func (h *Handler) CreateStore(name string, dim int, predicateKeys []metadata.Key, errorIfExists bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.stores[name]; exists {
		if errorIfExists {
			return dberrors.StoreAlreadyExists(name)
		}
		return nil
	}
	h.stores[name] = store.New(name, dim, predicateKeys, h.governor, h.pool)
	h.markDirty()
	return nil
}

// DropStore removes a store, returning the count removed (0 or 1). Fails
// with StoreNotFound when errorIfNotExists is set and no such store
// exists.
func (h *Handler) DropStore(name string, errorIfNotExists bool) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, exists := h.stores[name]
	if !exists {
		if errorIfNotExists {
			return 0, dberrors.StoreNotFound(name)
		}
		return 0, nil
	}
	delete(h.stores, name)
	if h.governor != nil {
		h.governor.Release(s.Info().SizeBytes)
	}
	h.markDirty()
	return 1, nil
}

// Get returns the named store, or StoreNotFound.
func (h *Handler) Get(name string) (*store.Store, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s, exists := h.stores[name]
	if !exists {
		return nil, dberrors.StoreNotFound(name)
	}
	return s, nil
}

// ListStores summarizes every registered store.
func (h *Handler) ListStores() protocol.StoreInfoList {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := make([]protocol.StoreInfo, 0, len(h.stores))
	for _, s := range h.stores {
		infos = append(infos, s.Info())
	}
	return protocol.StoreInfoList{Stores: infos}
}

// InfoServer reports build/version/uptime/client-count information.
// connectedClients is supplied by the caller since client tracking
// belongs to the connection layer, not the store handler.
func (h *Handler) InfoServer(connectedClients uint64) protocol.ServerInfo {
	return protocol.ServerInfo{
		Version:          version.Short(),
		Type:             "ahnlich-db",
		Uptime:           time.Since(h.start),
		ConnectedClients: connectedClients,
	}
}

// MarkDirty sets the dirty flag, signaling the persistence snapshotter
// that store state has changed since the last snapshot.
func (h *Handler) MarkDirty() {
	h.markDirty()
}

func (h *Handler) markDirty() {
	h.dirty.Store(true)
}

// TakeDirty atomically reads and clears the dirty flag, returning whether
// it was set. Used by the persistence snapshotter's tick.
func (h *Handler) TakeDirty() bool {
	return h.dirty.Swap(false)
}

// MarkDirtyIfMutating sets the dirty flag when a Query's execution
// mutated store state and did not error.
func (h *Handler) MarkDirtyIfMutating(mutating bool, err error) {
	if mutating && err == nil {
		h.markDirty()
	}
}
