package server

import (
	"sync"
	"time"

	"github.com/ahnlich/ahnlich-db/internal/protocol"
)

// ClientRegistry is the concurrent set of currently connected clients,
// keyed by remote address. ListClients reads a snapshot that may be
// slightly stale relative to concurrent accepts/disconnects.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]time.Time
}

// NewClientRegistry constructs an empty registry.
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{clients: make(map[string]time.Time)}
}

// Register adds address to the set, recording its connect time.
func (r *ClientRegistry) Register(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[address] = time.Now()
}

// Unregister removes address from the set.
func (r *ClientRegistry) Unregister(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, address)
}

// Count reports the current live client count.
func (r *ClientRegistry) Count() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint64(len(r.clients))
}

// Snapshot returns every currently connected client.
func (r *ClientRegistry) Snapshot() []protocol.ConnectedClient {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]protocol.ConnectedClient, 0, len(r.clients))
	for addr, at := range r.clients {
		out = append(out, protocol.ConnectedClient{Address: addr, ConnectedAt: at})
	}
	return out
}
