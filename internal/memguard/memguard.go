// Package memguard enforces a global byte cap on the engine's resident
// data. Go offers no pluggable global-allocator hook equivalent to the
// upstream engine's custom allocator wrapper, so the cap is enforced
// explicitly: every mutating store operation that grows resident data
// reserves bytes up front and releases them on removal, rather than the
// runtime's own allocator being intercepted.
package memguard

import (
	"sync/atomic"

	"github.com/ahnlich/ahnlich-db/internal/dberrors"
)

// defaultReserve is kept free at all times so panic-path and shutdown-path
// allocations (error messages, snapshot headers) always succeed even when
// the configured cap is otherwise exhausted.
const defaultReserve uint64 = 1000

// Governor tracks resident bytes against a configured cap minus a fixed
// reserve.
type Governor struct {
	cap      uint64
	reserve  uint64
	reserved atomic.Uint64
}

// New constructs a Governor with the given cap in bytes. A reserve of
// defaultReserve bytes is held back; if cap is smaller than the reserve,
// no reserve is held (headroom is disabled) so a tiny configured cap
// never makes every allocation fail outright.
func New(capBytes uint64) *Governor {
	reserve := defaultReserve
	if capBytes < reserve {
		reserve = 0
	}
	return &Governor{cap: capBytes, reserve: reserve}
}

// Reserve accounts for n additional resident bytes, failing with
// AllocatorExhausted if doing so would cross the cap minus reserve.
func (g *Governor) Reserve(n uint64) error {
	limit := g.cap - g.reserve
	for {
		cur := g.reserved.Load()
		next := cur + n
		if next > limit {
			return dberrors.AllocatorExhausted(n, g.cap)
		}
		if g.reserved.CompareAndSwap(cur, next) {
			return nil
		}
	}
}

// Release returns n previously reserved bytes to the available pool.
func (g *Governor) Release(n uint64) {
	for {
		cur := g.reserved.Load()
		next := cur
		if n > cur {
			next = 0
		} else {
			next = cur - n
		}
		if g.reserved.CompareAndSwap(cur, next) {
			return
		}
	}
}

// Reserved reports the number of bytes currently accounted for.
func (g *Governor) Reserved() uint64 {
	return g.reserved.Load()
}

// Cap reports the configured cap in bytes.
func (g *Governor) Cap() uint64 {
	return g.cap
}
