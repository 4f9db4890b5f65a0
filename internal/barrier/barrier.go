// Package barrier provides a reusable rendezvous point for a fixed number
// of goroutines. It shares no state with the rest of the module and can be
// used by any component.
package barrier

import (
	"errors"
	"sync"

	"github.com/davrk/membank/internal/metrics"
)

// ErrBadParties is returned when a barrier is created for fewer than one
// party.
var ErrBadParties = errors.New("barrier requires at least one party")

// Barrier blocks callers of Wait until the configured number of parties
// have arrived, then releases them all together. The arrival counter
// resets on release, so the same barrier serves any number of cycles.
type Barrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	parties int
	count   int
	// generation distinguishes cycles so a releasing broadcast cannot be
	// consumed by latecomers of the next cycle.
	generation uint64
}

// New creates a barrier for the given number of parties.
func New(parties int) (*Barrier, error) {
	if parties < 1 {
		return nil, ErrBadParties
	}
	b := &Barrier{parties: parties}
	b.cond = sync.NewCond(&b.mu)
	return b, nil
}

// Wait blocks until all parties have called Wait for the current cycle.
// The last arrival releases everyone and starts a new cycle.
func (b *Barrier) Wait() {
	b.mu.Lock()
	defer b.mu.Unlock()

	gen := b.generation
	b.count++
	if b.count == b.parties {
		b.count = 0
		b.generation++
		metrics.BarrierWaitsTotal.Inc()
		b.cond.Broadcast()
		return
	}
	for gen == b.generation {
		b.cond.Wait()
	}
}

// Parties returns the number of parties the barrier waits for.
func (b *Barrier) Parties() int {
	return b.parties
}
