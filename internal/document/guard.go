package document

import (
	"sync"
	"sync/atomic"
)

// Guard marks programmatic mutations so change observers can ignore them.
// At most one guarded mutation is in flight at a time.
type Guard struct {
	mu     sync.Mutex
	active atomic.Bool
}

// Do sets the guard, runs the mutation and clears the guard on every exit
// path, including panics.
func (g *Guard) Do(mutate func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.active.Store(true)
	defer g.active.Store(false)

	return mutate()
}

// Active reports whether a guarded mutation is in flight.
func (g *Guard) Active() bool {
	return g.active.Load()
}
