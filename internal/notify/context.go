package notify

import (
	"maps"
	"sync"
)

// ContextMap stores published context flags. It implements
// session.ContextSink.
type ContextMap struct {
	mu     sync.RWMutex
	values map[string]bool
}

// NewContextMap creates an empty map.
func NewContextMap() *ContextMap {
	return &ContextMap{values: make(map[string]bool)}
}

func (c *ContextMap) SetContext(key string, value bool) {
	c.mu.Lock()
	c.values[key] = value
	c.mu.Unlock()
}

// Get returns the value of key, false when unset.
func (c *ContextMap) Get(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[key]
}

// Snapshot returns a copy of all keys.
func (c *ContextMap) Snapshot() map[string]bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.values)
}
