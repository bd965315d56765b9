package cache

import (
	"context"
	"sync"

	"github.com/shule-app/shule/core/session"
)

// DummyCache is an in-memory query cache for tests and single-node runs.
type DummyCache struct {
	mu      sync.RWMutex
	entries map[session.TenantID]map[string][]byte
}

var _ QueryCache = (*DummyCache)(nil)

func NewDummyCache() *DummyCache {
	return &DummyCache{entries: make(map[session.TenantID]map[string][]byte)}
}

func (c *DummyCache) Get(_ context.Context, tenant session.TenantID, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	val, ok := c.entries[tenant][key]
	if !ok {
		return nil, ErrMiss
	}
	return val, nil
}

func (c *DummyCache) Set(_ context.Context, tenant session.TenantID, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries[tenant] == nil {
		c.entries[tenant] = make(map[string][]byte)
	}
	c.entries[tenant][key] = value
	return nil
}

func (c *DummyCache) ClearTenant(_ context.Context, tenant session.TenantID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, tenant)
	return nil
}

func (c *DummyCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[session.TenantID]map[string][]byte)
	return nil
}

// Len reports the number of cached entries across all tenants.
func (c *DummyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var n int
	for _, t := range c.entries {
		n += len(t)
	}
	return n
}
