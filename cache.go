package main

import (
	"sync"
	"time"
)

// ModelCache provides thread-safe TTL caching for the model catalog, so
// every settings-panel open doesn't hit the upstream models endpoint.
type ModelCache struct {
	mu          sync.RWMutex
	models      []CatalogModel
	lastUpdated time.Time
	ttl         time.Duration
}

// NewModelCache creates a catalog cache with the specified TTL.
func NewModelCache(ttl time.Duration) *ModelCache {
	return &ModelCache{ttl: ttl}
}

// Get retrieves the catalog from cache if present and not expired.
func (c *ModelCache) Get() ([]CatalogModel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.models) == 0 {
		return nil, false
	}
	if time.Since(c.lastUpdated) > c.ttl {
		return nil, false
	}

	// Return a copy to prevent external modification
	models := make([]CatalogModel, len(c.models))
	copy(models, c.models)
	return models, true
}

// Set replaces the cached catalog.
func (c *ModelCache) Set(models []CatalogModel) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.models = make([]CatalogModel, len(models))
	copy(c.models, models)
	c.lastUpdated = time.Now()
}

// Clear empties the cache.
func (c *ModelCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.models = nil
	c.lastUpdated = time.Time{}
}

// LastUpdated returns when the cache was last populated.
func (c *ModelCache) LastUpdated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdated
}

// IsExpired reports whether the cache needs a refresh.
func (c *ModelCache) IsExpired() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.models) == 0 {
		return true
	}
	return time.Since(c.lastUpdated) > c.ttl
}

// Size returns the number of cached catalog entries.
func (c *ModelCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.models)
}
