// Package cache holds recently computed duplicate reports and deletion
// plans so repeated API reads do not trigger a full sync each time.
// Entries are keyed by knowledge base and expire after a TTL.
package cache

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Kinds of cached results.
const (
	KindReport = "duplicates"
	KindPlan   = "plan"
)

// Cache wraps go-cache with per knowledge base invalidation.
type Cache struct {
	store *gocache.Cache
}

// New creates a new cache with the given TTL and cleanup interval.
func New(ttl, cleanupInterval time.Duration) *Cache {
	return &Cache{
		store: gocache.New(ttl, cleanupInterval),
	}
}

func key(kbID, kind string) string {
	return kbID + "/" + kind
}

// Get retrieves the cached result of kind for kbID.
func (c *Cache) Get(kbID, kind string) (any, bool) {
	return c.store.Get(key(kbID, kind))
}

// Set stores a result with the default TTL.
func (c *Cache) Set(kbID, kind string, value any) {
	c.store.Set(key(kbID, kind), value, gocache.DefaultExpiration)
}

// Invalidate drops every cached result of kbID.
func (c *Cache) Invalidate(kbID string) {
	prefix := kbID + "/"
	for k := range c.store.Items() {
		if strings.HasPrefix(k, prefix) {
			c.store.Delete(k)
		}
	}
}

// Clear removes all items from the cache.
func (c *Cache) Clear() {
	c.store.Flush()
}

// ItemCount returns the number of items in the cache.
func (c *Cache) ItemCount() int {
	return c.store.ItemCount()
}
