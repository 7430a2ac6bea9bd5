// Package util holds small pieces shared across the CLI and the assembler
// that don't belong to any single domain package.
package util

import (
	"time"

	cache "github.com/patrickmn/go-cache"
)

// NotFoundCache memoizes "this path does not exist yet" lookups for a short
// TTL so a reader polling for an hourly file that hasn't been written yet
// doesn't re-stat the filesystem (or object store) on every tick.
type NotFoundCache struct {
	c *cache.Cache
}

// NewNotFoundCache creates a cache whose entries expire after ttl, cleaned
// up roughly every 2*ttl.
func NewNotFoundCache(ttl time.Duration) *NotFoundCache {
	return &NotFoundCache{c: cache.New(ttl, 2*ttl)}
}

// Remember records that path was not found as of now.
func (n *NotFoundCache) Remember(path string) {
	n.c.Set(path, struct{}{}, cache.DefaultExpiration)
}

// RecentlyNotFound reports whether path was recorded as not-found and the
// memoized result hasn't expired yet.
func (n *NotFoundCache) RecentlyNotFound(path string) bool {
	_, found := n.c.Get(path)
	return found
}

// Forget clears a memoized not-found result, e.g. once the path is observed
// to exist.
func (n *NotFoundCache) Forget(path string) {
	n.c.Delete(path)
}
