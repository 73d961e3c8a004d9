// Package cache memoizes translation results keyed by a caller-supplied
// digest of (collection, pipeline, options). It stores opaque
// already-serialized payloads: the facade owns TranslationResult's shape,
// this package only owns the eko/gocache-backed store wiring so there is
// no import cycle between the two.
package cache

import (
	"context"
	"time"

	gocache "github.com/eko/gocache/lib/v4/cache"
	gocache_store "github.com/eko/gocache/store/go_cache/v4"
	go_cache "github.com/patrickmn/go-cache"
)

// TranslationCache is a process-local, in-memory memoization cache for
// rendered translation results.
type TranslationCache struct {
	store *gocache.Cache[string]
	ttl   time.Duration
}

// New builds a TranslationCache with the given entry lifetime. A ttl of
// zero falls back to go-cache's "never expire" sentinel.
func New(ttl time.Duration) *TranslationCache {
	expiration := ttl
	if expiration <= 0 {
		expiration = go_cache.NoExpiration
	}
	client := go_cache.New(expiration, expiration*2)
	store := gocache_store.NewGoCache(client)
	return &TranslationCache{store: gocache.New[string](store), ttl: ttl}
}

// Get returns the cached payload for key, or ("", false) on a miss.
func (c *TranslationCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.store.Get(ctx, key)
	if err != nil {
		return "", false
	}
	return val, true
}

// Set stores payload under key, overwriting any prior entry.
func (c *TranslationCache) Set(ctx context.Context, key, payload string) error {
	return c.store.Set(ctx, key, payload)
}
