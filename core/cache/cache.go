// Package cache memoizes solve results per scenario fingerprint with
// single-writer-per-key semantics: concurrent requests for the same
// fingerprint await one in-flight computation instead of recomputing.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/transitionlab/fleetpath/core/model"
)

// Config sizes the result cache.
type Config struct {
	// Size is the maximum number of retained results.
	Size int `json:"size"`
}

// SetDefaults applies the default capacity.
func (c *Config) SetDefaults() {
	if c.Size <= 0 {
		c.Size = 128
	}
}

// Cache is a bounded memoization cache keyed by fingerprint. The zero value
// is not usable; construct with New.
type Cache[V any] struct {
	group singleflight.Group
	store *lru.Cache[string, V]
}

// New returns a cache retaining up to size entries.
func New[V any](size int) (*Cache[V], error) {
	store, err := lru.New[string, V](size)
	if err != nil {
		return nil, err
	}
	return &Cache[V]{store: store}, nil
}

// GetOrCompute returns the cached value for key, or runs compute exactly once
// per key across concurrent callers. The value is cached only when compute
// reports it as storable, so run-specific outcomes such as cancelled runs can
// be returned without poisoning the cache. Compute errors are returned to
// every waiter and nothing is cached.
func (c *Cache[V]) GetOrCompute(key string, compute func() (V, bool, error)) (V, error) {
	if v, ok := c.store.Get(key); ok {
		return v, nil
	}
	res, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.store.Get(key); ok {
			return v, nil
		}
		v, store, err := compute()
		if err != nil {
			return v, err
		}
		if store {
			c.store.Add(key, v)
		}
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// Peek returns the cached value without promoting it.
func (c *Cache[V]) Peek(key string) (V, bool) {
	return c.store.Peek(key)
}

// Len returns the number of cached entries.
func (c *Cache[V]) Len() int { return c.store.Len() }

// Fingerprint derives the cache key for a scenario against a catalog
// version. The scenario is canonically encoded; map keys are sorted by the
// JSON encoder, so structurally identical scenarios share a fingerprint.
func Fingerprint(sc model.ScenarioDefinition, catalogVersion string) string {
	h := sha256.New()
	b, _ := json.Marshal(sc)
	h.Write(b)
	h.Write([]byte(catalogVersion))
	return hex.EncodeToString(h.Sum(nil))
}
