// Package cache provides the byte-budgeted LRU that memoizes resolved index
// nodes. Loads are single-flight: concurrent lookups of one missing key share
// a single loader invocation, and loader failures never populate the cache.
package cache

import (
	"context"

	"github.com/fluree/fluree-go/pkg/apperr"
	"github.com/fluree/fluree-go/pkg/constant"
	"github.com/fluree/fluree-go/pkg/mlog"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultMemoryBytes is assumed when no budget is configured.
	DefaultMemoryBytes = 1 << 20
	// estimatedEntryBytes approximates the in-memory footprint of one resolved node.
	estimatedEntryBytes = 100 * 1024
	// minEntries is the smallest admissible budget; start-up is refused below it.
	minEntries = 10
)

// Loader materializes the value for a missing key.
type Loader func(ctx context.Context) (any, error)

// EvictFn observes evictions so downstream holders can release resolved child
// lists or flake sets promptly.
type EvictFn func(key string, value any)

// ResolverCache is a size-budgeted LRU with in-flight load deduplication.
type ResolverCache struct {
	lru    *lru.Cache[string, any]
	flight singleflight.Group
	logger mlog.Logger
}

// New converts the byte budget into an approximate entry count and builds the
// cache. A zero budget falls back to DefaultMemoryBytes; a budget admitting
// fewer than minEntries entries is refused.
func New(memoryBytes int64, onEvict EvictFn, logger mlog.Logger) (*ResolverCache, error) {
	if memoryBytes <= 0 {
		memoryBytes = DefaultMemoryBytes
	}

	entries := int(memoryBytes / estimatedEntryBytes)
	if entries < minEntries {
		return nil, apperr.NewWithCode(apperr.KindInvalidConfiguration, constant.ErrCacheBudgetTooSmall,
			"cache memory of %d bytes admits only %d entries, minimum is %d", memoryBytes, entries, minEntries)
	}

	if logger == nil {
		logger = &mlog.NoneLogger{}
	}

	var evict func(string, any)
	if onEvict != nil {
		evict = onEvict
	}

	inner, err := lru.NewWithEvict[string, any](entries, evict)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidConfiguration, err, "building lru")
	}

	return &ResolverCache{lru: inner, logger: logger}, nil
}

// Lookup returns the cached value for key, loading it at most once across
// concurrent callers on a miss. A nil loader evicts the key instead. The
// cache is write-through: insertion never precedes a successful load, and a
// failed load leaves the cache untouched while every in-flight waiter
// observes the error.
func (c *ResolverCache) Lookup(ctx context.Context, key string, loader Loader) (any, error) {
	if loader == nil {
		c.lru.Remove(key)
		return nil, nil
	}

	if v, ok := c.lru.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.flight.Do(key, func() (any, error) {
		// A racing flight may have completed while this caller queued.
		if v, ok := c.lru.Get(key); ok {
			return v, nil
		}

		v, err := loader(ctx)
		if err != nil {
			return nil, err
		}

		c.lru.Add(key, v)

		return v, nil
	})
	if err != nil {
		return nil, err
	}

	return v, nil
}

// Len reports the number of resident entries.
func (c *ResolverCache) Len() int {
	return c.lru.Len()
}

// Purge drops every entry, firing the evict hook for each.
func (c *ResolverCache) Purge() {
	c.lru.Purge()
}
