package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/fedsql/fedsql/internal/sql/types"
	"github.com/fedsql/fedsql/internal/util/timeutil"
)

// Cache memoizes completed query results. Entries are keyed by the
// canonical statement rendering plus the bound parameters, so
// whitespace and keyword-case noise share an entry while different
// bindings do not. Entries are never mutated: lookups hand out clones
// and refreshes replace wholesale.
type Cache struct {
	lru *expirable.LRU[string, *cacheEntry]
}

type cacheEntry struct {
	result    *types.ResultSet
	createdAt time.Time
	ttl       time.Duration
}

// NewCache creates a cache bounded by size and defaultTTL. The LRU
// evicts by both capacity and age; per-entry TTLs shorter than the
// default are enforced on lookup.
func NewCache(size int, defaultTTL time.Duration) *Cache {
	if size <= 0 {
		size = 128
	}
	return &Cache{lru: expirable.NewLRU[string, *cacheEntry](size, nil, defaultTTL)}
}

// CacheKey derives the lookup key from a canonical statement and its
// parameters.
func CacheKey(canonicalSQL string, params []types.Value) string {
	h := sha256.New()
	io.WriteString(h, canonicalSQL)
	for _, p := range params {
		h.Write([]byte{0})
		io.WriteString(h, p.Kind.String())
		h.Write([]byte{':'})
		io.WriteString(h, p.String())
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a clone of the cached result, or nil on miss or expiry.
func (c *Cache) Get(key string) (*types.ResultSet, bool) {
	if c == nil {
		return nil, false
	}
	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if entry.ttl > 0 && timeutil.Since(entry.createdAt) > entry.ttl {
		c.lru.Remove(key)
		return nil, false
	}
	return entry.result.Clone(), true
}

// Put stores a clone of the result under the key with its own TTL.
func (c *Cache) Put(key string, result *types.ResultSet, ttl time.Duration) {
	if c == nil || result == nil {
		return
	}
	c.lru.Add(key, &cacheEntry{
		result:    result.Clone(),
		createdAt: timeutil.Now(),
		ttl:       ttl,
	})
}

// Clear drops every entry.
func (c *Cache) Clear() {
	if c == nil {
		return
	}
	c.lru.Purge()
}

// Len reports the live entry count.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
