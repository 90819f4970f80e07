package store

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/app-sre/proms-mcp/internal/core"
)

// DefaultCapacity bounds the identity cache. Live-but-cold entries may be
// dropped by the LRU before their TTL runs out; this is a cache, not a
// registry of sessions.
const DefaultCapacity = 1000

type cacheEntry struct {
	identity  core.Identity
	expiresAt time.Time
}

// IdentityCache keeps verified identities for a bounded time, keyed by a
// one-way hash of the credential. The raw credential never enters the map.
type IdentityCache struct {
	mu      sync.Mutex
	entries *simplelru.LRU[string, cacheEntry]
	now     func() time.Time
}

var _ core.IdentityCache = (*IdentityCache)(nil)

func NewIdentityCache(capacity int) (*IdentityCache, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	entries, err := simplelru.NewLRU[string, cacheEntry](capacity, nil)
	if err != nil {
		return nil, err
	}
	return &IdentityCache{
		entries: entries,
		now:     time.Now,
	}, nil
}

func (c *IdentityCache) Store(credential string, id core.Identity, ttl time.Duration) {
	key := hashCredential(credential)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Add(key, cacheEntry{
		identity:  id.Clone(),
		expiresAt: c.now().Add(ttl),
	})
}

func (c *IdentityCache) Lookup(credential string) (core.Identity, bool) {
	key := hashCredential(credential)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries.Get(key)
	if !ok {
		return core.Identity{}, false
	}
	if entry.expiresAt.Before(c.now()) {
		// lazy expiry: drop on read, report a miss
		c.entries.Remove(key)
		return core.Identity{}, false
	}
	return entry.identity.Clone(), true
}

func (c *IdentityCache) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	evicted := 0
	for _, key := range c.entries.Keys() {
		entry, ok := c.entries.Peek(key)
		if !ok {
			continue
		}
		if entry.expiresAt.Before(now) {
			c.entries.Remove(key)
			evicted++
		}
	}
	return evicted
}

func (c *IdentityCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Purge()
}

func (c *IdentityCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.entries.Len()
}

// hashCredential derives the cache key. SHA-256, hex, truncated to 16 chars;
// enough to avoid collisions in practice while keeping keys short.
func hashCredential(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])[:16]
}
