package authz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CacheKey identifies one cached decision. TenantID is uuid.Nil for
// platform-level users.
type CacheKey struct {
	UserID       uuid.UUID
	TenantID     uuid.UUID
	ResourceType string
	Action       string
}

// String renders the redis key layout shared by all cache backends.
func (k CacheKey) String() string {
	return fmt.Sprintf("authz:decision:%s:%s:%s:%s", k.TenantID, k.UserID, k.ResourceType, k.Action)
}

// DecisionCache stores resolved decisions with a TTL. Implementations must
// tolerate concurrent use; writes for the same key are last-write-wins
// (recomputation is deterministic for a given catalog snapshot).
type DecisionCache interface {
	Get(ctx context.Context, key CacheKey) (Decision, bool, error)
	Set(ctx context.Context, key CacheKey, decision Decision, ttl time.Duration) error
	InvalidateUser(ctx context.Context, userID uuid.UUID) error
	InvalidateTenant(ctx context.Context, tenantID uuid.UUID) error
	InvalidateAll(ctx context.Context) error
}

type memoryEntry struct {
	decision  Decision
	expiresAt time.Time
}

// MemoryCache is an in-process DecisionCache. Reads are lock-free; expired
// entries are treated as misses and reclaimed lazily on read, with an
// optional background sweep for memory pressure.
type MemoryCache struct {
	entries sync.Map // CacheKey -> memoryEntry
	now     func() time.Time
}

// NewMemoryCache constructs an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{now: time.Now}
}

// Get returns the cached decision unless the TTL elapsed.
func (c *MemoryCache) Get(ctx context.Context, key CacheKey) (Decision, bool, error) {
	value, ok := c.entries.Load(key)
	if !ok {
		return Decision{}, false, nil
	}
	entry := value.(memoryEntry)
	if c.now().After(entry.expiresAt) {
		c.entries.Delete(key)
		return Decision{}, false, nil
	}
	return entry.decision, true, nil
}

// Set stores the decision with the given TTL.
func (c *MemoryCache) Set(ctx context.Context, key CacheKey, decision Decision, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.entries.Store(key, memoryEntry{decision: decision, expiresAt: c.now().Add(ttl)})
	return nil
}

// Invalidate removes every entry matching the predicate.
func (c *MemoryCache) Invalidate(predicate func(CacheKey) bool) {
	c.entries.Range(func(key, _ any) bool {
		if predicate(key.(CacheKey)) {
			c.entries.Delete(key)
		}
		return true
	})
}

// InvalidateUser removes all entries for the user.
func (c *MemoryCache) InvalidateUser(ctx context.Context, userID uuid.UUID) error {
	c.Invalidate(func(key CacheKey) bool { return key.UserID == userID })
	return nil
}

// InvalidateTenant removes all entries for the tenant.
func (c *MemoryCache) InvalidateTenant(ctx context.Context, tenantID uuid.UUID) error {
	c.Invalidate(func(key CacheKey) bool { return key.TenantID == tenantID })
	return nil
}

// InvalidateAll drops every entry.
func (c *MemoryCache) InvalidateAll(ctx context.Context) error {
	c.Invalidate(func(CacheKey) bool { return true })
	return nil
}

// StartSweeper reclaims expired entries until the context is cancelled.
func (c *MemoryCache) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := c.now()
				c.entries.Range(func(key, value any) bool {
					if now.After(value.(memoryEntry).expiresAt) {
						c.entries.Delete(key)
					}
					return true
				})
			}
		}
	}()
}

var _ DecisionCache = (*MemoryCache)(nil)
