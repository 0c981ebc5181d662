package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisCache is a DecisionCache shared across instances. Wildcard
// invalidation walks the keyspace with SCAN so role changes propagate to
// every node without a registry of outstanding keys.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps the given client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get loads a cached decision; redis expiry handles the TTL.
func (c *RedisCache) Get(ctx context.Context, key CacheKey) (Decision, bool, error) {
	payload, err := c.client.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Decision{}, false, nil
		}
		return Decision{}, false, err
	}
	var decision Decision
	if err := json.Unmarshal(payload, &decision); err != nil {
		return Decision{}, false, err
	}
	return decision, true, nil
}

// Set stores the decision with the given TTL.
func (c *RedisCache) Set(ctx context.Context, key CacheKey, decision Decision, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(decision)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key.String(), payload, ttl).Err()
}

// InvalidateUser removes all entries for the user across tenants.
func (c *RedisCache) InvalidateUser(ctx context.Context, userID uuid.UUID) error {
	return c.deleteMatching(ctx, fmt.Sprintf("authz:decision:*:%s:*", userID))
}

// InvalidateTenant removes all entries scoped to the tenant.
func (c *RedisCache) InvalidateTenant(ctx context.Context, tenantID uuid.UUID) error {
	return c.deleteMatching(ctx, fmt.Sprintf("authz:decision:%s:*", tenantID))
}

// InvalidateAll removes every cached decision.
func (c *RedisCache) InvalidateAll(ctx context.Context) error {
	return c.deleteMatching(ctx, "authz:decision:*")
}

func (c *RedisCache) deleteMatching(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, 200).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

var _ DecisionCache = (*RedisCache)(nil)
