// Package cache provides the read-through cache of pending payment
// payloads.  The cache is a latency optimization in front of the
// pending_payments table; the table is the source of truth across
// restarts.  Every operation is best-effort: cache failures are logged and
// swallowed so a flaky Redis can never fail a payment.
package cache

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "pending-payment:"
	defaultTTL = 24 * time.Hour
)

// PendingCache caches serialized booking payloads keyed by payment
// reference.  A nil client disables the cache entirely; all methods become
// no-ops and readers fall through to the database.
type PendingCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPendingCache wraps a Redis client.  Passing nil is allowed and yields
// a disabled cache.
func NewPendingCache(client *redis.Client) *PendingCache {
	return &PendingCache{client: client, ttl: defaultTTL}
}

// Get returns the cached payload for a reference.  The second return value
// is false on miss, disabled cache, or error.
func (c *PendingCache) Get(ctx context.Context, referenceID string) (string, bool) {
	if c == nil || c.client == nil {
		return "", false
	}
	v, err := c.client.Get(ctx, keyPrefix+referenceID).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("pending-cache: get %s failed: %v", referenceID, err)
		}
		return "", false
	}
	return v, true
}

// Set stores the payload under the reference with the retention TTL.
func (c *PendingCache) Set(ctx context.Context, referenceID, payload string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Set(ctx, keyPrefix+referenceID, payload, c.ttl).Err(); err != nil {
		log.Printf("pending-cache: set %s failed: %v", referenceID, err)
	}
}

// Delete drops the cached payload after a successful finalize.
func (c *PendingCache) Delete(ctx context.Context, referenceID string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, keyPrefix+referenceID).Err(); err != nil {
		log.Printf("pending-cache: delete %s failed: %v", referenceID, err)
	}
}
