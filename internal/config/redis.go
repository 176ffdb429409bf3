package config

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to the Redis instance backing the pending-payment
// cache.  The address comes from REDIS_ADDR, or REDIS_HOST/REDIS_PORT when
// set individually; REDIS_PASSWORD is optional.  Redis is itself optional
// infrastructure here: when the ping fails the function logs the reason and
// returns nil, and payload lookups fall through to the pending_payments
// table, which stays the source of truth either way.
func NewRedisClient() *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
		addr = host + ":" + port
	}
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("redis: %s unreachable, pending-payment cache disabled: %v", addr, err)
		return nil
	}
	return client
}
