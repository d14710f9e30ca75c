package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/OpsLedger/internal/pkg/env"
)

var (
	client *redis.Client
	ctx    = context.Background()
)

// SetupCache initializes the connection to the Redis-compatible cache server
func SetupCache() {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnv("CACHE_PORT", "6379")

	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       env.GetEnvInt("CACHE_DB", 0),
	})

	// Test the connection
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Printf("Warning: Could not connect to cache: %v", err)
	} else {
		log.Printf("Successfully connected to cache: %s", pong)
	}
}

// GetClient returns the Redis client instance
func GetClient() *redis.Client {
	if client == nil {
		SetupCache()
	}
	return client
}

// Lock is a Redis SET NX lock. Keys expire on their own if the holder dies.
type Lock struct {
	prefix string
}

// NewLock creates a lock namespace; keys are stored as prefix+key.
func NewLock(prefix string) *Lock {
	return &Lock{prefix: prefix}
}

// Acquire takes the lock for ttl. It returns false when another holder has it.
func (l *Lock) Acquire(c context.Context, key string, ttl time.Duration) (bool, error) {
	return GetClient().SetNX(c, l.prefix+key, "1", ttl).Result()
}

// Release drops the lock.
func (l *Lock) Release(c context.Context, key string) error {
	return GetClient().Del(c, l.prefix+key).Err()
}
