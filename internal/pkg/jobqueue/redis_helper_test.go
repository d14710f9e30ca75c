package jobqueue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/OpsLedger/internal/pkg/env"
)

// Alert delivery jobs are exercised against their own Redis DB so a local
// instance used by the webhook counters is left alone.
const isolatedJobQueueTestRedisDB = 14

// newIsolatedRedisClient connects to the Redis configured through the
// CACHE_* variables, flushes db and skips the test when nothing answers.
func newIsolatedRedisClient(t *testing.T, db int) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s",
			env.GetEnv("CACHE_HOST", "localhost"),
			env.GetEnv("CACHE_PORT", "6379")),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Skipping Redis-dependent test: no reachable Redis endpoint (%v)", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		_ = client.Close()
		t.Fatalf("flush redis db %d: %v", db, err)
	}

	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return client
}
