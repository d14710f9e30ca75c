package counter

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/OpsLedger/internal/pkg/env"
)

const isolatedCounterTestRedisDB = 13

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", env.GetEnv("CACHE_HOST", "localhost"), env.GetEnv("CACHE_PORT", "6379")),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       isolatedCounterTestRedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	err := client.Ping(ctx).Err()
	cancel()
	if err != nil {
		_ = client.Close()
		t.Skipf("Skipping Redis-dependent test: no reachable Redis endpoint (%v)", err)
	}
	require.NoError(t, client.FlushDB(context.Background()).Err())
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return client
}

func TestParseFields(t *testing.T) {
	got := parseFields(map[string]string{
		"invoice.overdue|processed":              "2",
		"customer.subscription.deleted|failed":   "1",
		"customer.subscription.deleted|rejected": "0",
		"garbage":                                "5",
		"price.updated|processed":                "x",
	})

	assert.Equal(t, map[string]map[string]int64{
		"invoice.overdue":               {OutcomeProcessed: 2},
		"customer.subscription.deleted": {OutcomeFailed: 1},
	}, got)
}

func TestWebhookCounterRecordAndDrain(t *testing.T) {
	c := NewWebhookCounter(newTestClient(t))
	ctx := context.Background()

	require.NoError(t, c.Record(ctx, "invoice.overdue", OutcomeProcessed))
	require.NoError(t, c.Record(ctx, "invoice.overdue", OutcomeProcessed))
	require.NoError(t, c.Record(ctx, "", OutcomeRejected))

	snap, err := c.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap["invoice.overdue"][OutcomeProcessed])
	assert.Equal(t, int64(1), snap["unknown"][OutcomeRejected])

	drained, err := c.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap, drained)

	snap, err = c.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap)

	drained, err = c.Drain(ctx)
	require.NoError(t, err)
	assert.Empty(t, drained)
}
