package counter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const webhookOutcomesKey = "billing:webhook:outcomes"

// Webhook outcomes counted per event type.
const (
	OutcomeProcessed  = "processed"
	OutcomeFailed     = "failed"
	OutcomeDuplicate  = "duplicate"
	OutcomeRejected   = "rejected"
	OutcomeInProgress = "in_progress"
)

// WebhookCounter keeps per event type outcome counters in a Redis hash.
// Fields are "<eventType>|<outcome>".
type WebhookCounter struct {
	rdb *redis.Client
	key string
}

func NewWebhookCounter(rdb *redis.Client) *WebhookCounter {
	return &WebhookCounter{rdb: rdb, key: webhookOutcomesKey}
}

// Record increments the counter for one delivery outcome.
func (c *WebhookCounter) Record(ctx context.Context, eventType, outcome string) error {
	if eventType == "" {
		eventType = "unknown"
	}
	return c.rdb.HIncrBy(ctx, c.key, eventType+"|"+outcome, 1).Err()
}

// Snapshot returns the current counters keyed by event type, then outcome.
func (c *WebhookCounter) Snapshot(ctx context.Context) (map[string]map[string]int64, error) {
	data, err := c.rdb.HGetAll(ctx, c.key).Result()
	if err != nil {
		return nil, err
	}
	return parseFields(data), nil
}

// Drain returns the counters and resets them. The hash is renamed to a
// temporary key first so increments racing the drain are not lost.
func (c *WebhookCounter) Drain(ctx context.Context) (map[string]map[string]int64, error) {
	tmpKey := fmt.Sprintf("%s:tmp:%d", c.key, time.Now().UnixNano())
	if err := c.rdb.Rename(ctx, c.key, tmpKey).Err(); err != nil {
		// If key does not exist, nothing to drain
		if errors.Is(err, redis.Nil) || strings.Contains(strings.ToLower(err.Error()), "no such key") {
			return map[string]map[string]int64{}, nil
		}
		return nil, err
	}
	defer c.rdb.Del(ctx, tmpKey)

	data, err := c.rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return nil, err
	}
	return parseFields(data), nil
}

func parseFields(data map[string]string) map[string]map[string]int64 {
	out := make(map[string]map[string]int64)
	for field, v := range data {
		eventType, outcome, ok := strings.Cut(field, "|")
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n == 0 {
			continue
		}
		if out[eventType] == nil {
			out[eventType] = make(map[string]int64)
		}
		out[eventType][outcome] = n
	}
	return out
}
