package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/OpsLedger/app/models"
)

func TestRecordWebhookEventDeduplicates(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	ev := event(t, "evt_1", EventSubscriptionUpdated, subscriptionObject("sub_1", "active", nil))

	created, stored, err := env.svc.RecordWebhookEvent(ctx, ev)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.BillingProviderStripe, stored.Provider)
	assert.Equal(t, "evt_1", stored.ProviderEventID)
	assert.False(t, stored.Succeeded())

	require.NoError(t, env.svc.MarkWebhookProcessed(ctx, stored.ID, nil))

	created, stored, err = env.svc.RecordWebhookEvent(ctx, ev)
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, stored.Succeeded())
	assert.Equal(t, 1, stored.Attempts)
}

func TestRecordWebhookEventWithoutIDUsesPayloadHash(t *testing.T) {
	env := newTestEnv()

	_, stored, err := env.svc.RecordWebhookEvent(context.Background(), Event{Type: "ping", Raw: []byte(`{"type":"ping"}`)})
	require.NoError(t, err)
	assert.Contains(t, stored.ProviderEventID, "hash:")
}

func TestMarkWebhookProcessedStoresError(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, stored, err := env.svc.RecordWebhookEvent(ctx, Event{ID: "evt_1", Type: "x", Raw: []byte(`{}`)})
	require.NoError(t, err)
	require.NoError(t, env.svc.MarkWebhookProcessed(ctx, stored.ID, errBoom))

	_, stored, err = env.svc.RecordWebhookEvent(ctx, Event{ID: "evt_1", Type: "x", Raw: []byte(`{}`)})
	require.NoError(t, err)
	assert.False(t, stored.Succeeded())
	assert.Equal(t, "boom", stored.ProcessingError)

	assert.Error(t, env.svc.MarkWebhookProcessed(ctx, 0, nil))
}
