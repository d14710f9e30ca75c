package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_test_123"

func TestVerifyEvent(t *testing.T) {
	ev := event(t, "evt_1", EventSubscriptionUpdated, subscriptionObject("sub_1", "active", nil))
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   ev.Raw,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})

	got, err := VerifyEvent(signed.Payload, signed.Header, testWebhookSecret)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", got.ID)
	assert.Equal(t, EventSubscriptionUpdated, got.Type)
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), got.Created)
	assert.JSONEq(t, string(ev.Data), string(got.Data))
	assert.Equal(t, signed.Payload, got.Raw)
}

func TestVerifyEventRejectsBadSignatures(t *testing.T) {
	ev := event(t, "evt_1", EventSubscriptionUpdated, subscriptionObject("sub_1", "active", nil))
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   ev.Raw,
		Secret:    "whsec_wrong",
		Timestamp: time.Now(),
		Scheme:    "v1",
	})

	_, err := VerifyEvent(signed.Payload, signed.Header, testWebhookSecret)
	assert.ErrorIs(t, err, ErrSignature)

	_, err = VerifyEvent(signed.Payload, "", testWebhookSecret)
	assert.ErrorIs(t, err, ErrSignature)

	_, err = VerifyEvent(signed.Payload, signed.Header, "")
	assert.ErrorIs(t, err, ErrSignature)

	stale := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   ev.Raw,
		Secret:    testWebhookSecret,
		Timestamp: time.Now().Add(-time.Hour),
		Scheme:    "v1",
	})
	_, err = VerifyEvent(stale.Payload, stale.Header, testWebhookSecret)
	assert.ErrorIs(t, err, ErrSignature)
}
