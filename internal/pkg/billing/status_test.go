package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ManuelReschke/OpsLedger/app/models"
)

func TestMapStatusTable(t *testing.T) {
	tests := []struct {
		vendor    string
		hasMethod bool
		want      models.SubscriptionStatus
	}{
		{"trialing", true, models.SubscriptionStatusActive},
		{"trialing", false, models.SubscriptionStatusTrial},
		{"active", true, models.SubscriptionStatusActive},
		{"active", false, models.SubscriptionStatusActive},
		{"past_due", true, models.SubscriptionStatusSuspended},
		{"past_due", false, models.SubscriptionStatusSuspended},
		{"canceled", false, models.SubscriptionStatusCancelled},
		{"cancelled", true, models.SubscriptionStatusCancelled},
		{"unpaid", false, models.SubscriptionStatusExpired},
		{"incomplete", true, models.SubscriptionStatusPending},
		{"incomplete_expired", false, models.SubscriptionStatusExpired},
		{"paused", true, models.SubscriptionStatusSuspended},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MapStatus(tt.vendor, tt.hasMethod), "%s/%t", tt.vendor, tt.hasMethod)
	}
}

func TestMapStatusUnknownFallsBackToPending(t *testing.T) {
	for _, vendor := range []string{"", "some_new_status", "trial", "expired"} {
		assert.Equal(t, models.SubscriptionStatusPending, MapStatus(vendor, true), vendor)
		assert.Equal(t, models.SubscriptionStatusPending, MapStatus(vendor, false), vendor)
	}
}

func TestMapStatusNormalizesInput(t *testing.T) {
	assert.Equal(t, models.SubscriptionStatusSuspended, MapStatus("  PAST_DUE ", false))
	assert.Equal(t, models.SubscriptionStatusTrial, MapStatus("Trialing", false))
}

func TestCustomStatusTable(t *testing.T) {
	paddle := StatusTable{
		TrialKey:        "trialing",
		TrialWithMethod: models.SubscriptionStatusTrial,
		TrialNoMethod:   models.SubscriptionStatusTrial,
		Fixed: map[string]models.SubscriptionStatus{
			"active":   models.SubscriptionStatusActive,
			"past_due": models.SubscriptionStatusPastDue,
		},
		Fallback: models.SubscriptionStatusPending,
	}

	var m StatusMapper = paddle
	assert.Equal(t, models.SubscriptionStatusPastDue, m.Map("past_due", true))
	assert.Equal(t, models.SubscriptionStatusTrial, m.Map("trialing", true))
	assert.Equal(t, models.SubscriptionStatusPending, m.Map("canceled", true))
}
