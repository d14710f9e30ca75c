package entitlements

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ManuelReschke/OpsLedger/app/models"
)

func TestHasPaidAccess(t *testing.T) {
	for _, s := range []models.SubscriptionStatus{models.SubscriptionStatusActive, models.SubscriptionStatusTrial} {
		assert.True(t, HasPaidAccess(s), s)
	}
	for _, s := range []models.SubscriptionStatus{
		models.SubscriptionStatusPending,
		models.SubscriptionStatusSuspended,
		models.SubscriptionStatusPastDue,
		models.SubscriptionStatusCancelled,
		models.SubscriptionStatusExpired,
	} {
		assert.False(t, HasPaidAccess(s), s)
	}
}

func TestInGracePeriod(t *testing.T) {
	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	future := now.Add(48 * time.Hour)
	past := now.Add(-time.Hour)

	assert.True(t, InGracePeriod(models.SubscriptionStatusSuspended, &future, now))
	assert.True(t, InGracePeriod(models.SubscriptionStatusPastDue, &future, now))
	assert.False(t, InGracePeriod(models.SubscriptionStatusSuspended, &past, now))
	assert.False(t, InGracePeriod(models.SubscriptionStatusSuspended, nil, now))
	assert.False(t, InGracePeriod(models.SubscriptionStatusCancelled, &future, now))
}

func TestEvaluate(t *testing.T) {
	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	end := now.Add(24 * time.Hour)

	pro := Evaluate(&models.Organization{SubscriptionStatus: models.SubscriptionStatusActive, PlanType: "PRO", SubscriptionEndDate: &end}, now)
	assert.True(t, pro.Allowed())
	assert.Equal(t, PlanPro, pro.Plan)
	assert.Equal(t, 25, pro.SeatLimit)
	assert.True(t, pro.AuditLog)

	grace := Evaluate(&models.Organization{SubscriptionStatus: models.SubscriptionStatusSuspended, PlanType: "starter", SubscriptionEndDate: &end}, now)
	assert.True(t, grace.Allowed())
	assert.False(t, grace.PaidAccess)
	assert.True(t, grace.APIAccess)
	assert.False(t, grace.Exports)

	lapsed := Evaluate(&models.Organization{SubscriptionStatus: models.SubscriptionStatusExpired}, now)
	assert.False(t, lapsed.Allowed())
	assert.Equal(t, PlanStarter, lapsed.Plan)
	assert.Equal(t, 3, lapsed.SeatLimit)
	assert.False(t, lapsed.APIAccess)
}
