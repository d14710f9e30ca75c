package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"

	"github.com/ManuelReschke/OpsLedger/app/models"
)

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestProjectOrganization(t *testing.T) {
	periodEnd := ts("2026-02-01T00:00:00Z")
	oldEnd := ts("2025-12-01T00:00:00Z")
	oldTrial := ts("2025-11-15T00:00:00Z")

	tests := []struct {
		name      string
		status    models.SubscriptionStatus
		periodEnd *time.Time
		wantEnd   *time.Time
		wantTrial *time.Time
	}{
		{"active with period end", models.SubscriptionStatusActive, periodEnd, periodEnd, nil},
		{"active without period end", models.SubscriptionStatusActive, nil, oldEnd, nil},
		{"trial with period end", models.SubscriptionStatusTrial, periodEnd, oldEnd, periodEnd},
		{"trial without period end", models.SubscriptionStatusTrial, nil, oldEnd, oldTrial},
		{"suspended with period end", models.SubscriptionStatusSuspended, periodEnd, periodEnd, oldTrial},
		{"suspended without period end", models.SubscriptionStatusSuspended, nil, oldEnd, oldTrial},
		{"cancelled without period end", models.SubscriptionStatusCancelled, nil, oldEnd, oldTrial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			org := &models.Organization{ID: "org_1", SubscriptionEndDate: oldEnd, TrialEndsAt: oldTrial}

			ProjectOrganization(org, Projection{
				Status:       tt.status,
				PlanType:     models.PlanTypePro,
				BillingCycle: models.BillingCycleYearly,
				PeriodEnd:    tt.periodEnd,
			})

			assert.Equal(t, tt.status, org.SubscriptionStatus)
			assert.Equal(t, models.PlanTypePro, org.PlanType)
			assert.Equal(t, models.BillingCycleYearly, org.BillingCycle)
			assert.Equal(t, tt.wantEnd, org.SubscriptionEndDate)
			assert.Equal(t, tt.wantTrial, org.TrialEndsAt)
		})
	}
}

func TestProjectOrganizationKeepsMetadataAndStartWhenAbsent(t *testing.T) {
	start := ts("2025-10-01T00:00:00Z")
	org := &models.Organization{SubscriptionStartDate: start, SubscriptionMetadata: datatypes.JSON(`{"eventId":"evt_0"}`)}

	ProjectOrganization(org, Projection{Status: models.SubscriptionStatusPending})
	assert.Equal(t, start, org.SubscriptionStartDate)
	assert.JSONEq(t, `{"eventId":"evt_0"}`, string(org.SubscriptionMetadata))

	ProjectOrganization(org, Projection{Status: models.SubscriptionStatusPending, Metadata: datatypes.JSON(`{"eventId":"evt_1"}`)})
	assert.JSONEq(t, `{"eventId":"evt_1"}`, string(org.SubscriptionMetadata))
}
