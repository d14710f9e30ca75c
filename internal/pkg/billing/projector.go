package billing

import (
	"time"

	"gorm.io/datatypes"

	"github.com/ManuelReschke/OpsLedger/app/models"
)

// Projection is the subscription state mirrored onto an organization.
type Projection struct {
	Status       models.SubscriptionStatus
	PlanType     string
	BillingCycle string
	StartDate    *time.Time
	PeriodEnd    *time.Time
	Metadata     datatypes.JSON
}

// ProjectOrganization applies p to org in place.
//
//   - active: end date follows a known period end and trialEndsAt is cleared.
//   - trial: trialEndsAt follows a known period end, otherwise stays.
//   - anything else: end date follows a known period end, never cleared.
func ProjectOrganization(org *models.Organization, p Projection) {
	org.SubscriptionStatus = p.Status
	org.PlanType = p.PlanType
	org.BillingCycle = p.BillingCycle
	if p.StartDate != nil {
		org.SubscriptionStartDate = p.StartDate
	}
	if p.Metadata != nil {
		org.SubscriptionMetadata = p.Metadata
	}

	switch p.Status {
	case models.SubscriptionStatusActive:
		if p.PeriodEnd != nil {
			org.SubscriptionEndDate = p.PeriodEnd
		}
		org.TrialEndsAt = nil
	case models.SubscriptionStatusTrial:
		if p.PeriodEnd != nil {
			org.TrialEndsAt = p.PeriodEnd
		}
	default:
		if p.PeriodEnd != nil {
			org.SubscriptionEndDate = p.PeriodEnd
		}
	}
}
