package entitlements

import (
	"strings"
	"time"

	"github.com/ManuelReschke/OpsLedger/app/models"
)

type Plan string

const (
	PlanStarter Plan = models.PlanTypeStarter
	PlanPro     Plan = models.PlanTypePro
)

// AllowedFeatures returns which optional features a plan unlocks.
func AllowedFeatures(plan Plan) (apiAccess, exports, auditLog bool) {
	switch plan {
	case PlanPro:
		return true, true, true
	default:
		return true, false, false
	}
}

// SeatLimit is the number of members a plan allows. Unknown plans get the
// starter allowance.
func SeatLimit(plan Plan) int {
	switch plan {
	case PlanPro:
		return 25
	default:
		return 3
	}
}

// HasPaidAccess reports whether the status grants full product access.
func HasPaidAccess(status models.SubscriptionStatus) bool {
	return status == models.SubscriptionStatusActive || status == models.SubscriptionStatusTrial
}

// InGracePeriod is true for lapsed subscriptions whose last known end date
// has not passed yet.
func InGracePeriod(status models.SubscriptionStatus, endsAt *time.Time, now time.Time) bool {
	if status != models.SubscriptionStatusSuspended && status != models.SubscriptionStatusPastDue {
		return false
	}
	return endsAt != nil && now.Before(*endsAt)
}

// Summary is the entitlement view of an organization's billing projection.
type Summary struct {
	Status        models.SubscriptionStatus `json:"status"`
	Plan          Plan                      `json:"plan"`
	BillingCycle  string                    `json:"billing_cycle"`
	PaidAccess    bool                      `json:"paid_access"`
	InGracePeriod bool                      `json:"in_grace_period"`
	SeatLimit     int                       `json:"seat_limit"`
	APIAccess     bool                      `json:"api_access"`
	Exports       bool                      `json:"exports"`
	AuditLog      bool                      `json:"audit_log"`
	EndsAt        *time.Time                `json:"ends_at,omitempty"`
	TrialEndsAt   *time.Time                `json:"trial_ends_at,omitempty"`
}

// Evaluate computes the entitlement summary from the projection only.
func Evaluate(org *models.Organization, now time.Time) Summary {
	plan := Plan(strings.ToLower(strings.TrimSpace(org.PlanType)))
	if plan == "" {
		plan = PlanStarter
	}

	s := Summary{
		Status:        org.SubscriptionStatus,
		Plan:          plan,
		BillingCycle:  org.BillingCycle,
		PaidAccess:    HasPaidAccess(org.SubscriptionStatus),
		InGracePeriod: InGracePeriod(org.SubscriptionStatus, org.SubscriptionEndDate, now),
		SeatLimit:     SeatLimit(plan),
		EndsAt:        org.SubscriptionEndDate,
		TrialEndsAt:   org.TrialEndsAt,
	}
	if s.PaidAccess || s.InGracePeriod {
		s.APIAccess, s.Exports, s.AuditLog = AllowedFeatures(plan)
	}
	return s
}

// Allowed reports whether the organization may use gated routes.
func (s Summary) Allowed() bool {
	return s.PaidAccess || s.InGracePeriod
}
