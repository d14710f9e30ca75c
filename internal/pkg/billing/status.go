package billing

import (
	"strings"

	"github.com/ManuelReschke/OpsLedger/app/models"
)

// StatusMapper translates a vendor subscription status into the internal
// status vocabulary. Swapping billing vendors means supplying a new table.
type StatusMapper interface {
	Map(vendorStatus string, hasPaymentMethod bool) models.SubscriptionStatus
}

// StatusTable is a table-driven StatusMapper. Trialing is the only vendor
// status whose outcome depends on a payment method being on file.
type StatusTable struct {
	Fixed           map[string]models.SubscriptionStatus
	TrialWithMethod models.SubscriptionStatus
	TrialNoMethod   models.SubscriptionStatus
	TrialKey        string
	Fallback        models.SubscriptionStatus
}

func (t StatusTable) Map(vendorStatus string, hasPaymentMethod bool) models.SubscriptionStatus {
	key := strings.ToLower(strings.TrimSpace(vendorStatus))
	if key != "" && key == t.TrialKey {
		if hasPaymentMethod {
			return t.TrialWithMethod
		}
		return t.TrialNoMethod
	}
	if status, ok := t.Fixed[key]; ok {
		return status
	}
	return t.Fallback
}

// StripeStatusMapper is the Stripe subscription status table.
var StripeStatusMapper = StatusTable{
	TrialKey:        "trialing",
	TrialWithMethod: models.SubscriptionStatusActive,
	TrialNoMethod:   models.SubscriptionStatusTrial,
	Fixed: map[string]models.SubscriptionStatus{
		"active":             models.SubscriptionStatusActive,
		"past_due":           models.SubscriptionStatusSuspended,
		"canceled":           models.SubscriptionStatusCancelled,
		"cancelled":          models.SubscriptionStatusCancelled,
		"unpaid":             models.SubscriptionStatusExpired,
		"incomplete":         models.SubscriptionStatusPending,
		"incomplete_expired": models.SubscriptionStatusExpired,
		"paused":             models.SubscriptionStatusSuspended,
	},
	Fallback: models.SubscriptionStatusPending,
}

// MapStatus maps a Stripe status. Unknown input yields pending.
func MapStatus(vendorStatus string, hasPaymentMethod bool) models.SubscriptionStatus {
	return StripeStatusMapper.Map(vendorStatus, hasPaymentMethod)
}
