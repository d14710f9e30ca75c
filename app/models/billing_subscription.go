package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// SubscriptionStatus is the internal subscription state used for authorization
// decisions. It never carries vendor vocabulary.
type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusTrial     SubscriptionStatus = "trial"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusSuspended SubscriptionStatus = "suspended"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// IsTerminal reports whether no further transition is handled for the status.
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionStatusCancelled || s == SubscriptionStatusExpired
}

const (
	PlanTypeStarter = "starter"
	PlanTypePro     = "pro"
)

const (
	BillingCycleMonthly = "monthly"
	BillingCycleYearly  = "yearly"
)

// BillingSubscription is the subscription aggregate: one row per Stripe
// subscription id, created or updated only by webhook reconciliation.
type BillingSubscription struct {
	ID                   uint               `gorm:"primaryKey" json:"id"`
	StripeSubscriptionID string             `gorm:"type:varchar(191);not null;uniqueIndex:ux_subscriptions_stripe_subscription_id" json:"stripe_subscription_id"`
	StripeCustomerID     string             `gorm:"type:varchar(191);not null;default:'';index" json:"stripe_customer_id"`
	OrganizationID       string             `gorm:"type:varchar(64);not null;default:'';index" json:"organization_id"`
	Status               SubscriptionStatus `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	PlanType             string             `gorm:"type:varchar(50);not null;default:'starter'" json:"plan_type"`
	BillingCycle         string             `gorm:"type:varchar(16);not null;default:'monthly'" json:"billing_cycle"`
	Amount               decimal.Decimal    `gorm:"type:decimal(12,2);not null;default:0" json:"amount"`
	Currency             string             `gorm:"type:varchar(3);not null;default:'usd'" json:"currency"`
	StartsAt             time.Time          `gorm:"type:timestamp;not null" json:"starts_at"`
	EndsAt               *time.Time         `gorm:"type:timestamp;default:null" json:"ends_at,omitempty"`
	Metadata             datatypes.JSON     `gorm:"type:json" json:"metadata"`
	CreatedBy            *string            `gorm:"type:varchar(64);default:null" json:"created_by,omitempty"`
	CreatedAt            time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (BillingSubscription) TableName() string {
	return "subscriptions"
}
