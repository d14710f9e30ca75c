package models

import (
	"time"

	"gorm.io/datatypes"
)

// Organization is the tenant record. The subscription fields are a
// denormalized projection of the tenant's latest reconciled subscription and
// are read by entitlement checks without touching the subscriptions table.
type Organization struct {
	ID                    string             `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name                  string             `gorm:"type:varchar(150);not null" json:"name" validate:"required,max=150"`
	BillingEmail          string             `gorm:"type:varchar(200);default:''" json:"billing_email" validate:"omitempty,email"`
	OwnerUserID           string             `gorm:"type:varchar(64);default:'';index" json:"owner_user_id"`
	SubscriptionStatus    SubscriptionStatus `gorm:"type:varchar(32);not null;default:'pending';index" json:"subscription_status"`
	PlanType              string             `gorm:"type:varchar(50);default:''" json:"plan_type"`
	BillingCycle          string             `gorm:"type:varchar(16);default:''" json:"billing_cycle"`
	SubscriptionStartDate *time.Time         `gorm:"type:timestamp;default:null" json:"subscription_start_date,omitempty"`
	SubscriptionEndDate   *time.Time         `gorm:"type:timestamp;default:null" json:"subscription_end_date,omitempty"`
	TrialEndsAt           *time.Time         `gorm:"type:timestamp;default:null" json:"trial_ends_at,omitempty"`
	SubscriptionMetadata  datatypes.JSON     `gorm:"type:json" json:"subscription_metadata"`
	CreatedAt             time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}
