package models

import (
	"time"

	"gorm.io/datatypes"
)

// DefaultCancellationReason is stored when Stripe supplied no reason.
const DefaultCancellationReason = "No reason provided"

// BillingCancellation is the append-only audit entry written once per
// cancellation event. Rows are never updated or deleted.
type BillingCancellation struct {
	ID             string         `gorm:"type:char(36);primaryKey" json:"id"`
	OrganizationID *string        `gorm:"type:varchar(64);default:null;index" json:"organization_id,omitempty"`
	StripeID       string         `gorm:"type:varchar(191);not null;index" json:"stripe_id"`
	StripeEventID  *string        `gorm:"type:varchar(191);default:null;uniqueIndex:ux_cancellations_stripe_event_id" json:"stripe_event_id,omitempty"`
	Reason         string         `gorm:"type:varchar(255);not null" json:"reason"`
	Notes          *string        `gorm:"type:text;default:null" json:"notes,omitempty"`
	Feedback       string         `gorm:"type:varchar(64);default:''" json:"feedback"`
	CanceledAt     *time.Time     `gorm:"type:timestamp;default:null" json:"canceled_at,omitempty"`
	EndedAt        *time.Time     `gorm:"type:timestamp;default:null" json:"ended_at,omitempty"`
	Snapshot       datatypes.JSON `gorm:"type:json" json:"snapshot"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (BillingCancellation) TableName() string {
	return "cancellations"
}
