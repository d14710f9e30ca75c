package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"
)

const (
	NotificationTypeTrialReminder = "trial_reminder"
	NotificationTypeError         = "error"
	NotificationTypeWarning       = "warning"
)

// NotificationEvent is an in-app message scoped to a user and organization.
// Read/unread tracking belongs to the notifications UI, not to billing.
type NotificationEvent struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	UserID         string         `gorm:"type:varchar(64);default:'';index" json:"user_id"`
	OrganizationID string         `gorm:"type:varchar(64);not null;index" json:"organization_id" validate:"required"`
	Type           string         `gorm:"type:varchar(32);not null" json:"type" validate:"oneof=trial_reminder error warning"`
	Title          string         `gorm:"type:varchar(200);not null" json:"title" validate:"required,max=200"`
	Message        string         `gorm:"type:text" json:"message" validate:"required"`
	ActionURL      *string        `gorm:"type:varchar(500);default:null" json:"action_url,omitempty" validate:"omitempty,max=500"`
	ExpiresAt      *time.Time     `gorm:"type:timestamp;default:null" json:"expires_at,omitempty"`
	Metadata       datatypes.JSON `gorm:"type:json" json:"metadata"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (n *NotificationEvent) Validate() error {
	v := validator.New()

	return v.Struct(n)
}
