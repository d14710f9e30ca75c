package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	ROLE_OWNER  = "owner"
	ROLE_MEMBER = "member"
)

// User is a member of an organization. Billing only reads users to resolve
// the email snapshot sent with notifications.
type User struct {
	ID             string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	OrganizationID string    `gorm:"type:varchar(64);not null;index" json:"organization_id"`
	Name           string    `gorm:"type:varchar(150)" json:"name" validate:"required,min=3,max=150"`
	Email          string    `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,min=5,max=200"`
	Role           string    `gorm:"type:varchar(50);default:'member'" json:"role" validate:"oneof=owner member"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}
