package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillingPrice is the local copy of the Stripe price catalog, kept in sync by
// price.* and product.* webhook events.
type BillingPrice struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	StripePriceID   string          `gorm:"type:varchar(191);not null;uniqueIndex" json:"stripe_price_id"`
	StripeProductID string          `gorm:"type:varchar(191);not null;default:'';index" json:"stripe_product_id"`
	ProductName     string          `gorm:"type:varchar(191);default:''" json:"product_name"`
	PlanType        string          `gorm:"type:varchar(50);not null;default:'starter';index" json:"plan_type"`
	BillingCycle    string          `gorm:"type:varchar(16);not null;default:'monthly'" json:"billing_cycle"`
	Amount          decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"amount"`
	Currency        string          `gorm:"type:varchar(3);not null;default:'usd'" json:"currency"`
	IsActive        bool            `gorm:"default:true;index" json:"is_active"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
