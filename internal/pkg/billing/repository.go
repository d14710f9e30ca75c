package billing

import (
	"context"
	"errors"
	"time"

	"github.com/ManuelReschke/OpsLedger/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the billing service.
type Repository interface {
	// WithinTransaction runs fn against a repository bound to one transaction.
	WithinTransaction(ctx context.Context, fn func(tx Repository) error) error

	GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.BillingSubscription, error)
	UpsertSubscription(ctx context.Context, sub *models.BillingSubscription) error

	GetOrganization(ctx context.Context, id string) (*models.Organization, error)
	SaveOrganizationProjection(ctx context.Context, org *models.Organization) error
	GetUser(ctx context.Context, id string) (*models.User, error)

	InsertCancellation(ctx context.Context, rec *models.BillingCancellation) error

	UpsertPrice(ctx context.Context, p *models.BillingPrice) error
	UpdateProductPrices(ctx context.Context, productID, productName string, active bool) (int64, error)
	GetPrice(ctx context.Context, stripePriceID string) (*models.BillingPrice, error)

	CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithinTransaction(ctx context.Context, fn func(tx Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.BillingSubscription, error) {
	var sub models.BillingSubscription
	err := r.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) UpsertSubscription(ctx context.Context, sub *models.BillingSubscription) error {
	// created_by is set on insert only. A copied row keeps its old updated_at,
	// which gorm would not restamp.
	now := time.Now().UTC()
	sub.UpdatedAt = now
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "stripe_subscription_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"stripe_customer_id",
			"organization_id",
			"status",
			"plan_type",
			"billing_cycle",
			"amount",
			"currency",
			"starts_at",
			"ends_at",
			"metadata",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", sub.StripeSubscriptionID).
		First(sub).Error
}

func (r *gormRepository) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	var org models.Organization
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrganizationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *gormRepository) SaveOrganizationProjection(ctx context.Context, org *models.Organization) error {
	return r.db.WithContext(ctx).Model(&models.Organization{}).
		Where("id = ?", org.ID).
		Select(
			"subscription_status",
			"plan_type",
			"billing_cycle",
			"subscription_start_date",
			"subscription_end_date",
			"trial_ends_at",
			"subscription_metadata",
			"updated_at",
		).
		Updates(map[string]interface{}{
			"subscription_status":     org.SubscriptionStatus,
			"plan_type":               org.PlanType,
			"billing_cycle":           org.BillingCycle,
			"subscription_start_date": org.SubscriptionStartDate,
			"subscription_end_date":   org.SubscriptionEndDate,
			"trial_ends_at":           org.TrialEndsAt,
			"subscription_metadata":   org.SubscriptionMetadata,
			"updated_at":              time.Now(),
		}).Error
}

func (r *gormRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) InsertCancellation(ctx context.Context, rec *models.BillingCancellation) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rec).Error
}

func (r *gormRepository) UpsertPrice(ctx context.Context, p *models.BillingPrice) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "stripe_price_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"stripe_product_id",
			"product_name",
			"plan_type",
			"billing_cycle",
			"amount",
			"currency",
			"is_active",
			"updated_at",
		}),
	}).Create(p).Error
}

func (r *gormRepository) UpdateProductPrices(ctx context.Context, productID, productName string, active bool) (int64, error) {
	updates := map[string]interface{}{
		"is_active":  active,
		"updated_at": time.Now(),
	}
	if productName != "" {
		updates["product_name"] = productName
		updates["plan_type"] = planTypeFromProductName(productName)
	}
	tx := r.db.WithContext(ctx).Model(&models.BillingPrice{}).
		Where("stripe_product_id = ?", productID).
		Updates(updates)
	return tx.RowsAffected, tx.Error
}

func (r *gormRepository) GetPrice(ctx context.Context, stripePriceID string) (*models.BillingPrice, error) {
	var p models.BillingPrice
	if err := r.db.WithContext(ctx).Where("stripe_price_id = ?", stripePriceID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(ctx context.Context, id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
		"attempts":         gorm.Expr("attempts + 1"),
	}
	return r.db.WithContext(ctx).Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
