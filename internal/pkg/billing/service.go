package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/ManuelReschke/OpsLedger/app/models"
	"github.com/ManuelReschke/OpsLedger/internal/pkg/notify"
)

// Service reconciles Stripe webhook events into local billing state.
type Service struct {
	repo            Repository
	vendor          VendorClient
	mapper          StatusMapper
	notifier        notify.Notifier
	defaultCurrency string
}

// Option configures a Service.
type Option func(*Service)

// WithStatusMapper swaps the vendor status table.
func WithStatusMapper(m StatusMapper) Option {
	return func(s *Service) { s.mapper = m }
}

// WithDefaultCurrency sets the currency used when a price carries none.
func WithDefaultCurrency(c string) Option {
	return func(s *Service) { s.defaultCurrency = normalizeCurrency(c, "usd") }
}

// NewService creates a billing service from injected collaborators. A nil
// notifier falls back to logging only.
func NewService(repo Repository, vendor VendorClient, notifier notify.Notifier, opts ...Option) *Service {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	s := &Service{
		repo:            repo,
		vendor:          vendor,
		mapper:          StripeStatusMapper,
		notifier:        notifier,
		defaultCurrency: "usd",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServiceFromDB creates a billing service from a GORM DB handle and config.
func NewServiceFromDB(db *gorm.DB, cfg *Config, notifier notify.Notifier) *Service {
	return NewService(
		NewRepository(db),
		NewStripeVendor(cfg.SecretKey),
		notifier,
		WithDefaultCurrency(cfg.DefaultCurrency),
	)
}

// RecordWebhookEvent persists a verified delivery idempotently. created is
// false when the event id was seen before.
func (s *Service) RecordWebhookEvent(ctx context.Context, ev Event) (bool, *models.BillingWebhookEvent, error) {
	eventID := strings.TrimSpace(ev.ID)
	if eventID == "" {
		sum := sha256.Sum256(ev.Raw)
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	stored := &models.BillingWebhookEvent{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(ev.Type),
		PayloadJSON:     string(ev.Raw),
	}
	return s.repo.CreateWebhookEventIfNotExists(ctx, stored)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(ctx, webhookEventID, errMsg)
}

// GetOrganization returns the organization with its billing projection.
func (s *Service) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	return s.repo.GetOrganization(ctx, strings.TrimSpace(id))
}
