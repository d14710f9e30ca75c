package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/OpsLedger/app/models"
	"github.com/ManuelReschke/OpsLedger/internal/pkg/billing"
	"github.com/ManuelReschke/OpsLedger/internal/pkg/entitlements"
	"github.com/ManuelReschke/OpsLedger/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/OpsLedger/internal/pkg/middleware"
)

// MaxWebhookBodySize caps inbound Stripe payloads.
const MaxWebhookBodySize = 1 << 20

// WebhookService is the part of billing.Service the webhook endpoint drives.
type WebhookService interface {
	RecordWebhookEvent(ctx context.Context, ev billing.Event) (bool, *models.BillingWebhookEvent, error)
	Dispatch(ctx context.Context, ev billing.Event) error
	MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error
}

// PayloadArchive stores raw verified payloads.
type PayloadArchive interface {
	Store(ctx context.Context, provider, eventID, eventType string, payload []byte) (string, error)
}

// EventLock serializes concurrent deliveries of the same event id.
type EventLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// OutcomeRecorder counts webhook delivery outcomes per event type.
type OutcomeRecorder interface {
	Record(ctx context.Context, eventType, outcome string) error
}

// WebhookStats reads and resets the outcome counters.
type WebhookStats interface {
	Snapshot(ctx context.Context) (map[string]map[string]int64, error)
	Drain(ctx context.Context) (map[string]map[string]int64, error)
}

// BillingController serves the Stripe webhook and the billing read API.
type BillingController struct {
	service WebhookService
	config  *billing.Config
	archive PayloadArchive
	lock    EventLock
	counter OutcomeRecorder
}

// NewBillingController wires the webhook endpoint. archive and lock are optional.
func NewBillingController(service WebhookService, cfg *billing.Config, archive PayloadArchive, lock EventLock) *BillingController {
	return &BillingController{service: service, config: cfg, archive: archive, lock: lock}
}

// WithOutcomeCounter enables outcome counting.
func (bc *BillingController) WithOutcomeCounter(r OutcomeRecorder) *BillingController {
	bc.counter = r
	return bc
}

func (bc *BillingController) count(eventType, outcome string) {
	if bc.counter == nil {
		return
	}
	if err := bc.counter.Record(context.Background(), eventType, outcome); err != nil {
		log.Debugf("[Billing] count webhook outcome %s/%s: %v", eventType, outcome, err)
	}
}

// HandleStripeWebhook verifies, records, and reconciles one Stripe delivery.
// Only signature problems are rejected; processing failures are stored on the
// webhook event row and acknowledged.
func (bc *BillingController) HandleStripeWebhook(c *fiber.Ctx) error {
	if !bc.config.WebhookConfigured() {
		log.Error("[Billing] STRIPE_WEBHOOK_SECRET not configured; rejecting webhook")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "webhook_not_configured"})
	}

	rawBody := c.BodyRaw()
	if len(rawBody) > MaxWebhookBodySize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "payload_too_large"})
	}
	rawBody = append([]byte(nil), rawBody...)

	ev, err := billing.VerifyEvent(rawBody, c.Get("Stripe-Signature"), bc.config.WebhookSecret)
	if err != nil {
		log.Warnf("[Billing] webhook rejected from %s: %v", c.IP(), err)
		bc.count("", counter.OutcomeRejected)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), bc.config.WebhookTimeout)
	defer cancel()

	created, stored, err := bc.service.RecordWebhookEvent(ctx, ev)
	if err != nil {
		log.Errorf("[Billing] persist webhook event %s failed: %v", ev.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	if !created && stored.Succeeded() {
		bc.count(ev.Type, counter.OutcomeDuplicate)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}

	if bc.lock != nil {
		acquired, err := bc.lock.Acquire(ctx, ev.ID, 2*bc.config.WebhookTimeout)
		switch {
		case err != nil:
			log.Warnf("[Billing] webhook lock for %s unavailable, processing anyway: %v", ev.ID, err)
		case !acquired:
			bc.count(ev.Type, counter.OutcomeInProgress)
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "in_progress"})
		default:
			defer func() {
				if err := bc.lock.Release(context.Background(), ev.ID); err != nil {
					log.Warnf("[Billing] release webhook lock %s: %v", ev.ID, err)
				}
			}()
		}
	}

	if bc.archive != nil && created {
		if key, err := bc.archive.Store(ctx, models.BillingProviderStripe, ev.ID, ev.Type, rawBody); err != nil {
			log.Warnf("[Billing] archive webhook %s failed: %v", ev.ID, err)
		} else {
			log.Debugf("[Billing] archived webhook %s to %s", ev.ID, key)
		}
	}

	procErr := bc.service.Dispatch(ctx, ev)
	if procErr != nil {
		log.Errorf("[Billing] webhook %s (%s) not reconciled: %v", ev.ID, ev.Type, procErr)
		bc.count(ev.Type, counter.OutcomeFailed)
	} else {
		bc.count(ev.Type, counter.OutcomeProcessed)
	}
	if err := bc.service.MarkWebhookProcessed(ctx, stored.ID, procErr); err != nil {
		log.Errorf("[Billing] mark webhook %s processed failed: %v", ev.ID, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "processed": procErr == nil})
}

// HandleOrganizationBilling returns the billing projection and entitlement
// summary of the organization loaded by middleware.LoadOrganization.
func HandleOrganizationBilling(c *fiber.Ctx) error {
	org, ok := middleware.OrganizationFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "organization not loaded"})
	}

	return c.JSON(fiber.Map{
		"organization_id": org.ID,
		"name":            org.Name,
		"billing": fiber.Map{
			"subscription_status":     org.SubscriptionStatus,
			"plan_type":               org.PlanType,
			"billing_cycle":           org.BillingCycle,
			"subscription_start_date": org.SubscriptionStartDate,
			"subscription_end_date":   org.SubscriptionEndDate,
			"trial_ends_at":           org.TrialEndsAt,
		},
		"entitlements": entitlements.Evaluate(org, time.Now()),
	})
}

// HandleOrganizationAccess answers for organizations that passed
// middleware.RequireActiveSubscription.
func HandleOrganizationAccess(c *fiber.Ctx) error {
	org, ok := middleware.OrganizationFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "organization not loaded"})
	}
	return c.JSON(entitlements.Evaluate(org, time.Now()))
}

// HandleWebhookStats returns the webhook outcome counters. ?reset=true drains them.
func HandleWebhookStats(stats WebhookStats) fiber.Handler {
	return func(c *fiber.Ctx) error {
		read := stats.Snapshot
		if c.QueryBool("reset") {
			read = stats.Drain
		}
		counts, err := read(c.UserContext())
		if err != nil {
			log.Errorf("[Billing] read webhook counters: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "counters unavailable"})
		}
		return c.JSON(fiber.Map{"outcomes": counts})
	}
}
