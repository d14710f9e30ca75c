package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/OpsLedger/app/models"
	"github.com/ManuelReschke/OpsLedger/internal/pkg/entitlements"
)

// KeyOrganization holds the *models.Organization loaded for the request.
const KeyOrganization = "ORGANIZATION"

// OrganizationLookup loads an organization with its billing projection.
type OrganizationLookup func(ctx context.Context, id string) (*models.Organization, error)

// LoadOrganization resolves the :orgID route param into KeyOrganization.
// notFound is the error the lookup returns for unknown ids.
func LoadOrganization(lookup OrganizationLookup, notFound error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := strings.TrimSpace(c.Params("orgID"))
		if id == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "organization id required"})
		}
		org, err := lookup(c.UserContext(), id)
		if err != nil {
			if notFound != nil && errors.Is(err, notFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "organization not found"})
			}
			log.Errorf("[Auth] organization lookup %s failed: %v", id, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "organization lookup failed"})
		}
		c.Locals(KeyOrganization, org)
		return c.Next()
	}
}

// OrganizationFromCtx returns the organization stored by LoadOrganization.
func OrganizationFromCtx(c *fiber.Ctx) (*models.Organization, bool) {
	org, ok := c.Locals(KeyOrganization).(*models.Organization)
	return org, ok && org != nil
}

// RequireActiveSubscription lets through organizations with paid access or in
// their grace period, and answers 402 otherwise. Must run after LoadOrganization.
func RequireActiveSubscription(c *fiber.Ctx) error {
	org, ok := OrganizationFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "organization not loaded"})
	}
	summary := entitlements.Evaluate(org, time.Now())
	if !summary.Allowed() {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error":   "payment_required",
			"message": "subscription inactive",
			"status":  summary.Status,
		})
	}
	return c.Next()
}
