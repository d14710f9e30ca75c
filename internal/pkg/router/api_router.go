package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/OpsLedger/app/controllers"
	"github.com/ManuelReschke/OpsLedger/internal/pkg/middleware"
	"github.com/ManuelReschke/OpsLedger/internal/pkg/ratelimit"
)

type ApiRouter struct {
	deps Dependencies
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", ratelimit.New(h.deps.APIRateLimit))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1", middleware.RequireInternalToken(h.deps.InternalTokenHash))
	if h.deps.WebhookStats != nil {
		v1.Get("/webhooks/stats", controllers.HandleWebhookStats(h.deps.WebhookStats))
	}

	org := v1.Group("/organizations/:orgID", middleware.LoadOrganization(h.deps.Organizations, h.deps.OrgNotFound))
	org.Get("/billing", controllers.HandleOrganizationBilling)
	org.Get("/access", middleware.RequireActiveSubscription, controllers.HandleOrganizationAccess)
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}
