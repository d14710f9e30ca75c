package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/OpsLedger/app/controllers"
	"github.com/ManuelReschke/OpsLedger/internal/pkg/middleware"
	"github.com/ManuelReschke/OpsLedger/internal/pkg/ratelimit"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies carries what the routers need from main.
type Dependencies struct {
	Billing           *controllers.BillingController
	Organizations     middleware.OrganizationLookup
	OrgNotFound       error
	InternalTokenHash string
	APIRateLimit      ratelimit.Config
	WebhookStats      controllers.WebhookStats // optional
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	// Webhooks first: they must not sit behind the API token or limiter.
	setup(app, NewWebhookRouter(deps.Billing), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
