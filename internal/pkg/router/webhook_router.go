package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/OpsLedger/app/controllers"
)

type WebhookRouter struct {
	billing *controllers.BillingController
}

func (w WebhookRouter) InstallRouter(app *fiber.App) {
	hooks := app.Group("/webhooks")
	hooks.Post("/stripe", w.billing.HandleStripeWebhook)
}

func NewWebhookRouter(billing *controllers.BillingController) *WebhookRouter {
	return &WebhookRouter{billing: billing}
}
