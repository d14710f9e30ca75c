package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/OpsLedger/app/controllers"
	"github.com/ManuelReschke/OpsLedger/internal/pkg/billing"
	"github.com/ManuelReschke/OpsLedger/internal/pkg/cache"
	"github.com/ManuelReschke/OpsLedger/internal/pkg/database"
	"github.com/ManuelReschke/OpsLedger/internal/pkg/env"
	"github.com/ManuelReschke/OpsLedger/internal/pkg/eventarchive"
	"github.com/ManuelReschke/OpsLedger/internal/pkg/jobqueue"
	"github.com/ManuelReschke/OpsLedger/internal/pkg/mail"
	"github.com/ManuelReschke/OpsLedger/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/OpsLedger/internal/pkg/notify"
	"github.com/ManuelReschke/OpsLedger/internal/pkg/ratelimit"
	"github.com/ManuelReschke/OpsLedger/internal/pkg/router"
)

func main() {
	app := NewApplication()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down...")
		if err := app.Shutdown(); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	jobqueue.GetManager().Stop()
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	billingCfg, err := billing.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	if !billingCfg.WebhookConfigured() {
		log.Println("Warning: STRIPE_WEBHOOK_SECRET is empty, webhooks will be rejected")
	}

	notifier := setupNotifier()
	service := billing.NewServiceFromDB(database.GetDB(), billingCfg, notifier)

	var archive controllers.PayloadArchive
	if a := setupArchive(); a != nil {
		archive = a
	}
	webhookCounter := counter.NewWebhookCounter(cache.GetClient())
	billingController := controllers.NewBillingController(service, billingCfg, archive, cache.NewLock("billing:webhook:")).
		WithOutcomeCounter(webhookCounter)

	// init fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 2 * controllers.MaxWebhookBodySize,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "admin"),
		},
	}), monitor.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: env.GetEnv("OPENAPI_FILE", "./public/docs/v1/openapi.yml"),
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app, router.Dependencies{
		Billing:           billingController,
		Organizations:     service.GetOrganization,
		OrgNotFound:       billing.ErrOrganizationNotFound,
		InternalTokenHash: env.GetEnv("INTERNAL_API_TOKEN_HASH", ""),
		WebhookStats:      webhookCounter,
		APIRateLimit: ratelimit.Config{
			Max:        env.GetEnvInt("API_RATE_LIMIT", 120),
			Expiration: time.Minute,
			Storage:    ratelimit.NewStorage(),
		},
	})

	return app
}

// setupNotifier registers the delivery workers and returns the queue-backed
// notifier, or a log-only notifier when notifications are disabled.
func setupNotifier() notify.Notifier {
	cfg, err := notify.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	if !cfg.Enabled {
		log.Println("Notifications disabled")
		return notify.LogNotifier{}
	}

	opts := []notify.DelivererOption{notify.WithStore(notify.NewGormStore(database.GetDB()))}
	if cfg.ChatWebhookURL != "" {
		opts = append(opts, notify.WithChatSink(notify.NewWebhookChatSink(cfg.ChatWebhookURL)))
	}
	if mailCfg := mail.LoadConfig(); mailCfg.Configured() && cfg.AlertEmail != "" {
		renderer, err := notify.NewAlertRenderer()
		if err != nil {
			log.Fatal(err)
		}
		opts = append(opts, notify.WithMail(mail.NewSMTPMailer(mailCfg), renderer, cfg.AlertEmail))
	}

	manager := jobqueue.GetManager()
	notify.NewDeliverer(opts...).Register(manager.GetQueue())
	manager.Start()

	return notify.NewQueueNotifier(manager.GetQueue())
}

func setupArchive() *eventarchive.Archive {
	cfg, err := eventarchive.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	if !cfg.IsEnabled() {
		return nil
	}
	archive, err := eventarchive.New(context.Background(), cfg)
	if err != nil {
		log.Printf("Warning: event archive disabled: %v", err)
		return nil
	}
	return archive
}
