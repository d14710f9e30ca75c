package billing

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ManuelReschke/OpsLedger/internal/pkg/env"
)

// Config holds Stripe and reconciliation settings.
type Config struct {
	SecretKey       string `validate:"omitempty,startswith=sk_|startswith=rk_"`
	WebhookSecret   string
	DefaultCurrency string        `validate:"required,len=3"`
	WebhookTimeout  time.Duration `validate:"min=1000000000"`
}

// LoadConfig loads billing configuration from environment variables.
func LoadConfig() (*Config, error) {
	config := &Config{
		SecretKey:       env.GetEnv("STRIPE_SECRET_KEY", ""),
		WebhookSecret:   env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		DefaultCurrency: normalizeCurrency(env.GetEnv("BILLING_DEFAULT_CURRENCY", "usd"), "usd"),
		WebhookTimeout:  time.Duration(env.GetEnvInt("BILLING_WEBHOOK_TIMEOUT", 20)) * time.Second,
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid billing config: %w", err)
	}
	return config, nil
}

// WebhookConfigured reports whether inbound Stripe deliveries can be verified.
func (c *Config) WebhookConfigured() bool {
	return c != nil && c.WebhookSecret != ""
}

// VendorConfigured reports whether Stripe API lookups are possible.
func (c *Config) VendorConfigured() bool {
	return c != nil && c.SecretKey != ""
}
