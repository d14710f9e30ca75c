package notify

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/ManuelReschke/OpsLedger/internal/pkg/env"
)

// Config holds side-effect delivery settings
type Config struct {
	Enabled        bool
	ChatWebhookURL string `validate:"omitempty,url"`
	AlertEmail     string `validate:"omitempty,email"`
	Workers        int    `validate:"min=1,max=50"`
}

// LoadConfig loads notification configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		Enabled:        env.GetEnvBool("NOTIFY_ENABLED", true),
		ChatWebhookURL: env.GetEnv("NOTIFY_CHAT_WEBHOOK_URL", ""),
		AlertEmail:     env.GetEnv("NOTIFY_ALERT_EMAIL", ""),
		Workers:        env.GetEnvInt("NOTIFY_WORKERS", 5),
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid notify config: %w", err)
	}
	return config, nil
}
