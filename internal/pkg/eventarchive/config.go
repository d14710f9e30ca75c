package eventarchive

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/OpsLedger/internal/pkg/env"
)

// Config holds S3 settings for the raw webhook archive.
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Prefix          string
	Enabled         bool
}

// LoadConfig loads archive configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Prefix:          strings.Trim(env.GetEnv("EVENT_ARCHIVE_PREFIX", "webhooks"), "/"),
		Enabled:         env.GetEnvBool("EVENT_ARCHIVE_ENABLED", false),
	}

	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when the event archive is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when the event archive is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when the event archive is enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if archiving is enabled
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// ObjectKey generates the object key for one event.
// Format: <prefix>/<provider>/YYYY/MM/DD/<eventID>.json
func (c *Config) ObjectKey(provider, eventID string, received time.Time) string {
	prefix := c.Prefix
	if prefix == "" {
		prefix = "webhooks"
	}
	received = received.UTC()
	return fmt.Sprintf("%s/%s/%04d/%02d/%02d/%s.json",
		prefix, provider, received.Year(), int(received.Month()), received.Day(), sanitizeKeyPart(eventID))
}

func sanitizeKeyPart(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == ':':
			return r
		default:
			return '_'
		}
	}, s)
}
