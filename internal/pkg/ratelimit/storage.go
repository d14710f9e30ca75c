package ratelimit

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/OpsLedger/internal/pkg/cache"
	"github.com/ManuelReschke/OpsLedger/internal/pkg/env"
)

// NewStorage returns Redis-backed limiter storage so counters are shared
// across instances. Database 2 by default; cache and job queue use DB 0.
func NewStorage() fiber.Storage {
	cacheClient := cache.GetClient()
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	if cacheClient != nil {
		addr := cacheClient.Options().Addr
		if h, p, err := net.SplitHostPort(addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := cacheClient.Options().Password; p != "" {
			password = p
		}
	}

	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: env.GetEnvInt("RATELIMIT_REDIS_DB", 2),
		Reset:    false,
	})
}

// Config describes one limiter.
type Config struct {
	Max        int
	Expiration time.Duration
	Storage    fiber.Storage // nil keeps counters in memory
}

// New builds a limiter keyed by client IP answering 429 with a JSON body.
func New(cfg Config) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        cfg.Max,
		Expiration: cfg.Expiration,
		Storage:    cfg.Storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "ratelimit:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "too_many_requests",
				"message": "rate limit exceeded",
			})
		},
	})
}
