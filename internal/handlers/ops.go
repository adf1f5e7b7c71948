package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	u "certcenter/internal/utils"
)

// ReadinessProbe reports whether the shared rate-limit store answers. With
// no Redis configured the service keeps limiter state in memory and is
// always ready.
func ReadinessProbe(rdb *redis.Client) func(*fiber.Ctx) bool {
	return func(c *fiber.Ctx) bool {
		if rdb == nil {
			return true
		}
		ctx, cancel := context.WithTimeout(c.Context(), time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			u.Warn("Readiness check failed", "store", "redis", "error", err)
			return false
		}
		return true
	}
}
