package middleware

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const idempotencyKeyPrefix = "ledger:idempotency:"

// Idempotency replays cached responses for repeated X-Correlation-ID values
// on mutating requests. A wallet UI that retries a purchase after a network
// timeout must not buy the periods twice: within the TTL the stored response
// is returned instead of re-running the operation.
func Idempotency(redisClient *redis.Client, ttl time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch:
		default:
			return c.Next()
		}

		correlationID := c.Get("X-Correlation-ID")
		if correlationID == "" {
			return c.Next()
		}
		key := idempotencyKeyPrefix + correlationID

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		cached, err := redisClient.Get(ctx, key).Bytes()
		if err == nil && len(cached) > 0 {
			c.Set("X-Idempotent-Replay", "true")
			c.Set("Content-Type", "application/json")
			return c.Send(cached)
		}

		if err := c.Next(); err != nil {
			return err
		}

		// Only successful outcomes are replayable; a failed purchase
		// should be retried for real.
		status := c.Response().StatusCode()
		if status >= 200 && status < 300 {
			if body := c.Response().Body(); len(body) > 0 {
				if err := redisClient.Set(ctx, key, body, ttl).Err(); err != nil {
					// The operation already committed; losing the
					// replay entry is the lesser failure.
					return nil
				}
			}
		}
		return nil
	}
}
