package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateLimit enforces a fixed-window per-client request limit backed by
// Redis. Authenticated clients are keyed by user id, anonymous ones by
// IP. Redis being down fails open: editing routes should not stop
// because the limiter is unavailable.
func RateLimit(rdb *redis.Client, perSecond int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if perSecond <= 0 {
			return c.Next()
		}

		client := UserID(c)
		if client == "" {
			client = c.IP()
		}

		ctx := c.Context()
		now := time.Now()
		key := fmt.Sprintf("rl:%s:%d", client, now.Unix())

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			return c.Next()
		}
		rdb.Expire(ctx, key, 2*time.Second)

		if count > int64(perSecond) {
			c.Set("X-RateLimit-Limit", strconv.Itoa(perSecond))
			c.Set("X-RateLimit-Remaining", "0")
			c.Set("Retry-After", "1")
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"message": "too many requests",
			})
		}
		return c.Next()
	}
}
