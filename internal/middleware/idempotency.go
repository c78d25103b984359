package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "idem:v1:"
	pendingMarker        = "pending"
	storeTimeout         = 2 * time.Second
)

type replay struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

// Idempotency replays the stored response for repeated unsafe requests that
// carry the same Idempotency-Key, so a retried register or verify call does
// not start a second provider round trip. Requests without the header pass
// through untouched.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodGet || c.Method() == fiber.MethodHead {
			return c.Next()
		}
		key := c.Get(idempotencyKeyHeader)
		if key == "" {
			return c.Next()
		}
		cacheKey := idempotencyPrefix + key

		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		reserved, err := cache.SetNX(ctx, cacheKey, pendingMarker, ttl).Result()
		if err != nil {
			logger.Error("idempotency reservation failed", "key", key, "error", err)
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency store failure")
		}

		if !reserved {
			stored, err := cache.Get(ctx, cacheKey).Result()
			if err != nil {
				logger.Error("idempotency lookup failed", "key", key, "error", err)
				return fiber.NewError(fiber.StatusInternalServerError, "idempotency store failure")
			}
			if stored == pendingMarker {
				return fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
			}
			var r replay
			if err := json.Unmarshal([]byte(stored), &r); err != nil {
				return fiber.NewError(fiber.StatusConflict, "duplicate request")
			}
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Status(r.Status).SendString(r.Body)
		}

		if err := c.Next(); err != nil {
			// Errors are not replayable; release the key so the client can retry.
			cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), storeTimeout)
			defer cleanupCancel()
			cache.Del(cleanupCtx, cacheKey)
			return err
		}

		payload, err := json.Marshal(replay{
			Status: c.Response().StatusCode(),
			Body:   string(c.Response().Body()),
		})
		if err != nil {
			logger.Error("idempotency encode failed", "key", key, "error", err)
			return nil
		}

		persistCtx, persistCancel := context.WithTimeout(context.Background(), storeTimeout)
		defer persistCancel()
		if err := cache.Set(persistCtx, cacheKey, payload, ttl).Err(); err != nil {
			logger.Warn("idempotency persist failed", "key", key, "error", err)
		}
		return nil
	}
}
