package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopdesk/backend/internal/domain/shared"
	"github.com/shopdesk/backend/internal/infrastructure/logger"
	"github.com/shopdesk/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// IdempotencyKeyHeader is the request header clients set on retryable writes
const IdempotencyKeyHeader = "Idempotency-Key"

const maxIdempotencyKeyLength = 255

// IdempotencyConfig holds configuration for the idempotency guard
type IdempotencyConfig struct {
	Store  shared.IdempotencyStore
	TTL    time.Duration
	Logger *zap.Logger
}

// Idempotency rejects a write whose Idempotency-Key was already used for the
// same tenant and path. Requests without the header pass through. A claim is
// released again when the handler does not succeed so the client can retry.
// Must run after Auth.
func Idempotency(cfg IdempotencyConfig) gin.HandlerFunc {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
		if raw == "" || cfg.Store == nil {
			c.Next()
			return
		}
		if len(raw) > maxIdempotencyKeyLength {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeBadRequest, "Idempotency-Key must be at most 255 characters", GetRequestID(c)))
			return
		}

		tenantID, ok := GetTenantID(c)
		if !ok {
			c.Next()
			return
		}
		key := tenantID.String() + ":" + c.Request.Method + ":" + c.Request.URL.Path + ":" + raw

		ctx := c.Request.Context()
		log := logger.Enrich(ctx, cfg.Logger)

		claimed, err := cfg.Store.MarkProcessed(ctx, key, cfg.TTL)
		if err != nil {
			// unavailable store: fall back to the optimistic version check
			log.Warn("Idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !claimed {
			log.Info("Duplicate request rejected", zap.String("idempotency_key", raw))
			c.AbortWithStatusJSON(http.StatusConflict, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeDuplicateRequest, "A request with this Idempotency-Key was already processed", GetRequestID(c)))
			return
		}

		c.Next()

		// the client may already be gone; release regardless
		if status := c.Writer.Status(); status >= http.StatusBadRequest {
			if err := cfg.Store.Forget(context.WithoutCancel(ctx), key); err != nil {
				log.Warn("Failed to release idempotency key", zap.Error(err))
			}
		}
	}
}
