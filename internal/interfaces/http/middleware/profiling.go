package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/shopdesk/backend/internal/infrastructure/telemetry"
)

// Profiling labels the request's goroutine with its route and tenant so
// Pyroscope profiles can be filtered per endpoint. Place it after Auth.
func Profiling(enabled bool) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" || route == "/health" {
			c.Next()
			return
		}

		labels := map[string]string{telemetry.ProfilingLabelRoute: route}
		if tenantID, ok := GetTenantID(c); ok {
			labels[telemetry.ProfilingLabelTenantID] = tenantID.String()
		}

		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}
