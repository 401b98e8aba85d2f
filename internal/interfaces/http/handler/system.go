package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopdesk/backend/internal/infrastructure/logger"
	"github.com/shopdesk/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping() error
}

// EventBusStats exposes the in-process event bus counters
type EventBusStats interface {
	IsRunning() bool
	Stats() (published, failed int64)
}

// SystemHandler serves health and build information
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	db        Pinger
	events    EventBusStats
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler. db may be nil.
func NewSystemHandler(name, version string, db Pinger) *SystemHandler {
	return &SystemHandler{
		name:      name,
		version:   version,
		db:        db,
		startTime: time.Now(),
	}
}

// WithEventBus adds event bus counters to the system info
func (h *SystemHandler) WithEventBus(events EventBusStats) *SystemHandler {
	h.events = events
	return h
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status" example:"healthy"`
	Database string `json:"database" example:"up"`
	Uptime   string `json:"uptime" example:"1h30m45s"`
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string        `json:"name" example:"shopdesk-invoicing"`
	Version   string        `json:"version" example:"1.0.0"`
	GoVersion string        `json:"go_version" example:"go1.25.5"`
	Uptime    string        `json:"uptime" example:"1h30m45s"`
	Events    *EventBusInfo `json:"events,omitempty"`
}

// EventBusInfo reports domain event delivery counters
type EventBusInfo struct {
	Running         bool  `json:"running" example:"true"`
	Published       int64 `json:"published" example:"1042"`
	HandlerFailures int64 `json:"handler_failures" example:"0"`
}

// Health godoc
//
//	@Summary		Health check
//	@Description	Reports 503 when the database is unreachable
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	APIResponse[HealthResponse]
//	@Failure		503	{object}	APIResponse[HealthResponse]
//	@Router			/health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:   "healthy",
		Database: "up",
		Uptime:   h.uptime(),
	}
	status := http.StatusOK

	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			logger.L(c.Request.Context()).Warn("Health check failed", zap.Error(err))
			resp.Status = "unhealthy"
			resp.Database = "down"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, dto.Response{Success: status == http.StatusOK, Data: resp})
}

// GetSystemInfo godoc
//
//	@Summary	Get system information
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	APIResponse[SystemInfoResponse]
//	@Router		/system/info [get]
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	info := SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    h.uptime(),
	}
	if h.events != nil {
		published, failed := h.events.Stats()
		info.Events = &EventBusInfo{
			Running:         h.events.IsRunning(),
			Published:       published,
			HandlerFailures: failed,
		}
	}
	h.Success(c, info)
}

func (h *SystemHandler) uptime() string {
	return time.Since(h.startTime).Round(time.Second).String()
}
