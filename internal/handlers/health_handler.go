package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"pibot/internal/services"
)

// HealthHandler reports process health for load balancers and dashboards
type HealthHandler struct {
	startTime time.Time
	sessions  interface{ Len() int }
	files     *services.FileCacheService
	redis     *services.RedisService // nil when Redis is not configured
}

// NewHealthHandler creates a health handler. redis may be nil.
func NewHealthHandler(sessions interface{ Len() int }, files *services.FileCacheService, redis *services.RedisService) *HealthHandler {
	return &HealthHandler{
		startTime: time.Now(),
		sessions:  sessions,
		files:     files,
		redis:     redis,
	}
}

// HandleHealth is GET /health
func (h *HealthHandler) HandleHealth(c *fiber.Ctx) error {
	resp := fiber.Map{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
		"sessions":       h.sessions.Len(),
		"cached_images":  h.files.Count(),
	}

	if h.redis != nil {
		if err := h.redis.Ping(c.Context()); err != nil {
			resp["redis"] = "down"
			resp["status"] = "degraded"
		} else {
			resp["redis"] = "ok"
		}
	}

	return c.JSON(resp)
}
