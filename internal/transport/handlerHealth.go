package transport

import (
	"net/http"

	"github.com/ds124wfegd/notification-hub/internal/rabbitMQ"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// HealthHandler aggregates broker/cache/downstream checks. The downstream
// check reflects the provider dispatch breaker and is only wired on workers.
type HealthHandler struct {
	redis         *redis.Client
	rabbit        *rabbitMQ.RabbitMQ
	breakerStates func() map[string]string
}

func NewHealthHandler(redisClient *redis.Client, rabbit *rabbitMQ.RabbitMQ) *HealthHandler {
	return &HealthHandler{redis: redisClient, rabbit: rabbit}
}

// WithBreakerStates adds circuit breaker reporting to the downstream check.
func (h *HealthHandler) WithBreakerStates(states func() map[string]string) *HealthHandler {
	h.breakerStates = states
	return h
}

func (h *HealthHandler) Check(c *gin.Context) {
	checks := gin.H{
		"broker": "down",
		"cache":  "down",
	}

	healthy := true

	if err := h.rabbit.HealthCheck(); err == nil {
		checks["broker"] = "up"
	} else {
		healthy = false
	}

	if err := h.redis.Ping(c.Request.Context()).Err(); err == nil {
		checks["cache"] = "up"
	} else {
		healthy = false
	}

	if h.breakerStates != nil {
		downstream := "up"
		for _, state := range h.breakerStates() {
			if state == "open" {
				downstream = "circuit_open"
				healthy = false
			}
		}
		checks["downstream"] = downstream
	}

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status": status,
		"checks": checks,
	})
}
