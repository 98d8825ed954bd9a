package transport

import (
	"github.com/ds124wfegd/notification-hub/internal/service"
	"github.com/ds124wfegd/notification-hub/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// InitRoutes wires the gateway HTTP surface.
func InitRoutes(usecase service.IngestionService, health *HealthHandler) *gin.Engine {
	router := gin.Default()

	handler := NewNotificationHandler(usecase)

	api := router.Group("/api/v1")
	{
		api.POST("/notifications", handler.CreateNotification)
		api.GET("/notifications/:id/status", handler.GetNotificationStatus)
		api.POST("/notifications/bulk", handler.CreateBulkNotification)
	}

	router.GET("/health", health.Check)

	return router
}

// InitWorkerRoutes wires the worker's health/metrics surface.
func InitWorkerRoutes(health *HealthHandler, m *metrics.Metrics) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", health.Check)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	return router
}
