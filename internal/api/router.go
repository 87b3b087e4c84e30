package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/ha-trend-monitor/internal/api/handlers"
	"github.com/frostdev-ops/ha-trend-monitor/internal/api/middleware"
	"github.com/frostdev-ops/ha-trend-monitor/internal/config"
	"github.com/frostdev-ops/ha-trend-monitor/internal/core/metrics"
	"github.com/frostdev-ops/ha-trend-monitor/internal/websocket"
)

// Dependencies are the services the router exposes.
type Dependencies struct {
	Poller    handlers.Poller
	Directory handlers.Directory
	Health    *metrics.HealthChecker
	Hub       *websocket.Hub
	Metrics   metrics.MetricsCollector
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
}

// NewRouter creates and configures the main HTTP router
func NewRouter(cfg config.HTTPConfig, deps Dependencies, logger *logrus.Logger) *gin.Engine {
	switch cfg.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.ErrorHandlingMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger, "/metrics", "/health"))
	router.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	router.Use(middleware.ErrorResponseMiddleware(logger))
	if deps.Metrics != nil {
		router.Use(middleware.MetricsMiddleware(deps.Metrics))
	}

	h := handlers.NewHandlers(deps.Poller, deps.Directory, deps.Health, logger)

	// Public routes
	router.GET("/health", h.Health)
	if deps.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}
	if deps.Hub != nil {
		router.GET("/ws", websocket.HandleWebSocketGin(deps.Hub))
	}

	// API v1 routes
	api := router.Group("/api/v1")
	{
		api.GET("/version", h.Version)
		api.GET("/domains", h.GetDomains)
		api.GET("/snapshot", h.GetSnapshot)

		entities := api.Group("/entities")
		{
			entities.GET("", h.GetEntities)
			entities.GET("/:id", h.GetEntity)
		}

		selection := api.Group("/selection")
		{
			selection.GET("", h.GetSelection)
			selection.PUT("", h.SetSelection)
		}

		api.POST("/directory/refresh", h.RefreshDirectory)
	}

	return router
}
