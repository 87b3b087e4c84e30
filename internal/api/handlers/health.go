package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/frostdev-ops/ha-trend-monitor/internal/core/metrics"
	"github.com/frostdev-ops/ha-trend-monitor/pkg/utils"
	"github.com/frostdev-ops/ha-trend-monitor/pkg/version"
)

// Pinger checks that Home Assistant answers.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// RegisterHealthChecks adds the home_assistant, directory and poller
// components to checker.
func RegisterHealthChecks(checker *metrics.HealthChecker, gateway Pinger, d Directory, p Poller) {
	checker.Register("home_assistant", func(ctx context.Context) metrics.HealthStatus {
		start := time.Now()
		if err := gateway.HealthCheck(ctx); err != nil {
			return metrics.NewHealthStatus("unhealthy", err.Error())
		}
		return metrics.NewHealthStatus("healthy", "Home Assistant reachable").
			WithDetail("latency", time.Since(start).String())
	})

	checker.Register("directory", func(ctx context.Context) metrics.HealthStatus {
		refreshed := d.RefreshedAt()
		if refreshed.IsZero() {
			return metrics.NewHealthStatus("degraded", "Entity directory never loaded")
		}
		return metrics.NewHealthStatus("healthy", fmt.Sprintf("%d entities", d.Len())).
			WithDetail("refreshed_at", refreshed.UTC().Format(time.RFC3339))
	})

	checker.Register("poller", func(ctx context.Context) metrics.HealthStatus {
		if !p.IsRunning() {
			return metrics.NewHealthStatus("unhealthy", "Poll loop is not running")
		}
		last := p.LastTick()
		status := metrics.NewHealthStatus("healthy", "Polling").
			WithDetail("interval", p.Interval().String()).
			WithDetail("tracked", len(p.Selection()))
		if last.IsZero() {
			return status
		}
		status = status.WithDetail("last_tick", last.UTC().Format(time.RFC3339))
		// three missed ticks in a row means the worker is stuck or starved
		if time.Since(last) > 3*p.Interval() {
			status.Status = "degraded"
			status.Message = "Poll ticks are late"
		}
		return status
	})
}

// Health returns the health status of the service
func (h *Handlers) Health(c *gin.Context) {
	report := h.health.GetOverallHealth(c.Request.Context())

	code := http.StatusOK
	if report.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, utils.Response{
		Success: code == http.StatusOK,
		Data: gin.H{
			"status":     report.Status,
			"message":    report.Message,
			"service":    "ha-trend-monitor",
			"version":    version.GetVersion(),
			"components": report.Components,
			"system":     report.SystemInfo,
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Version returns build information.
func (h *Handlers) Version(c *gin.Context) {
	utils.SendSuccess(c, version.GetBuildInfo())
}
