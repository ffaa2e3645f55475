package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/notely/internal/monitoring"
	"github.com/charlesng35/notely/pkg/logger"
)

// Health reports readiness. Any failing probe answers 503 with the full report.
func Health(manager *monitoring.HealthManager) gin.HandlerFunc {
	return healthProbe(manager, (*monitoring.HealthManager).EvaluateReadiness)
}

// Liveness reports whether the process is serving requests.
func Liveness(manager *monitoring.HealthManager) gin.HandlerFunc {
	return healthProbe(manager, (*monitoring.HealthManager).EvaluateLiveness)
}

func healthProbe(manager *monitoring.HealthManager, evaluate func(*monitoring.HealthManager, context.Context) monitoring.HealthReport) gin.HandlerFunc {
	if manager == nil {
		manager = monitoring.NewHealthManager()
	}

	return func(c *gin.Context) {
		report := evaluate(manager, requestContext(c))
		if !report.Success {
			logger.WithModule("health").Warn("health probe failing",
				zap.String("status", string(report.Status)),
				zap.Any("checks", report.Checks),
			)
			c.JSON(http.StatusServiceUnavailable, report)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// Ping answers liveness probes with a plain "pong".
func Ping(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}
