package handler

import (
	"context"
	"net/http"
	"time"

	"budstack-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const healthTimeout = 2 * time.Second

type HealthHandler struct {
	service string
	ping    func(ctx context.Context) error
}

// NewHealthHandler reports on the service and its database through ping
func NewHealthHandler(service string, ping func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{service: service, ping: ping}
}

// HealthCheck handles the health check endpoint
func (h *HealthHandler) HealthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	if err := h.ping(ctx); err != nil {
		logger.FromEcho(c).Error("Database health check failed", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, echo.Map{
			"status":   "unhealthy",
			"service":  h.service,
			"database": "down",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":   "healthy",
		"service":  h.service,
		"database": "up",
	})
}
