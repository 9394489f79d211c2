package handler

import (
	"errors"
	"net/http"
	"strings"

	"budstack-service/internal/model"
	"budstack-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// respondError writes the JSON error for err. Unknown errors are logged and hidden behind a
// generic message.
func respondError(c echo.Context, err error) error {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Message, "field": verr.Field})
	}

	status, msg := classify(err)
	if status == http.StatusInternalServerError {
		logger.FromEcho(c).Error("Request failed",
			zap.String("path", c.Path()),
			zap.Error(err))
	}
	return c.JSON(status, echo.Map{"error": msg})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, model.ErrUnauthorized):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, model.ErrInactiveTenant):
		return http.StatusForbidden, model.ErrInactiveTenant.Error()
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden, message(err, model.ErrForbidden)
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, model.ErrInsufficientStock):
		return http.StatusConflict, model.ErrInsufficientStock.Error()
	case errors.Is(err, model.ErrInvalidTransition):
		return http.StatusConflict, model.ErrInvalidTransition.Error()
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict, message(err, model.ErrConflict)
	case errors.Is(err, model.ErrEmptyCart):
		return http.StatusUnprocessableEntity, model.ErrEmptyCart.Error()
	case errors.Is(err, model.ErrUnavailable):
		return http.StatusServiceUnavailable, "service temporarily unavailable"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// message keeps the service's wrapping text and drops the sentinel it wraps
func message(err, sentinel error) string {
	msg := strings.TrimSuffix(err.Error(), ": "+sentinel.Error())
	msg = strings.TrimPrefix(msg, sentinel.Error()+": ")
	if msg == "" {
		return sentinel.Error()
	}
	return msg
}

func badRequest(c echo.Context, err error) error {
	logger.FromEcho(c).Error("Failed to parse request body", zap.Error(err))
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
}
