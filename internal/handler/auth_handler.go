package handler

import (
	"context"
	"net/http"

	"budstack-service/internal/middleware"
	"budstack-service/internal/model"
	"budstack-service/internal/service"
	"budstack-service/pkg/logger"
	pkgmiddleware "budstack-service/pkg/middleware"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Authenticator signs users in and registers storefront customers
type Authenticator interface {
	Login(ctx context.Context, email, password string, tenant *model.Tenant) (*service.AuthResult, error)
	Register(ctx context.Context, tenant *model.Tenant, input service.RegisterInput) (*service.AuthResult, error)
	Profile(ctx context.Context, userID uint) (*model.User, error)
}

type AuthHandler struct {
	auth Authenticator
}

func NewAuthHandler(auth Authenticator) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Login handles user authentication. The store, when the request names one, scopes the lookup.
func (h *AuthHandler) Login(c echo.Context) error {
	log := logger.FromEcho(c)

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}

	tenant, _ := middleware.TenantFromContext(c)
	result, err := h.auth.Login(c.Request().Context(), req.Email, req.Password, tenant)
	if err != nil {
		log.Warn("Login failed", zap.String("email", req.Email), zap.Error(err))
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

// Register creates a customer account on the current storefront
func (h *AuthHandler) Register(c echo.Context) error {
	var req service.RegisterInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}

	tenant, ok := middleware.TenantFromContext(c)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "store not found"})
	}

	result, err := h.auth.Register(c.Request().Context(), tenant, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, result)
}

// Profile returns the authenticated user
func (h *AuthHandler) Profile(c echo.Context) error {
	claims, ok := pkgmiddleware.ClaimsFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	user, err := h.auth.Profile(c.Request().Context(), claims.UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user":        user,
		"tenant_id":   claims.TenantID,
		"tenant_name": claims.TenantName,
	})
}
