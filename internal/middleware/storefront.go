package middleware

import (
	"context"
	"errors"
	"net/http"

	"budstack-service/internal/model"
	"budstack-service/pkg/logger"
	pkgmiddleware "budstack-service/pkg/middleware"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	HeaderTenantSubdomain = "X-Tenant-Subdomain"
	HeaderSessionID       = "X-Session-ID"

	tenantKey  = "tenant"
	sessionKey = "session_id"

	maxSessionIDLength = 64
)

// TenantResolver maps a request host to its tenant
type TenantResolver interface {
	Resolve(ctx context.Context, host, fallbackSubdomain string) (*model.Tenant, error)
}

// SettingsReader loads the platform settings
type SettingsReader interface {
	Get(ctx context.Context) (*model.PlatformSettings, error)
}

// StorefrontTenant resolves the tenant of a storefront request and rejects unknown, inactive
// and maintenance-mode stores
func StorefrontTenant(resolver TenantResolver, settings SettingsReader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)
			ctx := c.Request().Context()

			tenant, err := resolver.Resolve(ctx, c.Request().Host, fallbackSubdomain(c))
			if err != nil {
				if errors.Is(err, model.ErrNotFound) {
					log.Info("Store not found", zap.String("host", c.Request().Host))
					return c.JSON(http.StatusNotFound, echo.Map{"error": "store not found"})
				}
				log.Error("Failed to resolve tenant", zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
			}
			if !tenant.IsLive() {
				log.Info("Store is not active",
					zap.Uint("tenant_id", tenant.ID),
					zap.String("status", string(tenant.Status)))
				return c.JSON(http.StatusForbidden, echo.Map{"error": "store is not active"})
			}

			ps, err := settings.Get(ctx)
			if err != nil {
				log.Error("Failed to load platform settings", zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
			}
			if ps.MaintenanceMode {
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "platform under maintenance"})
			}

			setTenant(c, tenant)
			return next(c)
		}
	}
}

// OptionalStorefrontTenant attaches the tenant when one can be resolved. Used by login, where
// tenant admins of pending stores must still get in.
func OptionalStorefrontTenant(resolver TenantResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tenant, err := resolver.Resolve(c.Request().Context(), c.Request().Host, fallbackSubdomain(c))
			switch {
			case err == nil:
				setTenant(c, tenant)
			case !errors.Is(err, model.ErrNotFound):
				logger.FromEcho(c).Warn("Tenant lookup failed", zap.Error(err))
			}
			return next(c)
		}
	}
}

// TenantFromContext returns the tenant stored by the storefront middlewares
func TenantFromContext(c echo.Context) (*model.Tenant, bool) {
	tenant, ok := c.Get(tenantKey).(*model.Tenant)
	return tenant, ok
}

func setTenant(c echo.Context, tenant *model.Tenant) {
	c.Set(tenantKey, tenant)
	c.Set("tenant_id", tenant.ID)
}

func fallbackSubdomain(c echo.Context) string {
	if sub := c.Request().Header.Get(HeaderTenantSubdomain); sub != "" {
		return sub
	}
	return c.QueryParam("tenant")
}

// Session identifies the shopper's cart. The id comes from the X-Session-ID header or the
// session cookie; a new one is issued as a cookie when neither is present.
func Session(cookieName string, secure bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(HeaderSessionID)
			if id == "" {
				if cookie, err := c.Cookie(cookieName); err == nil {
					id = cookie.Value
				}
			}

			if id == "" || len(id) > maxSessionIDLength {
				id = uuid.NewString()
				c.SetCookie(&http.Cookie{
					Name:     cookieName,
					Value:    id,
					Path:     "/",
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
				logger.FromEcho(c).Debug("Issued new session", zap.String("session_id", id))
			}

			c.Set(sessionKey, id)
			c.Response().Header().Set(HeaderSessionID, id)
			return next(c)
		}
	}
}

// SessionFromContext returns the session id set by Session
func SessionFromContext(c echo.Context) string {
	id, _ := c.Get(sessionKey).(string)
	return id
}

// RequireTenant rejects tokens that are not scoped to a tenant. Must run after the JWT middleware.
func RequireTenant() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := pkgmiddleware.ClaimsFromContext(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}
			if claims.TenantID == nil {
				logger.FromEcho(c).Warn("Token has no tenant", zap.Uint("user_id", claims.UserID))
				return c.JSON(http.StatusForbidden, echo.Map{"error": "no store associated with this account"})
			}
			return next(c)
		}
	}
}
