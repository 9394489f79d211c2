package middleware

import (
	"net/http"
	"strings"

	"budstack-service/pkg/jwtutil"
	"budstack-service/pkg/logger"
	"budstack-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const claimsKey = "user"

// JWTAuthMiddleware rejects requests without a valid Bearer token
func JWTAuthMiddleware(jwtUtil *jwtutil.JWTUtil) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				log.Warn("Missing authorization header")
				prometheus.RecordAuthError("missing_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization token"})
			}

			tokenString, ok := bearerToken(authHeader)
			if !ok {
				log.Warn("Invalid authorization header format")
				prometheus.RecordAuthError("invalid_auth_format")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
			}

			claims, err := jwtUtil.ValidateToken(tokenString)
			if err != nil {
				log.Warn("Invalid or expired token", zap.Error(err))
				prometheus.RecordAuthError("invalid_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			setClaims(c, claims)
			log.Debug("JWT token validated successfully",
				zap.Uint("user_id", claims.UserID),
				zap.String("role", claims.Role))

			return next(c)
		}
	}
}

// OptionalJWTMiddleware attaches claims when a valid token is present and otherwise lets the
// request through anonymously
func OptionalJWTMiddleware(jwtUtil *jwtutil.JWTUtil) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if tokenString, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization)); ok {
				if claims, err := jwtUtil.ValidateToken(tokenString); err == nil {
					setClaims(c, claims)
				}
			}
			return next(c)
		}
	}
}

// RequireRole allows only the listed roles. Must run after JWTAuthMiddleware.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := ClaimsFromContext(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}
			for _, role := range roles {
				if claims.Role == role {
					return next(c)
				}
			}
			logger.FromEcho(c).Warn("Role not permitted",
				zap.Uint("user_id", claims.UserID),
				zap.String("role", claims.Role),
				zap.Strings("allowed", roles))
			prometheus.RecordAuthError("role_denied")
			return c.JSON(http.StatusForbidden, echo.Map{"error": "insufficient permissions"})
		}
	}
}

// ClaimsFromContext returns the claims stored by the auth middlewares
func ClaimsFromContext(c echo.Context) (*jwtutil.UserClaims, bool) {
	claims, ok := c.Get(claimsKey).(*jwtutil.UserClaims)
	return claims, ok
}

func setClaims(c echo.Context, claims *jwtutil.UserClaims) {
	c.Set(claimsKey, claims)
	c.Set("user_id", claims.UserID)
	c.Set("email", claims.Email)
	c.Set("user_role", claims.Role)
	if claims.TenantID != nil {
		c.Set("tenant_id", *claims.TenantID)
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
