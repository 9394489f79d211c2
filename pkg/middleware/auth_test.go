package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"budstack-service/pkg/jwtutil"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(util *jwtutil.JWTUtil) *echo.Echo {
	e := echo.New()
	e.Use(RequestIDMiddleware())

	admin := e.Group("/admin", JWTAuthMiddleware(util), RequireRole("SUPER_ADMIN"))
	admin.GET("", func(c echo.Context) error {
		claims, _ := ClaimsFromContext(c)
		return c.JSON(http.StatusOK, echo.Map{"user_id": claims.UserID})
	})

	e.GET("/maybe", func(c echo.Context) error {
		if _, ok := ClaimsFromContext(c); ok {
			return c.String(http.StatusOK, "known")
		}
		return c.String(http.StatusOK, "anonymous")
	}, OptionalJWTMiddleware(util))
	return e
}

func do(e *echo.Echo, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth_AndRoles(t *testing.T) {
	util := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{SigningKey: "k", ExpirationHours: 1})
	e := newTestServer(util)

	superToken, err := util.GenerateToken("root@budstack.io", 1, "SUPER_ADMIN", nil, "")
	require.NoError(t, err)
	customerToken, err := util.GenerateToken("c@shop.test", 2, "CUSTOMER", nil, "")
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, do(e, "/admin", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(e, "/admin", "garbage").Code)
	assert.Equal(t, http.StatusForbidden, do(e, "/admin", customerToken).Code)

	rec := do(e, "/admin", superToken)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestOptionalJWT(t *testing.T) {
	util := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{SigningKey: "k", ExpirationHours: 1})
	e := newTestServer(util)
	token, err := util.GenerateToken("c@shop.test", 2, "CUSTOMER", nil, "")
	require.NoError(t, err)

	assert.Equal(t, "anonymous", do(e, "/maybe", "").Body.String())
	assert.Equal(t, "anonymous", do(e, "/maybe", "bad").Body.String())
	assert.Equal(t, "known", do(e, "/maybe", token).Body.String())
}

func TestBearerToken(t *testing.T) {
	_, ok := bearerToken("Basic abc")
	assert.False(t, ok)
	_, ok = bearerToken("Bearer ")
	assert.False(t, ok)
	tok, ok := bearerToken("bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)
}
