package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"budstack-service/internal/middleware"
	"budstack-service/internal/model"
	"budstack-service/pkg/jwtutil"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

var testJWT = jwtutil.NewJWTUtil(&jwtutil.JWTConfig{SigningKey: "handler-test", ExpirationHours: 1})

type staticResolver struct {
	tenant *model.Tenant
}

func (s staticResolver) Resolve(context.Context, string, string) (*model.Tenant, error) {
	if s.tenant == nil {
		return nil, model.ErrNotFound
	}
	return s.tenant, nil
}

type staticSettings struct{}

func (staticSettings) Get(context.Context) (*model.PlatformSettings, error) {
	ps := model.DefaultPlatformSettings()
	return &ps, nil
}

func liveTenant() *model.Tenant {
	return &model.Tenant{
		ID:                    1,
		BusinessName:          "Green Leaf",
		Subdomain:             "green",
		Status:                model.TenantStatusApproved,
		IsActive:              true,
		TaxRateBps:            825,
		ShippingFeeCents:      500,
		FreeShippingOverCents: 10000,
	}
}

// storefront mounts the tenant and session middlewares the way main does
func storefront(e *echo.Echo, tenant *model.Tenant) *echo.Group {
	return e.Group("/api",
		middleware.StorefrontTenant(staticResolver{tenant}, staticSettings{}),
		middleware.Session("budstack_session", false))
}

func tokenFor(t *testing.T, userID uint, role string, tenantID *uint) string {
	t.Helper()
	token, err := testJWT.GenerateToken("user@shop.test", userID, role, tenantID, "Green Leaf")
	require.NoError(t, err)
	return token
}

type call struct {
	method  string
	path    string
	body    string
	token   string
	session string
}

func perform(e *echo.Echo, c call) *httptest.ResponseRecorder {
	var body io.Reader
	if c.body != "" {
		body = strings.NewReader(c.body)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	req.Host = "green.budstack.io"
	if c.body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if c.token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+c.token)
	}
	if c.session != "" {
		req.Header.Set(middleware.HeaderSessionID, c.session)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}
