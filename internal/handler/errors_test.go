package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"budstack-service/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"validation", model.NewValidationError("quantity", "must be between 1 and 99"), http.StatusBadRequest, "must be between 1 and 99"},
		{"unauthorized", fmt.Errorf("invalid credentials: %w", model.ErrUnauthorized), http.StatusUnauthorized, "invalid credentials"},
		{"forbidden", fmt.Errorf("onboarding is closed: %w", model.ErrForbidden), http.StatusForbidden, "onboarding is closed"},
		{"inactive tenant", model.ErrInactiveTenant, http.StatusForbidden, "store is not active"},
		{"not found", model.ErrNotFound, http.StatusNotFound, "not found"},
		{"conflict suffix", fmt.Errorf("slug og-kush is already used: %w", model.ErrConflict), http.StatusConflict, "slug og-kush is already used"},
		{"conflict prefix", fmt.Errorf("%w: template is the platform default", model.ErrConflict), http.StatusConflict, "template is the platform default"},
		{"stock", fmt.Errorf("product 3: %w", model.ErrInsufficientStock), http.StatusConflict, "insufficient stock"},
		{"transition", model.ErrInvalidTransition, http.StatusConflict, "invalid status transition"},
		{"empty cart", model.ErrEmptyCart, http.StatusUnprocessableEntity, "cart is empty"},
		{"unavailable", fmt.Errorf("fetch template manifest: %w", model.ErrUnavailable), http.StatusServiceUnavailable, "service temporarily unavailable"},
		{"internal", errors.New("pq: connection reset"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEcho()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			require.NoError(t, respondError(c, tt.err))
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.message, decode(t, rec)["error"])
		})
	}
}

func TestRespondError_ValidationField(t *testing.T) {
	e := newEcho()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	wrapped := fmt.Errorf("create product: %w", model.NewValidationError("price_cents", "must not be negative"))
	require.NoError(t, respondError(c, wrapped))
	assert.Equal(t, "price_cents", decode(t, rec)["field"])
}

func TestExportWindow(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	window := func(query string) (time.Time, time.Time, error) {
		e := newEcho()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/export?"+query, nil), httptest.NewRecorder())
		return exportWindow(c, now)
	}

	from, to, err := window("")
	require.NoError(t, err)
	assert.Equal(t, now, to)
	assert.Equal(t, now.AddDate(0, 0, -30), from)

	from, to, err = window("from=2026-03-01&to=2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), to)

	_, _, err = window("from=2026-03-10T00:00:00Z&to=2026-03-09T00:00:00Z")
	assert.ErrorIs(t, err, model.ErrValidation)

	_, _, err = window("from=yesterday")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestHealthCheck(t *testing.T) {
	e := newEcho()
	up := NewHealthHandler("budstack", func(context.Context) error { return nil })
	down := NewHealthHandler("budstack", func(context.Context) error { return errors.New("refused") })
	e.GET("/up", up.HealthCheck)
	e.GET("/down", down.HealthCheck)

	rec := perform(e, call{method: http.MethodGet, path: "/up"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"status": "healthy", "service": "budstack", "database": "up"}, decode(t, rec))

	rec = perform(e, call{method: http.MethodGet, path: "/down"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "down", decode(t, rec)["database"])
}
