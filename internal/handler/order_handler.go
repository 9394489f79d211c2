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

// Checkouts turns carts into orders and finds them again
type Checkouts interface {
	Checkout(ctx context.Context, tenant *model.Tenant, sessionID string, userID *uint, input service.CheckoutInput) (*model.Order, error)
	Lookup(ctx context.Context, tenantID uint, number, email string) (*model.Order, error)
	ForCustomer(ctx context.Context, tenantID, userID uint, page, pageSize int) (*model.Page[model.Order], error)
}

// OrderHandler serves the shopper side of orders
type OrderHandler struct {
	orders Checkouts
}

func NewOrderHandler(orders Checkouts) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// Checkout places an order from the session's cart. A signed-in customer of this store is
// attached to the order.
func (h *OrderHandler) Checkout(c echo.Context) error {
	log := logger.FromEcho(c)

	var req service.CheckoutInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}

	tenant := storefrontTenant(c)
	var userID *uint
	if claims, ok := pkgmiddleware.ClaimsFromContext(c); ok && claims.TenantID != nil && *claims.TenantID == tenant.ID {
		id := claims.UserID
		userID = &id
	}

	order, err := h.orders.Checkout(c.Request().Context(), tenant, middleware.SessionFromContext(c), userID, req)
	if err != nil {
		log.Warn("Checkout failed", zap.Uint("tenant_id", tenant.ID), zap.Error(err))
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, order)
}

// Lookup lets a guest find an order by number and email
func (h *OrderHandler) Lookup(c echo.Context) error {
	order, err := h.orders.Lookup(c.Request().Context(), storefrontTenant(c).ID, c.Param("number"), c.QueryParam("email"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

// AccountOrders lists the orders the authenticated customer placed in this store
func (h *OrderHandler) AccountOrders(c echo.Context) error {
	claims, ok := pkgmiddleware.ClaimsFromContext(c)
	if !ok || claims.TenantID == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	tenant := storefrontTenant(c)
	if *claims.TenantID != tenant.ID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account belongs to another store"})
	}

	page, pageSize := pagination(c)
	orders, err := h.orders.ForCustomer(c.Request().Context(), tenant.ID, claims.UserID, page, pageSize)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, orders)
}
