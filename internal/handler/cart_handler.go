package handler

import (
	"context"
	"net/http"

	"budstack-service/internal/middleware"
	"budstack-service/internal/model"

	"github.com/labstack/echo/v4"
)

// Carts manages the shopper's cart of a store
type Carts interface {
	Get(ctx context.Context, tenantID uint, sessionID string) (*model.CartView, error)
	AddItem(ctx context.Context, tenantID uint, sessionID string, productID uint, quantity int) (*model.CartView, error)
	UpdateItem(ctx context.Context, tenantID uint, sessionID string, itemID uint, quantity int) (*model.CartView, error)
	RemoveItem(ctx context.Context, tenantID uint, sessionID string, itemID uint) (*model.CartView, error)
	Clear(ctx context.Context, tenantID uint, sessionID string) (*model.CartView, error)
}

type CartHandler struct {
	carts Carts
}

func NewCartHandler(carts Carts) *CartHandler {
	return &CartHandler{carts: carts}
}

func (h *CartHandler) Get(c echo.Context) error {
	cart, err := h.carts.Get(c.Request().Context(), storefrontTenant(c).ID, middleware.SessionFromContext(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, cart)
}

// AddItem handles POST /api/cart/items
func (h *CartHandler) AddItem(c echo.Context) error {
	var req struct {
		ProductID uint `json:"product_id"`
		Quantity  int  `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}
	if req.ProductID == 0 {
		return respondError(c, model.NewValidationError("product_id", "is required"))
	}

	cart, err := h.carts.AddItem(c.Request().Context(), storefrontTenant(c).ID, middleware.SessionFromContext(c), req.ProductID, req.Quantity)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, cart)
}

// UpdateItem sets a line's quantity; zero removes it
func (h *CartHandler) UpdateItem(c echo.Context) error {
	itemID, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req struct {
		Quantity *int `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}
	if req.Quantity == nil {
		return respondError(c, model.NewValidationError("quantity", "is required"))
	}

	cart, err := h.carts.UpdateItem(c.Request().Context(), storefrontTenant(c).ID, middleware.SessionFromContext(c), itemID, *req.Quantity)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, cart)
}

func (h *CartHandler) RemoveItem(c echo.Context) error {
	itemID, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	cart, err := h.carts.RemoveItem(c.Request().Context(), storefrontTenant(c).ID, middleware.SessionFromContext(c), itemID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, cart)
}

func (h *CartHandler) Clear(c echo.Context) error {
	cart, err := h.carts.Clear(c.Request().Context(), storefrontTenant(c).ID, middleware.SessionFromContext(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, cart)
}
