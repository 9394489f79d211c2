package service

import (
	"context"
	"errors"
	"fmt"

	"budstack-service/internal/model"
	"budstack-service/prometheus"

	"go.uber.org/zap"
)

type CartService struct {
	carts    CartStore
	products ProductStore
	logger   *zap.Logger
}

func NewCartService(carts CartStore, products ProductStore, logger *zap.Logger) *CartService {
	return &CartService{carts: carts, products: products, logger: logger}
}

// Get returns the session's active cart, or an empty one
func (s *CartService) Get(ctx context.Context, tenantID uint, sessionID string) (*model.CartView, error) {
	cart, err := s.carts.FindActive(ctx, tenantID, sessionID)
	if err != nil {
		if isNotFound(err) {
			view := (&model.Cart{SessionID: sessionID}).View()
			return &view, nil
		}
		return nil, err
	}
	view := cart.View()
	return &view, nil
}

// AddItem adds quantity of a product, merging with an existing line
func (s *CartService) AddItem(ctx context.Context, tenantID uint, sessionID string, productID uint, quantity int) (*model.CartView, error) {
	if err := validateQuantity(quantity, 1); err != nil {
		return nil, err
	}
	product, err := s.availableProduct(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}

	cart, err := s.activeCart(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}

	item := &model.CartItem{CartID: cart.ID, ProductID: product.ID}
	for i := range cart.Items {
		if cart.Items[i].ProductID == product.ID {
			item = &cart.Items[i]
			break
		}
	}
	merged := item.Quantity + quantity
	if merged > model.MaxItemQuantity {
		return nil, model.NewValidationError("quantity", fmt.Sprintf("cannot exceed %d per product", model.MaxItemQuantity))
	}
	if merged > product.Stock {
		return nil, fmt.Errorf("only %d of %s left: %w", product.Stock, product.Name, model.ErrInsufficientStock)
	}

	item.Quantity = merged
	item.UnitPriceCents = product.PriceCents
	if err := s.carts.SaveItem(ctx, item); err != nil {
		return nil, fmt.Errorf("save cart item: %w", err)
	}
	prometheus.RecordCartOperation("add")
	return s.Get(ctx, tenantID, sessionID)
}

// UpdateItem sets the quantity of a line; zero removes it
func (s *CartService) UpdateItem(ctx context.Context, tenantID uint, sessionID string, itemID uint, quantity int) (*model.CartView, error) {
	if err := validateQuantity(quantity, 0); err != nil {
		return nil, err
	}
	cart, item, err := s.findItem(ctx, tenantID, sessionID, itemID)
	if err != nil {
		return nil, err
	}
	if quantity == 0 {
		return s.removeItem(ctx, tenantID, sessionID, cart.ID, item.ID)
	}

	product, err := s.availableProduct(ctx, tenantID, item.ProductID)
	if err != nil {
		return nil, err
	}
	if quantity > product.Stock {
		return nil, fmt.Errorf("only %d of %s left: %w", product.Stock, product.Name, model.ErrInsufficientStock)
	}

	item.Quantity = quantity
	item.UnitPriceCents = product.PriceCents
	if err := s.carts.SaveItem(ctx, item); err != nil {
		return nil, fmt.Errorf("save cart item: %w", err)
	}
	prometheus.RecordCartOperation("update")
	return s.Get(ctx, tenantID, sessionID)
}

func (s *CartService) RemoveItem(ctx context.Context, tenantID uint, sessionID string, itemID uint) (*model.CartView, error) {
	cart, item, err := s.findItem(ctx, tenantID, sessionID, itemID)
	if err != nil {
		return nil, err
	}
	return s.removeItem(ctx, tenantID, sessionID, cart.ID, item.ID)
}

func (s *CartService) Clear(ctx context.Context, tenantID uint, sessionID string) (*model.CartView, error) {
	cart, err := s.carts.FindActive(ctx, tenantID, sessionID)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	if cart != nil {
		if err := s.carts.ClearItems(ctx, cart.ID); err != nil {
			return nil, fmt.Errorf("clear cart: %w", err)
		}
		prometheus.RecordCartOperation("clear")
	}
	return s.Get(ctx, tenantID, sessionID)
}

func (s *CartService) removeItem(ctx context.Context, tenantID uint, sessionID string, cartID, itemID uint) (*model.CartView, error) {
	if err := s.carts.DeleteItem(ctx, cartID, itemID); err != nil {
		return nil, err
	}
	prometheus.RecordCartOperation("remove")
	return s.Get(ctx, tenantID, sessionID)
}

// findItem looks the line up inside the session's own cart only
func (s *CartService) findItem(ctx context.Context, tenantID uint, sessionID string, itemID uint) (*model.Cart, *model.CartItem, error) {
	cart, err := s.carts.FindActive(ctx, tenantID, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("cart item %d: %w", itemID, err)
	}
	for i := range cart.Items {
		if cart.Items[i].ID == itemID {
			return cart, &cart.Items[i], nil
		}
	}
	return nil, nil, fmt.Errorf("cart item %d: %w", itemID, model.ErrNotFound)
}

// activeCart returns the session's active cart, creating it on first use
func (s *CartService) activeCart(ctx context.Context, tenantID uint, sessionID string) (*model.Cart, error) {
	cart, err := s.carts.FindActive(ctx, tenantID, sessionID)
	if err == nil {
		return cart, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	cart = &model.Cart{TenantID: tenantID, SessionID: sessionID, Status: model.CartStatusActive}
	if err := s.carts.Create(ctx, cart); err != nil {
		// a concurrent request created it first
		if errors.Is(err, model.ErrConflict) {
			return s.carts.FindActive(ctx, tenantID, sessionID)
		}
		return nil, fmt.Errorf("create cart: %w", err)
	}
	return cart, nil
}

func (s *CartService) availableProduct(ctx context.Context, tenantID, productID uint) (*model.Product, error) {
	product, err := s.products.GetByID(ctx, tenantID, productID)
	if err != nil {
		return nil, fmt.Errorf("product %d: %w", productID, err)
	}
	if !product.IsActive {
		return nil, fmt.Errorf("product %d is not available: %w", productID, model.ErrNotFound)
	}
	return product, nil
}

func validateQuantity(quantity, min int) error {
	if quantity < min || quantity > model.MaxItemQuantity {
		return model.NewValidationError("quantity", fmt.Sprintf("must be between %d and %d", min, model.MaxItemQuantity))
	}
	return nil
}
