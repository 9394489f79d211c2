package repository

import (
	"context"

	"budstack-service/internal/model"
	"budstack-service/prometheus"

	"gorm.io/gorm"
)

type CartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) *CartRepository {
	return &CartRepository{db: db}
}

// FindActive loads the active cart of a session with items and their products
func (r *CartRepository) FindActive(ctx context.Context, tenantID uint, sessionID string) (*model.Cart, error) {
	defer prometheus.TrackDBOperation("cart_get")()

	var cart model.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("cart_items.id") }).
		Preload("Items.Product").
		Where("tenant_id = ? AND session_id = ? AND status = ?", tenantID, sessionID, model.CartStatusActive).
		First(&cart).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &cart, nil
}

func (r *CartRepository) Create(ctx context.Context, cart *model.Cart) error {
	defer prometheus.TrackDBOperation("cart_create")()

	return translateError(r.db.WithContext(ctx).Create(cart).Error)
}

// SaveItem inserts or updates a cart line
func (r *CartRepository) SaveItem(ctx context.Context, item *model.CartItem) error {
	defer prometheus.TrackDBOperation("cart_item_save")()

	return translateError(r.db.WithContext(ctx).Omit("Product").Save(item).Error)
}

func (r *CartRepository) DeleteItem(ctx context.Context, cartID, itemID uint) error {
	defer prometheus.TrackDBOperation("cart_item_delete")()

	result := r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&model.CartItem{}, itemID)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *CartRepository) ClearItems(ctx context.Context, cartID uint) error {
	defer prometheus.TrackDBOperation("cart_clear")()

	return translateError(r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&model.CartItem{}).Error)
}
