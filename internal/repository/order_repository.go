package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"budstack-service/internal/model"
	"budstack-service/prometheus"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Checkout converts the active cart into an order in a single transaction. The products of
// the cart are locked FOR UPDATE while price builds the order from the cart lines, then stock
// is decremented, the order inserted, and the cart marked converted. An error from price
// rolls everything back.
func (r *OrderRepository) Checkout(ctx context.Context, tenantID, cartID uint,
	price func(items []model.CartItem, products map[uint]model.Product) (*model.Order, error)) (*model.Order, error) {
	defer prometheus.TrackDBOperation("order_checkout")()

	var order *model.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var items []model.CartItem
		if err := tx.Where("cart_id = ?", cartID).Order("id").Find(&items).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return model.ErrEmptyCart
		}

		ids := make([]uint, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.ProductID)
		}
		var locked []model.Product
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tenant_id = ? AND id IN ?", tenantID, ids).
			Order("id").Find(&locked).Error; err != nil {
			return err
		}
		products := make(map[uint]model.Product, len(locked))
		for _, p := range locked {
			products[p.ID] = p
		}

		built, err := price(items, products)
		if err != nil {
			return err
		}

		for _, line := range built.Items {
			result := tx.Model(&model.Product{}).
				Where("id = ? AND stock >= ?", line.ProductID, line.Quantity).
				UpdateColumn("stock", gorm.Expr("stock - ?", line.Quantity))
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("%w: %s", model.ErrInsufficientStock, line.ProductName)
			}
		}

		if err := tx.Create(built).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Cart{}).Where("id = ?", cartID).
			Update("status", model.CartStatusConverted).Error; err != nil {
			return err
		}
		order = built
		return nil
	})
	if err != nil {
		return nil, translateError(err)
	}
	return order, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, tenantID, id uint) (*model.Order, error) {
	defer prometheus.TrackDBOperation("order_get")()

	var order model.Order
	if err := r.db.WithContext(ctx).Preload("Items").
		Where("tenant_id = ?", tenantID).First(&order, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &order, nil
}

func (r *OrderRepository) GetByNumber(ctx context.Context, tenantID uint, number string) (*model.Order, error) {
	defer prometheus.TrackDBOperation("order_get")()

	var order model.Order
	if err := r.db.WithContext(ctx).Preload("Items").
		Where("tenant_id = ? AND order_number = ?", tenantID, strings.ToUpper(number)).
		First(&order).Error; err != nil {
		return nil, translateError(err)
	}
	return &order, nil
}

func (r *OrderRepository) List(ctx context.Context, tenantID uint, filter model.OrderFilter) (*model.Page[model.Order], error) {
	defer prometheus.TrackDBOperation("order_list")()

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	query := r.db.WithContext(ctx).Model(&model.Order{}).Where("tenant_id = ?", tenantID)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at < ?", *filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, translateError(err)
	}
	orders := []model.Order{}
	if err := query.Preload("Items").Order("created_at DESC").
		Scopes(paginate(page, pageSize)).Find(&orders).Error; err != nil {
		return nil, translateError(err)
	}
	return &model.Page[model.Order]{Items: orders, Page: page, PageSize: pageSize, Total: total}, nil
}

// ListBetween returns every order of the tenant created in [from, to) with items, oldest first
func (r *OrderRepository) ListBetween(ctx context.Context, tenantID uint, from, to time.Time) ([]model.Order, error) {
	defer prometheus.TrackDBOperation("order_list")()

	var orders []model.Order
	err := r.db.WithContext(ctx).Preload("Items").
		Where("tenant_id = ? AND created_at >= ? AND created_at < ?", tenantID, from, to).
		Order("created_at").Find(&orders).Error
	return orders, translateError(err)
}

// UpdateStatus moves an order along the status machine, validated against the locked row.
// Cancelling returns the ordered quantities to stock in the same transaction.
func (r *OrderRepository) UpdateStatus(ctx context.Context, tenantID, id uint, to model.OrderStatus) (*model.Order, error) {
	defer prometheus.TrackDBOperation("order_update_status")()

	var order model.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tenant_id = ?", tenantID).First(&order, id).Error; err != nil {
			return err
		}
		if !model.CanTransition(order.Status, to) {
			return fmt.Errorf("%w: %s to %s", model.ErrInvalidTransition, order.Status, to)
		}
		if err := tx.Where("order_id = ?", order.ID).Order("id").Find(&order.Items).Error; err != nil {
			return err
		}

		if to == model.OrderStatusCancelled {
			for _, item := range order.Items {
				if err := tx.Unscoped().Model(&model.Product{}).Where("id = ?", item.ProductID).
					UpdateColumn("stock", gorm.Expr("stock + ?", item.Quantity)).Error; err != nil {
					return err
				}
			}
		}

		order.Status = to
		return tx.Model(&order).Update("status", to).Error
	})
	if err != nil {
		return nil, translateError(err)
	}
	return &order, nil
}

// PlatformTotals returns order count and revenue of non-cancelled orders in [from, to)
func (r *OrderRepository) PlatformTotals(ctx context.Context, from, to time.Time) (int64, int64, error) {
	defer prometheus.TrackDBOperation("order_aggregate")()

	var row struct {
		OrderCount   int64
		RevenueCents int64
	}
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Select("COUNT(*) AS order_count, COALESCE(SUM(total_cents), 0) AS revenue_cents").
		Where("status <> ? AND created_at >= ? AND created_at < ?", model.OrderStatusCancelled, from, to).
		Scan(&row).Error
	return row.OrderCount, row.RevenueCents, translateError(err)
}

// TopTenantsByRevenue ranks tenants that are not deleted by non-cancelled revenue in [from, to)
func (r *OrderRepository) TopTenantsByRevenue(ctx context.Context, from, to time.Time, limit int) ([]model.TenantRevenue, error) {
	defer prometheus.TrackDBOperation("order_aggregate")()

	rows := []model.TenantRevenue{}
	err := r.db.WithContext(ctx).Table("orders").
		Select("orders.tenant_id, tenants.business_name, COUNT(*) AS order_count, SUM(orders.total_cents) AS revenue_cents").
		Joins("JOIN tenants ON tenants.id = orders.tenant_id").
		Where("orders.status <> ? AND orders.created_at >= ? AND orders.created_at < ?", model.OrderStatusCancelled, from, to).
		Where("tenants.deleted_at IS NULL").
		Group("orders.tenant_id, tenants.business_name").
		Order("revenue_cents DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, translateError(err)
}
