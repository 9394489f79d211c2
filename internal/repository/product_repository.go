package repository

import (
	"context"
	"strings"

	"budstack-service/internal/model"
	"budstack-service/prometheus"

	"gorm.io/gorm"
)

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Create(ctx context.Context, product *model.Product) error {
	defer prometheus.TrackDBOperation("product_create")()

	return translateError(r.db.WithContext(ctx).Create(product).Error)
}

func (r *ProductRepository) Save(ctx context.Context, product *model.Product) error {
	defer prometheus.TrackDBOperation("product_update")()

	return translateError(r.db.WithContext(ctx).Save(product).Error)
}

// Delete soft deletes a product of the tenant
func (r *ProductRepository) Delete(ctx context.Context, tenantID, id uint) error {
	defer prometheus.TrackDBOperation("product_delete")()

	result := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Delete(&model.Product{}, id)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *ProductRepository) GetByID(ctx context.Context, tenantID, id uint) (*model.Product, error) {
	defer prometheus.TrackDBOperation("product_get")()

	var product model.Product
	if err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&product, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &product, nil
}

func (r *ProductRepository) GetBySlug(ctx context.Context, tenantID uint, slug string) (*model.Product, error) {
	defer prometheus.TrackDBOperation("product_get")()

	var product model.Product
	if err := r.db.WithContext(ctx).Where("tenant_id = ? AND slug = ?", tenantID, slug).First(&product).Error; err != nil {
		return nil, translateError(err)
	}
	return &product, nil
}

// SlugTaken reports whether another product of the tenant uses slug
func (r *ProductRepository) SlugTaken(ctx context.Context, tenantID uint, slug string, excludeID uint) (bool, error) {
	defer prometheus.TrackDBOperation("product_query")()

	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&model.Product{}).
		Where("tenant_id = ? AND slug = ? AND id <> ?", tenantID, slug, excludeID).
		Count(&count).Error
	return count > 0, translateError(err)
}

func (r *ProductRepository) List(ctx context.Context, tenantID uint, filter model.ProductFilter) (*model.Page[model.Product], error) {
	defer prometheus.TrackDBOperation("product_list")()

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	query := r.db.WithContext(ctx).Model(&model.Product{}).Where("tenant_id = ?", tenantID)
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.StrainType != "" {
		query = query.Where("strain_type = ?", filter.StrainType)
	}
	if filter.Featured != nil {
		query = query.Where("featured = ?", *filter.Featured)
	}
	if filter.Query != "" {
		like := "%" + strings.ToLower(filter.Query) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, translateError(err)
	}

	products := []model.Product{}
	if err := query.Order("featured DESC, name ASC").Scopes(paginate(page, pageSize)).Find(&products).Error; err != nil {
		return nil, translateError(err)
	}
	return &model.Page[model.Product]{Items: products, Page: page, PageSize: pageSize, Total: total}, nil
}

// Categories lists the distinct categories of the tenant's active products
func (r *ProductRepository) Categories(ctx context.Context, tenantID uint) ([]string, error) {
	defer prometheus.TrackDBOperation("product_query")()

	categories := []string{}
	err := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("tenant_id = ? AND is_active = ? AND category <> ''", tenantID, true).
		Distinct().Order("category").Pluck("category", &categories).Error
	return categories, translateError(err)
}
