package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"budstack-service/internal/model"

	"go.uber.org/zap"
)

// ProductInput creates or replaces a product
type ProductInput struct {
	Name        string  `json:"name"`
	Slug        string  `json:"slug"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	StrainType  string  `json:"strain_type"`
	THCPercent  float64 `json:"thc_percent"`
	CBDPercent  float64 `json:"cbd_percent"`
	PriceCents  int64   `json:"price_cents"`
	Stock       int     `json:"stock"`
	ImageURL    string  `json:"image_url"`
	Featured    bool    `json:"featured"`
	IsActive    *bool   `json:"is_active"`
}

// ProductService serves the storefront catalogue and the tenant admin product CRUD
type ProductService struct {
	products ProductStore
	logger   *zap.Logger
}

func NewProductService(products ProductStore, logger *zap.Logger) *ProductService {
	return &ProductService{products: products, logger: logger}
}

// Storefront lists active products of the tenant
func (s *ProductService) Storefront(ctx context.Context, tenantID uint, filter model.ProductFilter) (*model.Page[model.Product], error) {
	filter.ActiveOnly = true
	return s.products.List(ctx, tenantID, filter)
}

// StorefrontProduct returns an active product by slug
func (s *ProductService) StorefrontProduct(ctx context.Context, tenantID uint, slug string) (*model.Product, error) {
	product, err := s.products.GetBySlug(ctx, tenantID, strings.ToLower(slug))
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, model.ErrNotFound
	}
	return product, nil
}

func (s *ProductService) Categories(ctx context.Context, tenantID uint) ([]string, error) {
	return s.products.Categories(ctx, tenantID)
}

// List includes inactive products
func (s *ProductService) List(ctx context.Context, tenantID uint, filter model.ProductFilter) (*model.Page[model.Product], error) {
	filter.ActiveOnly = false
	return s.products.List(ctx, tenantID, filter)
}

func (s *ProductService) Get(ctx context.Context, tenantID, id uint) (*model.Product, error) {
	return s.products.GetByID(ctx, tenantID, id)
}

func (s *ProductService) Create(ctx context.Context, tenantID uint, input ProductInput) (*model.Product, error) {
	product := &model.Product{TenantID: tenantID, IsActive: true}
	if err := s.apply(ctx, product, input); err != nil {
		return nil, err
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product %s: %w", product.Slug, err)
	}
	s.logger.Info("Product created",
		zap.Uint("tenant_id", tenantID),
		zap.Uint("product_id", product.ID),
		zap.String("slug", product.Slug))
	return product, nil
}

func (s *ProductService) Update(ctx context.Context, tenantID, id uint, input ProductInput) (*model.Product, error) {
	product, err := s.products.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	oldPrice := product.PriceCents
	if err := s.apply(ctx, product, input); err != nil {
		return nil, err
	}
	if err := s.products.Save(ctx, product); err != nil {
		return nil, fmt.Errorf("update product %d: %w", id, err)
	}
	s.logger.Info("Product updated",
		zap.Uint("product_id", id),
		zap.Int64("old_price_cents", oldPrice),
		zap.Int64("new_price_cents", product.PriceCents))
	return product, nil
}

func (s *ProductService) Delete(ctx context.Context, tenantID, id uint) error {
	return s.products.Delete(ctx, tenantID, id)
}

func (s *ProductService) apply(ctx context.Context, product *model.Product, input ProductInput) error {
	input.Name = strings.TrimSpace(input.Name)
	input.StrainType = strings.ToLower(strings.TrimSpace(input.StrainType))
	slug := strings.ToLower(strings.TrimSpace(input.Slug))
	if slug == "" {
		slug = Slugify(input.Name)
	}

	if err := validateProduct(input, slug); err != nil {
		return err
	}

	taken, err := s.products.SlugTaken(ctx, product.TenantID, slug, product.ID)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("slug %s is already used: %w", slug, model.ErrConflict)
	}

	product.Name = input.Name
	product.Slug = slug
	product.Description = input.Description
	product.Category = strings.TrimSpace(input.Category)
	product.StrainType = input.StrainType
	product.THCPercent = input.THCPercent
	product.CBDPercent = input.CBDPercent
	product.PriceCents = input.PriceCents
	product.Stock = input.Stock
	product.ImageURL = input.ImageURL
	product.Featured = input.Featured
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}
	return nil
}

func validateProduct(input ProductInput, slug string) error {
	if err := requireLength("name", input.Name, 1, 255); err != nil {
		return err
	}
	if !slugPattern.MatchString(slug) {
		return model.NewValidationError("slug", "must be lowercase words joined by hyphens")
	}
	if input.PriceCents < 0 {
		return model.NewValidationError("price_cents", "must not be negative")
	}
	if input.Stock < 0 {
		return model.NewValidationError("stock", "must not be negative")
	}
	if input.THCPercent < 0 || input.THCPercent > 100 {
		return model.NewValidationError("thc_percent", "must be between 0 and 100")
	}
	if input.CBDPercent < 0 || input.CBDPercent > 100 {
		return model.NewValidationError("cbd_percent", "must be between 0 and 100")
	}
	if input.StrainType != "" && !knownStrain(input.StrainType) {
		return model.NewValidationError("strain_type", "must be one of "+strings.Join(model.StrainTypes, ", "))
	}
	return nil
}

func knownStrain(strain string) bool {
	for _, s := range model.StrainTypes {
		if s == strain {
			return true
		}
	}
	return false
}

// isNotFound is shorthand used across the services
func isNotFound(err error) bool {
	return errors.Is(err, model.ErrNotFound)
}
