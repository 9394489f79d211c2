package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"budstack-service/internal/model"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

var domainPattern = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]*[a-z0-9])?\.)+[a-z]{2,}$`)

// TenantCache forgets cached tenant lookups
type TenantCache interface {
	Invalidate(ctx context.Context, tenant *model.Tenant, extraDomains ...string)
}

// TemplateResolver resolves and forgets storefront templates
type TemplateResolver interface {
	Resolve(ctx context.Context, tenant *model.Tenant) (*model.ResolvedTemplate, error)
	Invalidate(ctx context.Context, tenantIDs ...uint)
}

// StoreSettingsInput patches a store's settings; nil fields are unchanged and an empty
// custom domain removes it
type StoreSettingsInput struct {
	BusinessName          *string `json:"business_name"`
	ContactEmail          *string `json:"contact_email"`
	ContactPhone          *string `json:"contact_phone"`
	CustomDomain          *string `json:"custom_domain"`
	TaxRateBps            *int    `json:"tax_rate_bps"`
	ShippingFeeCents      *int64  `json:"shipping_fee_cents"`
	FreeShippingOverCents *int64  `json:"free_shipping_over_cents"`
}

// TemplateSelection picks a template (0 falls back to the platform default) and theme overrides
type TemplateSelection struct {
	TemplateID *uint             `json:"template_id"`
	Overrides  map[string]string `json:"overrides"`
}

// StoreService backs the tenant admin's store settings, customers and template screens
type StoreService struct {
	tenants    TenantStore
	users      UserStore
	templates  TemplateStore
	resolver   TemplateResolver
	cache      TenantCache
	baseDomain string
	logger     *zap.Logger
}

func NewStoreService(tenants TenantStore, users UserStore, templates TemplateStore, resolver TemplateResolver,
	cache TenantCache, baseDomain string, logger *zap.Logger) *StoreService {
	return &StoreService{
		tenants:    tenants,
		users:      users,
		templates:  templates,
		resolver:   resolver,
		cache:      cache,
		baseDomain: strings.ToLower(baseDomain),
		logger:     logger,
	}
}

func (s *StoreService) Get(ctx context.Context, tenantID uint) (*model.Tenant, error) {
	return s.tenants.GetByID(ctx, tenantID)
}

func (s *StoreService) Update(ctx context.Context, tenantID uint, input StoreSettingsInput) (*model.Tenant, error) {
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	var previousDomain string
	if tenant.CustomDomain != nil {
		previousDomain = *tenant.CustomDomain
	}

	if input.BusinessName != nil {
		if err := requireLength("business_name", *input.BusinessName, 2, 100); err != nil {
			return nil, err
		}
		tenant.BusinessName = strings.TrimSpace(*input.BusinessName)
	}
	if input.ContactEmail != nil {
		email := strings.ToLower(strings.TrimSpace(*input.ContactEmail))
		if err := requireEmail("contact_email", email); err != nil {
			return nil, err
		}
		tenant.ContactEmail = email
	}
	if input.ContactPhone != nil {
		tenant.ContactPhone = strings.TrimSpace(*input.ContactPhone)
	}
	if input.CustomDomain != nil {
		domain, err := s.normalizeDomain(*input.CustomDomain)
		if err != nil {
			return nil, err
		}
		tenant.CustomDomain = domain
	}
	if input.TaxRateBps != nil {
		if *input.TaxRateBps < 0 || *input.TaxRateBps > 10000 {
			return nil, model.NewValidationError("tax_rate_bps", "must be between 0 and 10000")
		}
		tenant.TaxRateBps = *input.TaxRateBps
	}
	if input.ShippingFeeCents != nil {
		if *input.ShippingFeeCents < 0 {
			return nil, model.NewValidationError("shipping_fee_cents", "must not be negative")
		}
		tenant.ShippingFeeCents = *input.ShippingFeeCents
	}
	if input.FreeShippingOverCents != nil {
		if *input.FreeShippingOverCents < 0 {
			return nil, model.NewValidationError("free_shipping_over_cents", "must not be negative")
		}
		tenant.FreeShippingOverCents = *input.FreeShippingOverCents
	}

	if err := s.tenants.Save(ctx, tenant); err != nil {
		return nil, fmt.Errorf("update store %d: %w", tenantID, err)
	}
	s.cache.Invalidate(ctx, tenant, previousDomain)
	s.logger.Info("Store settings updated", zap.Uint("tenant_id", tenantID))
	return tenant, nil
}

func (s *StoreService) normalizeDomain(raw string) (*string, error) {
	domain := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(raw)), ".")
	if domain == "" {
		return nil, nil
	}
	if !domainPattern.MatchString(domain) || len(domain) > 253 {
		return nil, model.NewValidationError("custom_domain", "must be a valid domain name")
	}
	if domain == s.baseDomain || strings.HasSuffix(domain, "."+s.baseDomain) {
		return nil, model.NewValidationError("custom_domain", "must not be a platform domain")
	}
	return &domain, nil
}

func (s *StoreService) Customers(ctx context.Context, tenantID uint, page, pageSize int) (*model.Page[model.User], error) {
	return s.users.ListByRole(ctx, tenantID, model.RoleCustomer, page, pageSize)
}

// Template returns the store's resolved template
func (s *StoreService) Template(ctx context.Context, tenantID uint) (*model.ResolvedTemplate, error) {
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.resolver.Resolve(ctx, tenant)
}

// SetTemplate changes the store's template and overrides, returning the new resolution
func (s *StoreService) SetTemplate(ctx context.Context, tenantID uint, selection TemplateSelection) (*model.ResolvedTemplate, error) {
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if selection.TemplateID != nil {
		if *selection.TemplateID == 0 {
			tenant.TemplateID = nil
		} else {
			tpl, err := s.templates.GetByID(ctx, *selection.TemplateID)
			if err != nil || !tpl.IsActive {
				return nil, model.NewValidationError("template_id", "is not an available template")
			}
			tenant.TemplateID = &tpl.ID
		}
	}
	if selection.Overrides != nil {
		if err := ValidateOverrides(selection.Overrides); err != nil {
			return nil, err
		}
		overrides := make(map[string]string, len(selection.Overrides))
		for token, value := range selection.Overrides {
			if value != "" {
				overrides[token] = value
			}
		}
		tenant.TemplateOverrides = datatypes.NewJSONType(overrides)
	}

	if err := s.tenants.Save(ctx, tenant); err != nil {
		return nil, fmt.Errorf("update store template %d: %w", tenantID, err)
	}
	s.resolver.Invalidate(ctx, tenant.ID)
	s.cache.Invalidate(ctx, tenant)
	return s.resolver.Resolve(ctx, tenant)
}
