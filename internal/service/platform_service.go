package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"budstack-service/internal/model"
	"budstack-service/pkg/export"
	"budstack-service/prometheus"

	"go.uber.org/zap"
)

// SettingsInput patches the platform settings; a zero default template clears it
type SettingsInput struct {
	PlatformName      *string `json:"platform_name"`
	SupportEmail      *string `json:"support_email"`
	DefaultTemplateID *uint   `json:"default_template_id"`
	RequireNFT        *bool   `json:"require_nft"`
	AllowOnboarding   *bool   `json:"allow_onboarding"`
	MaintenanceMode   *bool   `json:"maintenance_mode"`
	DefaultTaxRateBps *int    `json:"default_tax_rate_bps"`
}

// DefaultInvalidator forgets resolutions that depend on the platform default template
type DefaultInvalidator interface {
	InvalidateDefault(ctx context.Context)
}

// PlatformService backs the super admin dashboard
type PlatformService struct {
	tenants   TenantStore
	templates TemplateStore
	settings  SettingsStore
	cache     TenantCache
	defaults  DefaultInvalidator
	logger    *zap.Logger
}

func NewPlatformService(tenants TenantStore, templates TemplateStore, settings SettingsStore,
	cache TenantCache, defaults DefaultInvalidator, logger *zap.Logger) *PlatformService {
	return &PlatformService{
		tenants:   tenants,
		templates: templates,
		settings:  settings,
		cache:     cache,
		defaults:  defaults,
		logger:    logger,
	}
}

func (s *PlatformService) ListTenants(ctx context.Context, filter model.TenantFilter) (*model.Page[model.Tenant], error) {
	return s.tenants.List(ctx, filter)
}

func (s *PlatformService) GetTenant(ctx context.Context, id uint) (*model.Tenant, error) {
	return s.tenants.GetByID(ctx, id)
}

// SetTenantStatus approves or rejects an application. Approval puts the store live, rejection
// takes it offline.
func (s *PlatformService) SetTenantStatus(ctx context.Context, id uint, status string) (*model.Tenant, error) {
	next := model.TenantStatus(strings.ToLower(strings.TrimSpace(status)))
	if next != model.TenantStatusApproved && next != model.TenantStatusRejected {
		return nil, model.NewValidationError("status", "must be approved or rejected")
	}

	tenant, err := s.tenants.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := tenant.Status
	tenant.Status = next
	tenant.IsActive = next == model.TenantStatusApproved
	if err := s.tenants.Save(ctx, tenant); err != nil {
		return nil, fmt.Errorf("update tenant %d status: %w", id, err)
	}
	s.cache.Invalidate(ctx, tenant)

	s.logger.Info("Tenant status changed",
		zap.Uint("tenant_id", id),
		zap.String("from", string(previous)),
		zap.String("to", string(next)))
	return tenant, nil
}

// ToggleActive flips a store between live and paused. Only approved stores may go live.
func (s *PlatformService) ToggleActive(ctx context.Context, id uint) (*model.Tenant, error) {
	tenant, err := s.tenants.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !tenant.IsActive && tenant.Status != model.TenantStatusApproved {
		return nil, fmt.Errorf("tenant %d is %s: %w", id, tenant.Status, model.ErrConflict)
	}
	tenant.IsActive = !tenant.IsActive
	if err := s.tenants.Save(ctx, tenant); err != nil {
		return nil, fmt.Errorf("toggle tenant %d: %w", id, err)
	}
	s.cache.Invalidate(ctx, tenant)

	s.logger.Info("Tenant activation toggled", zap.Uint("tenant_id", id), zap.Bool("is_active", tenant.IsActive))
	return tenant, nil
}

// ExportTenants renders every tenant as csv or xlsx
func (s *PlatformService) ExportTenants(ctx context.Context, format string) ([]byte, error) {
	if format != export.FormatCSV && format != export.FormatXLSX {
		return nil, model.NewValidationError("format", "must be csv or xlsx")
	}
	tenants, err := s.tenants.ListAll(ctx, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	return export.Render(TenantsTable(tenants), format)
}

// TenantsTable lays tenants out for export
func TenantsTable(tenants []model.Tenant) export.Table {
	table := export.Table{
		Sheet:  "Tenants",
		Header: []string{"ID", "Business Name", "Subdomain", "Status", "Active", "Contact Email", "License Number", "Created"},
		Rows:   make([][]any, 0, len(tenants)),
	}
	for _, t := range tenants {
		table.Rows = append(table.Rows, []any{
			t.ID,
			t.BusinessName,
			t.Subdomain,
			string(t.Status),
			t.IsActive,
			t.ContactEmail,
			t.LicenseNumber,
			t.CreatedAt,
		})
	}
	return table
}

func (s *PlatformService) Settings(ctx context.Context) (*model.PlatformSettings, error) {
	return s.settings.Get(ctx)
}

func (s *PlatformService) UpdateSettings(ctx context.Context, input SettingsInput) (*model.PlatformSettings, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	defaultChanged := false

	if input.PlatformName != nil {
		if err := requireLength("platform_name", *input.PlatformName, 1, 100); err != nil {
			return nil, err
		}
		settings.PlatformName = strings.TrimSpace(*input.PlatformName)
	}
	if input.SupportEmail != nil {
		email := strings.ToLower(strings.TrimSpace(*input.SupportEmail))
		if email != "" {
			if err := requireEmail("support_email", email); err != nil {
				return nil, err
			}
		}
		settings.SupportEmail = email
	}
	if input.DefaultTemplateID != nil {
		if *input.DefaultTemplateID == 0 {
			settings.DefaultTemplateID = nil
		} else {
			tpl, err := s.templates.GetByID(ctx, *input.DefaultTemplateID)
			if err != nil || !tpl.IsActive {
				return nil, model.NewValidationError("default_template_id", "is not an available template")
			}
			settings.DefaultTemplateID = &tpl.ID
		}
		defaultChanged = true
	}
	if input.RequireNFT != nil {
		settings.RequireNFT = *input.RequireNFT
	}
	if input.AllowOnboarding != nil {
		settings.AllowOnboarding = *input.AllowOnboarding
	}
	if input.MaintenanceMode != nil {
		settings.MaintenanceMode = *input.MaintenanceMode
	}
	if input.DefaultTaxRateBps != nil {
		if *input.DefaultTaxRateBps < 0 || *input.DefaultTaxRateBps > 10000 {
			return nil, model.NewValidationError("default_tax_rate_bps", "must be between 0 and 10000")
		}
		settings.DefaultTaxRateBps = *input.DefaultTaxRateBps
	}

	if err := s.settings.Save(ctx, settings); err != nil {
		return nil, fmt.Errorf("update platform settings: %w", err)
	}
	if defaultChanged {
		s.defaults.InvalidateDefault(ctx)
	}
	s.logger.Info("Platform settings updated",
		zap.Bool("allow_onboarding", settings.AllowOnboarding),
		zap.Bool("require_nft", settings.RequireNFT),
		zap.Bool("maintenance_mode", settings.MaintenanceMode))
	return settings, nil
}

// RefreshActiveTenants updates the active tenants gauge
func (s *PlatformService) RefreshActiveTenants(ctx context.Context) error {
	_, active, err := s.tenants.CountByStatus(ctx)
	if err != nil {
		return err
	}
	prometheus.UpdateActiveTenants(active)
	return nil
}
