package handler

import (
	"context"
	"net/http"

	"budstack-service/internal/model"
	"budstack-service/internal/service"
	"budstack-service/pkg/export"
	"budstack-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Platform administers tenants and platform settings
type Platform interface {
	ListTenants(ctx context.Context, filter model.TenantFilter) (*model.Page[model.Tenant], error)
	GetTenant(ctx context.Context, id uint) (*model.Tenant, error)
	SetTenantStatus(ctx context.Context, id uint, status string) (*model.Tenant, error)
	ToggleActive(ctx context.Context, id uint) (*model.Tenant, error)
	ExportTenants(ctx context.Context, format string) ([]byte, error)
	Settings(ctx context.Context) (*model.PlatformSettings, error)
	UpdateSettings(ctx context.Context, input service.SettingsInput) (*model.PlatformSettings, error)
}

// TemplateCatalog is the super admin's template management
type TemplateCatalog interface {
	List(ctx context.Context, activeOnly bool) ([]model.Template, error)
	Get(ctx context.Context, id uint) (*model.Template, error)
	Create(ctx context.Context, input service.TemplateInput) (*model.Template, error)
	Update(ctx context.Context, id uint, update service.TemplateUpdate) (*model.Template, error)
	Delete(ctx context.Context, id uint) error
	Import(ctx context.Context, req service.ImportRequest) (*model.Template, error)
}

// PlatformReporter aggregates across all stores
type PlatformReporter interface {
	Platform(ctx context.Context, days int) (*service.PlatformAnalytics, error)
}

// SuperAdminHandler serves /api/super-admin
type SuperAdminHandler struct {
	platform  Platform
	templates TemplateCatalog
	analytics PlatformReporter
}

func NewSuperAdminHandler(platform Platform, templates TemplateCatalog, analytics PlatformReporter) *SuperAdminHandler {
	return &SuperAdminHandler{platform: platform, templates: templates, analytics: analytics}
}

// ListTenants supports ?status=, ?active= and ?q=
func (h *SuperAdminHandler) ListTenants(c echo.Context) error {
	active, err := queryBool(c, "active")
	if err != nil {
		return respondError(c, err)
	}
	filter := model.TenantFilter{
		Status: model.TenantStatus(c.QueryParam("status")),
		Active: active,
		Search: c.QueryParam("q"),
	}
	filter.Page, filter.PageSize = pagination(c)

	tenants, err := h.platform.ListTenants(c.Request().Context(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, tenants)
}

func (h *SuperAdminHandler) GetTenant(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	tenant, err := h.platform.GetTenant(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, tenant)
}

// SetTenantStatus approves or rejects an application
func (h *SuperAdminHandler) SetTenantStatus(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}

	tenant, err := h.platform.SetTenantStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, tenant)
}

func (h *SuperAdminHandler) ToggleActive(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	tenant, err := h.platform.ToggleActive(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":        tenant.ID,
		"is_active": tenant.IsActive,
		"tenant":    tenant,
	})
}

func (h *SuperAdminHandler) ExportTenants(c echo.Context) error {
	format := c.QueryParam("format")
	if format == "" {
		format = export.FormatCSV
	}
	body, err := h.platform.ExportTenants(c.Request().Context(), format)
	if err != nil {
		return respondError(c, err)
	}
	return attachment(c, body, format, "tenants")
}

func (h *SuperAdminHandler) Settings(c echo.Context) error {
	settings, err := h.platform.Settings(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, settings)
}

func (h *SuperAdminHandler) UpdateSettings(c echo.Context) error {
	var req service.SettingsInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}
	settings, err := h.platform.UpdateSettings(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, settings)
}

func (h *SuperAdminHandler) Analytics(c echo.Context) error {
	days, err := queryDays(c)
	if err != nil {
		return respondError(c, err)
	}
	report, err := h.analytics.Platform(c.Request().Context(), days)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// ListTemplates returns every template; ?active=true limits to active ones
func (h *SuperAdminHandler) ListTemplates(c echo.Context) error {
	active, err := queryBool(c, "active")
	if err != nil {
		return respondError(c, err)
	}
	templates, err := h.templates.List(c.Request().Context(), active != nil && *active)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": templates})
}

func (h *SuperAdminHandler) GetTemplate(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	tpl, err := h.templates.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, tpl)
}

func (h *SuperAdminHandler) CreateTemplate(c echo.Context) error {
	var req service.TemplateInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}
	tpl, err := h.templates.Create(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, tpl)
}

func (h *SuperAdminHandler) UpdateTemplate(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req service.TemplateUpdate
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}
	tpl, err := h.templates.Update(c.Request().Context(), id, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, tpl)
}

func (h *SuperAdminHandler) DeleteTemplate(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.templates.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ImportTemplate pulls a template manifest from GitHub
func (h *SuperAdminHandler) ImportTemplate(c echo.Context) error {
	log := logger.FromEcho(c)

	var req service.ImportRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}
	tpl, err := h.templates.Import(c.Request().Context(), req)
	if err != nil {
		log.Warn("Template import failed", zap.String("repo", req.Repo), zap.Error(err))
		return respondError(c, err)
	}
	log.Info("Template imported", zap.String("slug", tpl.Slug), zap.String("repo", req.Repo))
	return c.JSON(http.StatusOK, tpl)
}
