package handler

import (
	"context"
	"net/http"

	"budstack-service/internal/middleware"
	"budstack-service/internal/model"
	"budstack-service/internal/service"

	"github.com/labstack/echo/v4"
)

// Catalog serves the storefront's products
type Catalog interface {
	Storefront(ctx context.Context, tenantID uint, filter model.ProductFilter) (*model.Page[model.Product], error)
	StorefrontProduct(ctx context.Context, tenantID uint, slug string) (*model.Product, error)
	Categories(ctx context.Context, tenantID uint) ([]string, error)
}

// TemplateResolver resolves the storefront template of a tenant
type TemplateResolver interface {
	Resolve(ctx context.Context, tenant *model.Tenant) (*model.ResolvedTemplate, error)
}

// Tracer reads and extends product supply chains
type Tracer interface {
	Append(ctx context.Context, tenantID, productID uint, input service.TraceInput) (*model.TraceEvent, error)
	Trace(ctx context.Context, tenantID, productID uint) (*service.ProductTrace, error)
	Verify(ctx context.Context, tenantID, productID uint) (*model.TraceVerification, error)
}

// StoreHandler serves the public storefront of the resolved tenant
type StoreHandler struct {
	catalog   Catalog
	templates TemplateResolver
	traces    Tracer
}

func NewStoreHandler(catalog Catalog, templates TemplateResolver, traces Tracer) *StoreHandler {
	return &StoreHandler{catalog: catalog, templates: templates, traces: traces}
}

// storefrontTenant is set by middleware.StorefrontTenant on every route of this handler
func storefrontTenant(c echo.Context) *model.Tenant {
	tenant, _ := middleware.TenantFromContext(c)
	return tenant
}

// Store returns the store's public details and its resolved template
func (h *StoreHandler) Store(c echo.Context) error {
	tenant := storefrontTenant(c)

	resolved, err := h.templates.Resolve(c.Request().Context(), tenant)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"store":    tenant.Public(),
		"template": resolved,
		"pricing": echo.Map{
			"tax_rate_bps":             tenant.TaxRateBps,
			"shipping_fee_cents":       tenant.ShippingFeeCents,
			"free_shipping_over_cents": tenant.FreeShippingOverCents,
		},
	})
}

// Products lists the store's active products
func (h *StoreHandler) Products(c echo.Context) error {
	featured, err := queryBool(c, "featured")
	if err != nil {
		return respondError(c, err)
	}
	page, pageSize := pagination(c)

	filter := model.ProductFilter{
		Category:   c.QueryParam("category"),
		StrainType: c.QueryParam("strain_type"),
		Query:      c.QueryParam("q"),
		Featured:   featured,
		Page:       page,
		PageSize:   pageSize,
	}
	products, err := h.catalog.Storefront(c.Request().Context(), storefrontTenant(c).ID, filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, products)
}

func (h *StoreHandler) Product(c echo.Context) error {
	product, err := h.catalog.StorefrontProduct(c.Request().Context(), storefrontTenant(c).ID, c.Param("slug"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, product)
}

func (h *StoreHandler) Categories(c echo.Context) error {
	categories, err := h.catalog.Categories(c.Request().Context(), storefrontTenant(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": categories})
}

// ProductTrace shows shoppers the supply chain of a product together with its verification
func (h *StoreHandler) ProductTrace(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := storefrontTenant(c).ID

	product, err := h.catalog.StorefrontProduct(ctx, tenantID, c.Param("slug"))
	if err != nil {
		return respondError(c, err)
	}
	trace, err := h.traces.Trace(ctx, tenantID, product.ID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"product_id": product.ID,
		"events":     trace.Events,
		"verified":   trace.Verification.Verified,
		"broken_at":  trace.Verification.BrokenAt,
	})
}
