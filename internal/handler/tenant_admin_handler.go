package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"budstack-service/internal/clock"
	"budstack-service/internal/model"
	"budstack-service/internal/service"
	"budstack-service/pkg/export"
	"budstack-service/pkg/logger"
	pkgmiddleware "budstack-service/pkg/middleware"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const defaultExportWindow = 30 * 24 * time.Hour

// ProductAdmin is the tenant admin's product CRUD
type ProductAdmin interface {
	List(ctx context.Context, tenantID uint, filter model.ProductFilter) (*model.Page[model.Product], error)
	Get(ctx context.Context, tenantID, id uint) (*model.Product, error)
	Create(ctx context.Context, tenantID uint, input service.ProductInput) (*model.Product, error)
	Update(ctx context.Context, tenantID, id uint, input service.ProductInput) (*model.Product, error)
	Delete(ctx context.Context, tenantID, id uint) error
}

// OrderAdmin manages a store's orders
type OrderAdmin interface {
	List(ctx context.Context, tenantID uint, filter model.OrderFilter) (*model.Page[model.Order], error)
	Get(ctx context.Context, tenantID, id uint) (*model.Order, error)
	UpdateStatus(ctx context.Context, tenantID, id uint, status string) (*model.Order, error)
	Export(ctx context.Context, tenantID uint, from, to time.Time, format string) ([]byte, error)
}

// StoreAdmin manages a store's settings, customers and template
type StoreAdmin interface {
	Get(ctx context.Context, tenantID uint) (*model.Tenant, error)
	Update(ctx context.Context, tenantID uint, input service.StoreSettingsInput) (*model.Tenant, error)
	Customers(ctx context.Context, tenantID uint, page, pageSize int) (*model.Page[model.User], error)
	Template(ctx context.Context, tenantID uint) (*model.ResolvedTemplate, error)
	SetTemplate(ctx context.Context, tenantID uint, selection service.TemplateSelection) (*model.ResolvedTemplate, error)
}

// TenantReporter aggregates one store's orders
type TenantReporter interface {
	Tenant(ctx context.Context, tenantID uint, days int) (*service.TenantAnalytics, error)
}

// TenantAdminHandler serves /api/tenant-admin. Every route acts on the tenant of the caller's token.
type TenantAdminHandler struct {
	products  ProductAdmin
	orders    OrderAdmin
	store     StoreAdmin
	traces    Tracer
	analytics TenantReporter
	clock     clock.Clock
}

func NewTenantAdminHandler(products ProductAdmin, orders OrderAdmin, store StoreAdmin, traces Tracer,
	analytics TenantReporter, clk clock.Clock) *TenantAdminHandler {
	return &TenantAdminHandler{
		products:  products,
		orders:    orders,
		store:     store,
		traces:    traces,
		analytics: analytics,
		clock:     clk,
	}
}

// adminTenantID is guaranteed by middleware.RequireTenant
func adminTenantID(c echo.Context) uint {
	claims, _ := pkgmiddleware.ClaimsFromContext(c)
	return *claims.TenantID
}

func (h *TenantAdminHandler) ListProducts(c echo.Context) error {
	active, err := queryBool(c, "active")
	if err != nil {
		return respondError(c, err)
	}
	page, pageSize := pagination(c)

	filter := model.ProductFilter{
		Category:   c.QueryParam("category"),
		StrainType: c.QueryParam("strain_type"),
		Query:      c.QueryParam("q"),
		ActiveOnly: active != nil && *active,
		Page:       page,
		PageSize:   pageSize,
	}
	products, err := h.products.List(c.Request().Context(), adminTenantID(c), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, products)
}

func (h *TenantAdminHandler) GetProduct(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	product, err := h.products.Get(c.Request().Context(), adminTenantID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, product)
}

func (h *TenantAdminHandler) CreateProduct(c echo.Context) error {
	var req service.ProductInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}

	product, err := h.products.Create(c.Request().Context(), adminTenantID(c), req)
	if err != nil {
		return respondError(c, err)
	}
	logger.FromEcho(c).Info("Product created",
		zap.Uint("tenant_id", product.TenantID),
		zap.Uint("product_id", product.ID),
		zap.String("slug", product.Slug))
	return c.JSON(http.StatusCreated, product)
}

func (h *TenantAdminHandler) UpdateProduct(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req service.ProductInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}

	product, err := h.products.Update(c.Request().Context(), adminTenantID(c), id, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, product)
}

func (h *TenantAdminHandler) DeleteProduct(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.products.Delete(c.Request().Context(), adminTenantID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListOrders supports ?status= and pagination
func (h *TenantAdminHandler) ListOrders(c echo.Context) error {
	var filter model.OrderFilter
	if raw := c.QueryParam("status"); raw != "" {
		status, ok := model.ParseOrderStatus(raw)
		if !ok {
			return respondError(c, model.NewValidationError("status", "unknown order status"))
		}
		filter.Status = status
	}
	filter.Page, filter.PageSize = pagination(c)

	orders, err := h.orders.List(c.Request().Context(), adminTenantID(c), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *TenantAdminHandler) GetOrder(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	order, err := h.orders.Get(c.Request().Context(), adminTenantID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *TenantAdminHandler) UpdateOrderStatus(c echo.Context) error {
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

	order, err := h.orders.UpdateStatus(c.Request().Context(), adminTenantID(c), id, req.Status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

// ExportOrders downloads orders created in [from, to). Plain dates are whole days; the default
// window is the last 30 days.
func (h *TenantAdminHandler) ExportOrders(c echo.Context) error {
	from, to, err := exportWindow(c, h.clock.Now())
	if err != nil {
		return respondError(c, err)
	}
	format := c.QueryParam("format")
	if format == "" {
		format = export.FormatCSV
	}

	body, err := h.orders.Export(c.Request().Context(), adminTenantID(c), from, to, format)
	if err != nil {
		return respondError(c, err)
	}
	return attachment(c, body, format, fmt.Sprintf("orders-%s", from.Format("20060102")))
}

func exportWindow(c echo.Context, now time.Time) (time.Time, time.Time, error) {
	to := now
	if t, err := queryTime(c, "to"); err != nil {
		return time.Time{}, time.Time{}, err
	} else if t != nil {
		to = *t
		if len(c.QueryParam("to")) == len("2006-01-02") {
			to = to.Add(24 * time.Hour)
		}
	}

	from := to.Add(-defaultExportWindow)
	if t, err := queryTime(c, "from"); err != nil {
		return time.Time{}, time.Time{}, err
	} else if t != nil {
		from = *t
	}

	if !from.Before(to) {
		return time.Time{}, time.Time{}, model.NewValidationError("from", "must be before to")
	}
	return from, to, nil
}

func attachment(c echo.Context, body []byte, format, name string) error {
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", name+"."+format))
	return c.Blob(http.StatusOK, export.ContentType(format), body)
}

func (h *TenantAdminHandler) Customers(c echo.Context) error {
	page, pageSize := pagination(c)
	customers, err := h.store.Customers(c.Request().Context(), adminTenantID(c), page, pageSize)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, customers)
}

func (h *TenantAdminHandler) GetStore(c echo.Context) error {
	tenant, err := h.store.Get(c.Request().Context(), adminTenantID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, tenant)
}

func (h *TenantAdminHandler) UpdateStore(c echo.Context) error {
	var req service.StoreSettingsInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}

	tenant, err := h.store.Update(c.Request().Context(), adminTenantID(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, tenant)
}

func (h *TenantAdminHandler) GetTemplate(c echo.Context) error {
	resolved, err := h.store.Template(c.Request().Context(), adminTenantID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, resolved)
}

// SetTemplate switches the store's template and theme overrides
func (h *TenantAdminHandler) SetTemplate(c echo.Context) error {
	var req service.TemplateSelection
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}

	resolved, err := h.store.SetTemplate(c.Request().Context(), adminTenantID(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, resolved)
}

func (h *TenantAdminHandler) ProductTrace(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	trace, err := h.traces.Trace(c.Request().Context(), adminTenantID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, trace)
}

// AppendTrace records the next supply chain step of a product
func (h *TenantAdminHandler) AppendTrace(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req service.TraceInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}

	event, err := h.traces.Append(c.Request().Context(), adminTenantID(c), id, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, event)
}

func (h *TenantAdminHandler) VerifyTrace(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	verification, err := h.traces.Verify(c.Request().Context(), adminTenantID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, verification)
}

// Analytics handles GET /api/tenant-admin/analytics?days=
func (h *TenantAdminHandler) Analytics(c echo.Context) error {
	days, err := queryDays(c)
	if err != nil {
		return respondError(c, err)
	}
	report, err := h.analytics.Tenant(c.Request().Context(), adminTenantID(c), days)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}
