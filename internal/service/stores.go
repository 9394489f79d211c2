package service

import (
	"context"
	"time"

	"budstack-service/internal/model"
)

// TenantStore persists tenants
type TenantStore interface {
	CreateWithAdmin(ctx context.Context, tenant *model.Tenant, admin *model.User) error
	GetByID(ctx context.Context, id uint) (*model.Tenant, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*model.Tenant, error)
	GetByCustomDomain(ctx context.Context, domain string) (*model.Tenant, error)
	SubdomainTaken(ctx context.Context, subdomain string) (bool, error)
	List(ctx context.Context, filter model.TenantFilter) (*model.Page[model.Tenant], error)
	ListAll(ctx context.Context, from, to time.Time) ([]model.Tenant, error)
	Save(ctx context.Context, tenant *model.Tenant) error
	CountByStatus(ctx context.Context) (map[model.TenantStatus]int64, int64, error)
	CountUsingTemplate(ctx context.Context, templateID uint) (int64, error)
	IDsUsingTemplate(ctx context.Context, templateID uint) ([]uint, error)
}

// UserStore persists accounts
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uint) (*model.User, error)
	FindByEmail(ctx context.Context, email string, tenantID *uint) (*model.User, error)
	ListByRole(ctx context.Context, tenantID uint, role string, page, pageSize int) (*model.Page[model.User], error)
	CountCreatedSince(ctx context.Context, tenantID uint, role string, since time.Time) (int64, error)
}

// ProductStore persists catalogue items
type ProductStore interface {
	Create(ctx context.Context, product *model.Product) error
	Save(ctx context.Context, product *model.Product) error
	Delete(ctx context.Context, tenantID, id uint) error
	GetByID(ctx context.Context, tenantID, id uint) (*model.Product, error)
	GetBySlug(ctx context.Context, tenantID uint, slug string) (*model.Product, error)
	SlugTaken(ctx context.Context, tenantID uint, slug string, excludeID uint) (bool, error)
	List(ctx context.Context, tenantID uint, filter model.ProductFilter) (*model.Page[model.Product], error)
	Categories(ctx context.Context, tenantID uint) ([]string, error)
}

// CartStore persists session carts
type CartStore interface {
	FindActive(ctx context.Context, tenantID uint, sessionID string) (*model.Cart, error)
	Create(ctx context.Context, cart *model.Cart) error
	SaveItem(ctx context.Context, item *model.CartItem) error
	DeleteItem(ctx context.Context, cartID, itemID uint) error
	ClearItems(ctx context.Context, cartID uint) error
}

// OrderStore persists orders and runs the transactional order flows
type OrderStore interface {
	Checkout(ctx context.Context, tenantID, cartID uint,
		price func(items []model.CartItem, products map[uint]model.Product) (*model.Order, error)) (*model.Order, error)
	GetByID(ctx context.Context, tenantID, id uint) (*model.Order, error)
	GetByNumber(ctx context.Context, tenantID uint, number string) (*model.Order, error)
	List(ctx context.Context, tenantID uint, filter model.OrderFilter) (*model.Page[model.Order], error)
	ListBetween(ctx context.Context, tenantID uint, from, to time.Time) ([]model.Order, error)
	UpdateStatus(ctx context.Context, tenantID, id uint, to model.OrderStatus) (*model.Order, error)
	PlatformTotals(ctx context.Context, from, to time.Time) (int64, int64, error)
	TopTenantsByRevenue(ctx context.Context, from, to time.Time, limit int) ([]model.TenantRevenue, error)
}

// TemplateStore persists the template catalogue
type TemplateStore interface {
	List(ctx context.Context, activeOnly bool) ([]model.Template, error)
	GetByID(ctx context.Context, id uint) (*model.Template, error)
	GetBySlug(ctx context.Context, slug string) (*model.Template, error)
	Create(ctx context.Context, tpl *model.Template) error
	Save(ctx context.Context, tpl *model.Template) error
	Upsert(ctx context.Context, tpl *model.Template) error
	Delete(ctx context.Context, id uint) error
}

// SettingsStore persists the platform settings row
type SettingsStore interface {
	Get(ctx context.Context) (*model.PlatformSettings, error)
	Save(ctx context.Context, settings *model.PlatformSettings) error
}

// TraceStore persists traceability chains
type TraceStore interface {
	Append(ctx context.Context, tenantID, productID uint,
		next func(last *model.TraceEvent) (*model.TraceEvent, error)) (*model.TraceEvent, error)
	ListByProduct(ctx context.Context, tenantID, productID uint) ([]model.TraceEvent, error)
}
