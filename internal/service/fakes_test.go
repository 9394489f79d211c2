package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"budstack-service/internal/model"
)

type fakeTenants struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]model.Tenant
	users  *fakeUsers
	gets   int
}

func newFakeTenants(users *fakeUsers) *fakeTenants {
	return &fakeTenants{rows: map[uint]model.Tenant{}, users: users}
}

func (f *fakeTenants) put(t model.Tenant) *model.Tenant {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == 0 {
		f.nextID++
		t.ID = f.nextID
	} else if t.ID > f.nextID {
		f.nextID = t.ID
	}
	f.rows[t.ID] = t
	return &t
}

func (f *fakeTenants) CreateWithAdmin(ctx context.Context, tenant *model.Tenant, admin *model.User) error {
	if taken, _ := f.SubdomainTaken(ctx, tenant.Subdomain); taken {
		return model.ErrConflict
	}
	stored := f.put(*tenant)
	tenant.ID = stored.ID
	admin.TenantID = &tenant.ID
	if f.users != nil {
		if err := f.users.Create(ctx, admin); err != nil {
			return err
		}
	}
	tenant.OwnerID = &admin.ID
	f.put(*tenant)
	return nil
}

func (f *fakeTenants) GetByID(_ context.Context, id uint) (*model.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	t, ok := f.rows[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &t, nil
}

func (f *fakeTenants) find(match func(model.Tenant) bool) (*model.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	for _, t := range f.rows {
		if match(t) {
			return &t, nil
		}
	}
	return nil, model.ErrNotFound
}

func (f *fakeTenants) GetBySubdomain(_ context.Context, subdomain string) (*model.Tenant, error) {
	return f.find(func(t model.Tenant) bool { return t.Subdomain == subdomain })
}

func (f *fakeTenants) GetByCustomDomain(_ context.Context, domain string) (*model.Tenant, error) {
	return f.find(func(t model.Tenant) bool { return t.CustomDomain != nil && *t.CustomDomain == domain })
}

func (f *fakeTenants) SubdomainTaken(ctx context.Context, subdomain string) (bool, error) {
	_, err := f.GetBySubdomain(ctx, subdomain)
	return err == nil, nil
}

func (f *fakeTenants) sorted() []model.Tenant {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Tenant, 0, len(f.rows))
	for _, t := range f.rows {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeTenants) List(_ context.Context, filter model.TenantFilter) (*model.Page[model.Tenant], error) {
	page := &model.Page[model.Tenant]{Page: 1, PageSize: 20, Items: []model.Tenant{}}
	for _, t := range f.sorted() {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Active != nil && t.IsActive != *filter.Active {
			continue
		}
		page.Items = append(page.Items, t)
	}
	page.Total = int64(len(page.Items))
	return page, nil
}

func (f *fakeTenants) ListAll(_ context.Context, from, to time.Time) ([]model.Tenant, error) {
	var out []model.Tenant
	for _, t := range f.sorted() {
		if !from.IsZero() && t.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !t.CreatedAt.Before(to) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeTenants) Save(_ context.Context, tenant *model.Tenant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tenant.CustomDomain != nil {
		for id, t := range f.rows {
			if id != tenant.ID && t.CustomDomain != nil && *t.CustomDomain == *tenant.CustomDomain {
				return model.ErrConflict
			}
		}
	}
	f.rows[tenant.ID] = *tenant
	return nil
}

func (f *fakeTenants) CountByStatus(_ context.Context) (map[model.TenantStatus]int64, int64, error) {
	counts := map[model.TenantStatus]int64{}
	var active int64
	for _, t := range f.sorted() {
		counts[t.Status]++
		if t.IsLive() {
			active++
		}
	}
	return counts, active, nil
}

func (f *fakeTenants) CountUsingTemplate(ctx context.Context, templateID uint) (int64, error) {
	ids, err := f.IDsUsingTemplate(ctx, templateID)
	return int64(len(ids)), err
}

func (f *fakeTenants) IDsUsingTemplate(_ context.Context, templateID uint) ([]uint, error) {
	var ids []uint
	for _, t := range f.sorted() {
		if (templateID == 0 && t.TemplateID == nil) || (t.TemplateID != nil && *t.TemplateID == templateID) {
			ids = append(ids, t.ID)
		}
	}
	return ids, nil
}

type fakeUsers struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]model.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{rows: map[uint]model.User{}}
}

func sameTenant(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (f *fakeUsers) Create(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user.Email = strings.ToLower(user.Email)
	for _, u := range f.rows {
		if u.Email == user.Email && sameTenant(u.TenantID, user.TenantID) {
			return model.ErrConflict
		}
	}
	f.nextID++
	user.ID = f.nextID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	f.rows[user.ID] = *user
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uint) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.rows[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &u, nil
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string, tenantID *uint) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.rows {
		if u.Email == strings.ToLower(email) && sameTenant(u.TenantID, tenantID) {
			return &u, nil
		}
	}
	return nil, model.ErrNotFound
}

func (f *fakeUsers) ListByRole(_ context.Context, tenantID uint, role string, page, pageSize int) (*model.Page[model.User], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &model.Page[model.User]{Page: page, PageSize: pageSize, Items: []model.User{}}
	for _, u := range f.rows {
		if u.Role == role && u.TenantID != nil && *u.TenantID == tenantID {
			out.Items = append(out.Items, u)
		}
	}
	out.Total = int64(len(out.Items))
	return out, nil
}

func (f *fakeUsers) CountCreatedSince(_ context.Context, tenantID uint, role string, since time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, u := range f.rows {
		if u.Role == role && u.TenantID != nil && *u.TenantID == tenantID && !u.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

type fakeProducts struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]model.Product
}

func newFakeProducts() *fakeProducts {
	return &fakeProducts{rows: map[uint]model.Product{}}
}

func (f *fakeProducts) add(p model.Product) model.Product {
	_ = f.Create(context.Background(), &p)
	return p
}

func (f *fakeProducts) Create(_ context.Context, product *model.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	product.ID = f.nextID
	f.rows[product.ID] = *product
	return nil
}

func (f *fakeProducts) Save(_ context.Context, product *model.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[product.ID] = *product
	return nil
}

func (f *fakeProducts) Delete(_ context.Context, tenantID, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok || p.TenantID != tenantID {
		return model.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeProducts) GetByID(_ context.Context, tenantID, id uint) (*model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok || p.TenantID != tenantID {
		return nil, model.ErrNotFound
	}
	return &p, nil
}

func (f *fakeProducts) GetBySlug(_ context.Context, tenantID uint, slug string) (*model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.rows {
		if p.TenantID == tenantID && p.Slug == slug {
			return &p, nil
		}
	}
	return nil, model.ErrNotFound
}

func (f *fakeProducts) SlugTaken(ctx context.Context, tenantID uint, slug string, excludeID uint) (bool, error) {
	p, err := f.GetBySlug(ctx, tenantID, slug)
	return err == nil && p.ID != excludeID, nil
}

func (f *fakeProducts) List(_ context.Context, tenantID uint, filter model.ProductFilter) (*model.Page[model.Product], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &model.Page[model.Product]{Page: 1, PageSize: 20, Items: []model.Product{}}
	for _, p := range f.rows {
		if p.TenantID != tenantID || (filter.ActiveOnly && !p.IsActive) {
			continue
		}
		out.Items = append(out.Items, p)
	}
	sort.Slice(out.Items, func(i, j int) bool { return out.Items[i].ID < out.Items[j].ID })
	out.Total = int64(len(out.Items))
	return out, nil
}

func (f *fakeProducts) Categories(_ context.Context, tenantID uint) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, p := range f.rows {
		if p.TenantID == tenantID && p.Category != "" && !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

type fakeCarts struct {
	mu         sync.Mutex
	nextID     uint
	nextItemID uint
	carts      map[uint]model.Cart
	items      map[uint]model.CartItem
}

func newFakeCarts() *fakeCarts {
	return &fakeCarts{carts: map[uint]model.Cart{}, items: map[uint]model.CartItem{}}
}

func (f *fakeCarts) FindActive(_ context.Context, tenantID uint, sessionID string) (*model.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.carts {
		if c.TenantID == tenantID && c.SessionID == sessionID && c.Status == model.CartStatusActive {
			c.Items = f.itemsOf(c.ID)
			return &c, nil
		}
	}
	return nil, model.ErrNotFound
}

func (f *fakeCarts) itemsOf(cartID uint) []model.CartItem {
	var out []model.CartItem
	for _, item := range f.items {
		if item.CartID == cartID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeCarts) Create(_ context.Context, cart *model.Cart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	cart.ID = f.nextID
	f.carts[cart.ID] = *cart
	return nil
}

func (f *fakeCarts) SaveItem(_ context.Context, item *model.CartItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item.ID == 0 {
		f.nextItemID++
		item.ID = f.nextItemID
	}
	f.items[item.ID] = *item
	return nil
}

func (f *fakeCarts) DeleteItem(_ context.Context, cartID, itemID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemID]
	if !ok || item.CartID != cartID {
		return model.ErrNotFound
	}
	delete(f.items, itemID)
	return nil
}

func (f *fakeCarts) ClearItems(_ context.Context, cartID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, item := range f.items {
		if item.CartID == cartID {
			delete(f.items, id)
		}
	}
	return nil
}

// fakeOrders runs checkouts against fakeCarts and fakeProducts without a database
type fakeOrders struct {
	mu         sync.Mutex
	nextID     uint
	rows       map[uint]model.Order
	carts      *fakeCarts
	products   *fakeProducts
	collisions int
}

func newFakeOrders(carts *fakeCarts, products *fakeProducts) *fakeOrders {
	return &fakeOrders{rows: map[uint]model.Order{}, carts: carts, products: products}
}

func (f *fakeOrders) Checkout(_ context.Context, tenantID, cartID uint,
	price func(items []model.CartItem, products map[uint]model.Product) (*model.Order, error)) (*model.Order, error) {
	f.carts.mu.Lock()
	items := f.carts.itemsOf(cartID)
	f.carts.mu.Unlock()
	if len(items) == 0 {
		return nil, model.ErrEmptyCart
	}

	products := map[uint]model.Product{}
	f.products.mu.Lock()
	for _, item := range items {
		if p, ok := f.products.rows[item.ProductID]; ok && p.TenantID == tenantID {
			products[p.ID] = p
		}
	}
	f.products.mu.Unlock()

	order, err := price(items, products)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.collisions > 0 {
		f.collisions--
		return nil, fmt.Errorf("%w: %w", model.ErrConflict, model.ErrDuplicateKey)
	}

	f.products.mu.Lock()
	for _, item := range order.Items {
		p := f.products.rows[item.ProductID]
		p.Stock -= item.Quantity
		f.products.rows[p.ID] = p
	}
	f.products.mu.Unlock()

	f.carts.mu.Lock()
	cart := f.carts.carts[cartID]
	cart.Status = model.CartStatusConverted
	f.carts.carts[cartID] = cart
	f.carts.mu.Unlock()

	f.nextID++
	order.ID = f.nextID
	f.rows[order.ID] = *order
	return order, nil
}

func (f *fakeOrders) GetByID(_ context.Context, tenantID, id uint) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.rows[id]
	if !ok || o.TenantID != tenantID {
		return nil, model.ErrNotFound
	}
	return &o, nil
}

func (f *fakeOrders) GetByNumber(_ context.Context, tenantID uint, number string) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.rows {
		if o.TenantID == tenantID && o.OrderNumber == strings.ToUpper(number) {
			return &o, nil
		}
	}
	return nil, model.ErrNotFound
}

func (f *fakeOrders) List(_ context.Context, tenantID uint, filter model.OrderFilter) (*model.Page[model.Order], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &model.Page[model.Order]{Page: 1, PageSize: 20, Items: []model.Order{}}
	for _, o := range f.rows {
		if o.TenantID != tenantID {
			continue
		}
		if filter.UserID != nil && (o.UserID == nil || *o.UserID != *filter.UserID) {
			continue
		}
		out.Items = append(out.Items, o)
	}
	out.Total = int64(len(out.Items))
	return out, nil
}

func (f *fakeOrders) ListBetween(_ context.Context, tenantID uint, from, to time.Time) ([]model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Order
	for _, o := range f.rows {
		if o.TenantID == tenantID && !o.CreatedAt.Before(from) && o.CreatedAt.Before(to) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, tenantID, id uint, to model.OrderStatus) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.rows[id]
	if !ok || o.TenantID != tenantID {
		return nil, model.ErrNotFound
	}
	if !model.CanTransition(o.Status, to) {
		return nil, model.ErrInvalidTransition
	}
	o.Status = to
	f.rows[id] = o
	return &o, nil
}

func (f *fakeOrders) PlatformTotals(_ context.Context, from, to time.Time) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count, revenue int64
	for _, o := range f.rows {
		if o.Status != model.OrderStatusCancelled && !o.CreatedAt.Before(from) && o.CreatedAt.Before(to) {
			count++
			revenue += o.TotalCents
		}
	}
	return count, revenue, nil
}

func (f *fakeOrders) TopTenantsByRevenue(_ context.Context, _, _ time.Time, _ int) ([]model.TenantRevenue, error) {
	return []model.TenantRevenue{}, nil
}

type fakeTemplates struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]model.Template
}

func newFakeTemplates() *fakeTemplates {
	return &fakeTemplates{rows: map[uint]model.Template{}}
}

func (f *fakeTemplates) add(t model.Template) model.Template {
	_ = f.Create(context.Background(), &t)
	return t
}

func (f *fakeTemplates) List(_ context.Context, activeOnly bool) ([]model.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Template
	for _, t := range f.rows {
		if !activeOnly || t.IsActive {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTemplates) GetByID(_ context.Context, id uint) (*model.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &t, nil
}

func (f *fakeTemplates) GetBySlug(_ context.Context, slug string) (*model.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.rows {
		if t.Slug == slug {
			return &t, nil
		}
	}
	return nil, model.ErrNotFound
}

func (f *fakeTemplates) Create(_ context.Context, tpl *model.Template) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.rows {
		if t.Slug == tpl.Slug {
			return model.ErrConflict
		}
	}
	f.nextID++
	tpl.ID = f.nextID
	f.rows[tpl.ID] = *tpl
	return nil
}

func (f *fakeTemplates) Save(_ context.Context, tpl *model.Template) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[tpl.ID] = *tpl
	return nil
}

func (f *fakeTemplates) Upsert(ctx context.Context, tpl *model.Template) error {
	if existing, err := f.GetBySlug(ctx, tpl.Slug); err == nil {
		tpl.ID = existing.ID
		return f.Save(ctx, tpl)
	}
	return f.Create(ctx, tpl)
}

func (f *fakeTemplates) Delete(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return model.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

type fakeSettings struct {
	mu       sync.Mutex
	settings model.PlatformSettings
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{settings: model.DefaultPlatformSettings()}
}

func (f *fakeSettings) Get(_ context.Context) (*model.PlatformSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.settings
	return &s, nil
}

func (f *fakeSettings) Save(_ context.Context, settings *model.PlatformSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings = *settings
	return nil
}

type fakeTraces struct {
	mu     sync.Mutex
	nextID uint
	rows   []model.TraceEvent
}

func (f *fakeTraces) Append(_ context.Context, tenantID, productID uint,
	next func(last *model.TraceEvent) (*model.TraceEvent, error)) (*model.TraceEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var last *model.TraceEvent
	for i := range f.rows {
		if f.rows[i].ProductID == productID && f.rows[i].TenantID == tenantID {
			last = &f.rows[i]
		}
	}
	event, err := next(last)
	if err != nil {
		return nil, err
	}
	f.nextID++
	event.ID = f.nextID
	f.rows = append(f.rows, *event)
	return event, nil
}

func (f *fakeTraces) ListByProduct(_ context.Context, tenantID, productID uint) ([]model.TraceEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.TraceEvent{}
	for _, e := range f.rows {
		if e.ProductID == productID && e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out, nil
}
