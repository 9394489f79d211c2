package service

import (
	"context"
	"testing"

	"budstack-service/internal/model"
	"budstack-service/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newResolverFixture(t *testing.T) (*TenantResolver, *fakeTenants, *cache.MemoryKV) {
	t.Helper()
	tenants := newFakeTenants(nil)
	domain := "shop.greenleaf.example"
	tenants.put(model.Tenant{ID: 1, Subdomain: "greenleaf", BusinessName: "Green Leaf", CustomDomain: &domain,
		Status: model.TenantStatusApproved, IsActive: true})
	tenants.put(model.Tenant{ID: 2, Subdomain: "pending", BusinessName: "Pending", Status: model.TenantStatusPending})
	kv := cache.NewMemoryKV()
	return NewTenantResolver(tenants, kv, 0, "BudStack.io", zap.NewNop()), tenants, kv
}

func TestTenantResolver_Hosts(t *testing.T) {
	resolver, _, _ := newResolverFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		host     string
		fallback string
		wantID   uint
		wantErr  error
	}{
		{"subdomain", "greenleaf.budstack.io", "", 1, nil},
		{"subdomain with port and case", "GreenLeaf.BudStack.io:443", "", 1, nil},
		{"custom domain", "shop.greenleaf.example", "", 1, nil},
		{"localhost uses header", "localhost:8080", "pending", 2, nil},
		{"ip uses header", "127.0.0.1", "greenleaf", 1, nil},
		{"base domain uses header", "budstack.io", "greenleaf", 1, nil},
		{"reserved subdomain uses header", "www.budstack.io", "greenleaf", 1, nil},
		{"nested subdomain is a platform host", "a.b.budstack.io", "", 0, model.ErrNotFound},
		{"platform host without header", "budstack.io", "", 0, model.ErrNotFound},
		{"unknown subdomain", "nobody.budstack.io", "", 0, model.ErrNotFound},
		{"unknown custom domain", "shop.other.example", "", 0, model.ErrNotFound},
		{"header ignored on tenant host", "pending.budstack.io", "greenleaf", 2, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tenant, err := resolver.Resolve(ctx, tt.host, tt.fallback)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, tenant.ID)
		})
	}
}

func TestTenantResolver_CachesAndInvalidates(t *testing.T) {
	resolver, tenants, _ := newResolverFixture(t)
	ctx := context.Background()

	first, err := resolver.Resolve(ctx, "greenleaf.budstack.io", "")
	require.NoError(t, err)
	lookups := tenants.gets

	second, err := resolver.Resolve(ctx, "greenleaf.budstack.io", "")
	require.NoError(t, err)
	assert.Equal(t, lookups, tenants.gets, "second resolve should be served from cache")
	assert.Equal(t, first.BusinessName, second.BusinessName)

	renamed, _ := tenants.GetByID(ctx, 1)
	renamed.BusinessName = "Green Leaf Co"
	require.NoError(t, tenants.Save(ctx, renamed))

	stale, err := resolver.Resolve(ctx, "greenleaf.budstack.io", "")
	require.NoError(t, err)
	assert.Equal(t, "Green Leaf", stale.BusinessName)

	resolver.Invalidate(ctx, renamed)
	fresh, err := resolver.Resolve(ctx, "greenleaf.budstack.io", "")
	require.NoError(t, err)
	assert.Equal(t, "Green Leaf Co", fresh.BusinessName)
}

func TestTenantResolver_InvalidateDroppedDomain(t *testing.T) {
	resolver, tenants, kv := newResolverFixture(t)
	ctx := context.Background()

	_, err := resolver.Resolve(ctx, "shop.greenleaf.example", "")
	require.NoError(t, err)
	_, err = kv.Get(ctx, "tenant:host:shop.greenleaf.example")
	require.NoError(t, err)

	tenant, _ := tenants.GetByID(ctx, 1)
	tenant.CustomDomain = nil
	require.NoError(t, tenants.Save(ctx, tenant))
	resolver.Invalidate(ctx, tenant, "shop.greenleaf.example")

	_, err = kv.Get(ctx, "tenant:host:shop.greenleaf.example")
	assert.ErrorIs(t, err, cache.ErrMiss)
	_, err = resolver.Resolve(ctx, "shop.greenleaf.example", "")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestTenantResolver_CorruptCacheEntry(t *testing.T) {
	resolver, _, kv := newResolverFixture(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "tenant:host:greenleaf.budstack.io", "{not json", 0))
	tenant, err := resolver.Resolve(ctx, "greenleaf.budstack.io", "")
	require.NoError(t, err)
	assert.Equal(t, uint(1), tenant.ID)
}

func TestNormalizeHost(t *testing.T) {
	assert.Equal(t, "shop.example.com", normalizeHost(" Shop.Example.COM:8443 "))
	assert.Equal(t, "shop.example.com", normalizeHost("shop.example.com."))
	assert.Equal(t, "::1", normalizeHost("[::1]:8080"))
	assert.Equal(t, "", normalizeHost(""))
}
