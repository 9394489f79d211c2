package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"budstack-service/internal/model"
	"budstack-service/pkg/cache"
	"budstack-service/prometheus"

	"go.uber.org/zap"
)

const tenantCachePrefix = "tenant:host:"

// TenantResolver maps storefront hosts to tenants through the cache
type TenantResolver struct {
	tenants    TenantStore
	cache      cache.KV
	ttl        time.Duration
	baseDomain string
	logger     *zap.Logger
}

func NewTenantResolver(tenants TenantStore, kv cache.KV, ttl time.Duration, baseDomain string, logger *zap.Logger) *TenantResolver {
	return &TenantResolver{
		tenants:    tenants,
		cache:      kv,
		ttl:        ttl,
		baseDomain: strings.ToLower(baseDomain),
		logger:     logger,
	}
}

// Resolve finds the tenant addressed by host. Platform hosts (the base domain, reserved
// subdomains, localhost and IPs) use fallbackSubdomain instead, typically taken from the
// X-Tenant-Subdomain header or the tenant query parameter. Liveness is not checked here.
func (r *TenantResolver) Resolve(ctx context.Context, host, fallbackSubdomain string) (*model.Tenant, error) {
	subdomain, customDomain := r.classify(normalizeHost(host))
	if subdomain == "" && customDomain == "" {
		subdomain = strings.ToLower(strings.TrimSpace(fallbackSubdomain))
	}
	if subdomain == "" && customDomain == "" {
		prometheus.RecordTenantResolution("not_found")
		return nil, fmt.Errorf("no store addressed by host %q: %w", host, model.ErrNotFound)
	}

	key := r.cacheKey(subdomain, customDomain)
	if tenant, ok := r.fromCache(ctx, key); ok {
		prometheus.RecordTenantResolution("hit")
		return tenant, nil
	}

	var (
		tenant *model.Tenant
		err    error
	)
	if subdomain != "" {
		tenant, err = r.tenants.GetBySubdomain(ctx, subdomain)
	} else {
		tenant, err = r.tenants.GetByCustomDomain(ctx, customDomain)
	}
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			prometheus.RecordTenantResolution("not_found")
		}
		return nil, err
	}

	prometheus.RecordTenantResolution("miss")
	r.store(ctx, key, tenant)
	return tenant, nil
}

// Invalidate drops every cached host of the tenant. extraDomains covers custom domains the
// tenant just gave up.
func (r *TenantResolver) Invalidate(ctx context.Context, tenant *model.Tenant, extraDomains ...string) {
	keys := []string{r.cacheKey(tenant.Subdomain, "")}
	if tenant.CustomDomain != nil && *tenant.CustomDomain != "" {
		keys = append(keys, r.cacheKey("", *tenant.CustomDomain))
	}
	for _, domain := range extraDomains {
		if domain != "" {
			keys = append(keys, r.cacheKey("", domain))
		}
	}
	if err := r.cache.Delete(ctx, keys...); err != nil {
		r.logger.Warn("Failed to invalidate tenant cache", zap.Uint("tenant_id", tenant.ID), zap.Error(err))
	}
}

// classify splits a normalized host into a tenant subdomain or a custom domain. Both are
// empty for platform hosts.
func (r *TenantResolver) classify(host string) (subdomain, customDomain string) {
	if host == "" || host == "localhost" || host == r.baseDomain || net.ParseIP(host) != nil {
		return "", ""
	}
	if label, ok := strings.CutSuffix(host, "."+r.baseDomain); ok {
		if strings.Contains(label, ".") || ReservedSubdomains[label] {
			return "", ""
		}
		return label, ""
	}
	return "", host
}

func (r *TenantResolver) cacheKey(subdomain, customDomain string) string {
	if subdomain != "" {
		return tenantCachePrefix + strings.ToLower(subdomain) + "." + r.baseDomain
	}
	return tenantCachePrefix + strings.ToLower(customDomain)
}

func (r *TenantResolver) fromCache(ctx context.Context, key string) (*model.Tenant, bool) {
	raw, err := r.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			r.logger.Warn("Tenant cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var tenant model.Tenant
	if err := json.Unmarshal([]byte(raw), &tenant); err != nil {
		r.logger.Warn("Discarding corrupt tenant cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &tenant, true
}

func (r *TenantResolver) store(ctx context.Context, key string, tenant *model.Tenant) {
	raw, err := json.Marshal(tenant)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, key, string(raw), r.ttl); err != nil {
		r.logger.Warn("Tenant cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// normalizeHost lowercases host and strips any port and trailing dot
func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	return strings.TrimSuffix(host, ".")
}
