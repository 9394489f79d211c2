package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Counter metrics
var (
	// OrdersPlacedCounter counts completed checkouts per tenant
	OrdersPlacedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "budstack_orders_placed_total",
			Help: "Total number of orders placed",
		},
		[]string{"tenant_id"},
	)

	// OrderRevenueCounter sums order totals in cents per tenant
	OrderRevenueCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "budstack_order_revenue_cents_total",
			Help: "Total order revenue in cents",
		},
		[]string{"tenant_id"},
	)

	// CartOperationCounter counts cart mutations
	CartOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "budstack_cart_operations_total",
			Help: "Total number of cart operations",
		},
		[]string{"operation"}, // add, update, remove, clear
	)

	// OnboardingCounter counts onboarding submissions by outcome
	OnboardingCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "budstack_onboarding_submissions_total",
			Help: "Total number of onboarding applications",
		},
		[]string{"outcome"}, // accepted, rejected, error
	)

	// TenantResolutionCounter counts storefront tenant lookups by cache result
	TenantResolutionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "budstack_tenant_resolutions_total",
			Help: "Total number of storefront tenant resolutions",
		},
		[]string{"result"}, // hit, miss, not_found
	)

	// TemplateResolutionCounter counts resolved storefront templates by source
	TemplateResolutionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "budstack_template_resolutions_total",
			Help: "Total number of template resolutions",
		},
		[]string{"source"}, // tenant, platform_default, builtin, cache
	)

	// AuthErrorCounter counts authentication errors
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "budstack_auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"type"},
	)

	// OrderStatusCounter counts order status transitions
	OrderStatusCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "budstack_order_status_changes_total",
			Help: "Total number of order status transitions",
		},
		[]string{"status"},
	)
)

// Histogram metrics
var (
	// DBOperationDuration measures repository calls
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "budstack_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// ExternalCallDuration measures outbound API calls
	ExternalCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "budstack_external_call_duration_seconds",
			Help:    "Duration of calls to external APIs in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"target", "outcome"},
	)
)

// Gauge metrics
var (
	// ActiveTenantsGauge tracks the number of live storefronts
	ActiveTenantsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "budstack_active_tenants",
			Help: "Number of currently active tenants",
		},
	)

	// InfoGauge exposes the service version
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "budstack_info",
			Help: "Information about the platform service",
		},
		[]string{"version"},
	)
)

func init() {
	prometheus.MustRegister(OrdersPlacedCounter)
	prometheus.MustRegister(OrderRevenueCounter)
	prometheus.MustRegister(CartOperationCounter)
	prometheus.MustRegister(OnboardingCounter)
	prometheus.MustRegister(TenantResolutionCounter)
	prometheus.MustRegister(TemplateResolutionCounter)
	prometheus.MustRegister(AuthErrorCounter)
	prometheus.MustRegister(OrderStatusCounter)

	prometheus.MustRegister(DBOperationDuration)
	prometheus.MustRegister(ExternalCallDuration)

	prometheus.MustRegister(ActiveTenantsGauge)
	prometheus.MustRegister(InfoGauge)

	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// TrackDBOperation measures a database operation; use as defer TrackDBOperation("query")()
func TrackDBOperation(operation string) func() {
	start := time.Now()
	return func() {
		DBOperationDuration.With(prometheus.Labels{"operation": operation}).
			Observe(time.Since(start).Seconds())
	}
}

// TrackExternalCall records the duration and outcome of an outbound call
func TrackExternalCall(target string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ExternalCallDuration.With(prometheus.Labels{"target": target, "outcome": outcome}).
		Observe(time.Since(start).Seconds())
}

// RecordOrderPlaced records a checkout and its total
func RecordOrderPlaced(tenantID uint, totalCents int64) {
	label := strconv.FormatUint(uint64(tenantID), 10)
	OrdersPlacedCounter.With(prometheus.Labels{"tenant_id": label}).Inc()
	OrderRevenueCounter.With(prometheus.Labels{"tenant_id": label}).Add(float64(totalCents))
}

// RecordCartOperation records a cart mutation
func RecordCartOperation(operation string) {
	CartOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordOnboarding records an onboarding submission outcome
func RecordOnboarding(outcome string) {
	OnboardingCounter.With(prometheus.Labels{"outcome": outcome}).Inc()
}

// RecordTenantResolution records a storefront tenant lookup
func RecordTenantResolution(result string) {
	TenantResolutionCounter.With(prometheus.Labels{"result": result}).Inc()
}

// RecordTemplateResolution records where a resolved template came from
func RecordTemplateResolution(source string) {
	TemplateResolutionCounter.With(prometheus.Labels{"source": source}).Inc()
}

// RecordAuthError records an authentication error by type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordOrderStatus records an order moving into status
func RecordOrderStatus(status string) {
	OrderStatusCounter.With(prometheus.Labels{"status": status}).Inc()
}

// UpdateActiveTenants updates the active tenants gauge
func UpdateActiveTenants(count int64) {
	ActiveTenantsGauge.Set(float64(count))
}
