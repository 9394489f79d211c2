package service

import (
	"context"
	"sort"
	"time"

	"budstack-service/internal/clock"
	"budstack-service/internal/model"
	"budstack-service/prometheus"
)

const (
	topProductsLimit = 5
	topTenantsLimit  = 10
	dayLayout        = "2006-01-02"
)

// DailyPoint is one day of the order series
type DailyPoint struct {
	Date         string `json:"date"`
	Orders       int64  `json:"orders"`
	RevenueCents int64  `json:"revenue_cents"`
}

// DailyCount is one day of a counting series
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// ProductSales ranks a product by revenue
type ProductSales struct {
	ProductID    uint   `json:"product_id"`
	Name         string `json:"name"`
	Quantity     int64  `json:"quantity"`
	RevenueCents int64  `json:"revenue_cents"`
}

type TenantAnalytics struct {
	Days              int              `json:"days"`
	From              time.Time        `json:"from"`
	To                time.Time        `json:"to"`
	RevenueCents      int64            `json:"revenue_cents"`
	OrderCount        int64            `json:"order_count"`
	AverageOrderCents int64            `json:"average_order_cents"`
	Daily             []DailyPoint     `json:"daily"`
	TopProducts       []ProductSales   `json:"top_products"`
	StatusBreakdown   map[string]int64 `json:"status_breakdown"`
	NewCustomers      int64            `json:"new_customers"`
}

type PlatformAnalytics struct {
	Days            int                   `json:"days"`
	From            time.Time             `json:"from"`
	To              time.Time             `json:"to"`
	TotalTenants    int64                 `json:"total_tenants"`
	ActiveTenants   int64                 `json:"active_tenants"`
	PendingTenants  int64                 `json:"pending_tenants"`
	OrderCount      int64                 `json:"order_count"`
	RevenueCents    int64                 `json:"revenue_cents"`
	TopTenants      []model.TenantRevenue `json:"top_tenants"`
	DailyNewTenants []DailyCount          `json:"daily_new_tenants"`
}

type AnalyticsService struct {
	orders  OrderStore
	users   UserStore
	tenants TenantStore
	clock   clock.Clock
}

func NewAnalyticsService(orders OrderStore, users UserStore, tenants TenantStore, clk clock.Clock) *AnalyticsService {
	return &AnalyticsService{orders: orders, users: users, tenants: tenants, clock: clk}
}

// ValidateDays checks an analytics window length
func ValidateDays(days int) error {
	if days < 1 || days > 365 {
		return model.NewValidationError("days", "must be between 1 and 365")
	}
	return nil
}

// window returns [from, to) covering the last days calendar days up to and including today (UTC)
func (s *AnalyticsService) window(days int) (time.Time, time.Time) {
	now := s.clock.Now().UTC()
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return to.AddDate(0, 0, -days), to
}

func (s *AnalyticsService) Tenant(ctx context.Context, tenantID uint, days int) (*TenantAnalytics, error) {
	if err := ValidateDays(days); err != nil {
		return nil, err
	}
	from, to := s.window(days)

	orders, err := s.orders.ListBetween(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	result := AggregateOrders(orders, from, days)
	result.To = to

	result.NewCustomers, err = s.users.CountCreatedSince(ctx, tenantID, model.RoleCustomer, from)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AggregateOrders summarises orders over days calendar days starting at from. Cancelled
// orders only count towards the status breakdown.
func AggregateOrders(orders []model.Order, from time.Time, days int) *TenantAnalytics {
	result := &TenantAnalytics{
		Days:            days,
		From:            from,
		To:              from.AddDate(0, 0, days),
		Daily:           make([]DailyPoint, days),
		StatusBreakdown: make(map[string]int64, len(model.OrderStatuses)),
		TopProducts:     []ProductSales{},
	}
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		date := from.AddDate(0, 0, i).Format(dayLayout)
		result.Daily[i] = DailyPoint{Date: date}
		index[date] = i
	}
	for _, status := range model.OrderStatuses {
		result.StatusBreakdown[string(status)] = 0
	}

	sales := make(map[uint]*ProductSales)
	for _, order := range orders {
		result.StatusBreakdown[string(order.Status)]++
		if order.Status == model.OrderStatusCancelled {
			continue
		}
		result.OrderCount++
		result.RevenueCents += order.TotalCents
		if i, ok := index[order.CreatedAt.UTC().Format(dayLayout)]; ok {
			result.Daily[i].Orders++
			result.Daily[i].RevenueCents += order.TotalCents
		}
		for _, item := range order.Items {
			ps, ok := sales[item.ProductID]
			if !ok {
				ps = &ProductSales{ProductID: item.ProductID, Name: item.ProductName}
				sales[item.ProductID] = ps
			}
			ps.Quantity += int64(item.Quantity)
			ps.RevenueCents += item.LineTotalCents
		}
	}
	if result.OrderCount > 0 {
		result.AverageOrderCents = result.RevenueCents / result.OrderCount
	}

	for _, ps := range sales {
		result.TopProducts = append(result.TopProducts, *ps)
	}
	sort.Slice(result.TopProducts, func(i, j int) bool {
		a, b := result.TopProducts[i], result.TopProducts[j]
		if a.RevenueCents != b.RevenueCents {
			return a.RevenueCents > b.RevenueCents
		}
		return a.ProductID < b.ProductID
	})
	if len(result.TopProducts) > topProductsLimit {
		result.TopProducts = result.TopProducts[:topProductsLimit]
	}
	return result
}

func (s *AnalyticsService) Platform(ctx context.Context, days int) (*PlatformAnalytics, error) {
	if err := ValidateDays(days); err != nil {
		return nil, err
	}
	from, to := s.window(days)
	result := &PlatformAnalytics{Days: days, From: from, To: to}

	counts, active, err := s.tenants.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	for _, n := range counts {
		result.TotalTenants += n
	}
	result.ActiveTenants = active
	result.PendingTenants = counts[model.TenantStatusPending]
	prometheus.UpdateActiveTenants(active)

	result.OrderCount, result.RevenueCents, err = s.orders.PlatformTotals(ctx, from, to)
	if err != nil {
		return nil, err
	}
	result.TopTenants, err = s.orders.TopTenantsByRevenue(ctx, from, to, topTenantsLimit)
	if err != nil {
		return nil, err
	}

	created, err := s.tenants.ListAll(ctx, from, to)
	if err != nil {
		return nil, err
	}
	result.DailyNewTenants = DailyNewTenants(created, from, days)
	return result, nil
}

// DailyNewTenants counts tenant sign-ups per day, zero-filled
func DailyNewTenants(tenants []model.Tenant, from time.Time, days int) []DailyCount {
	series := make([]DailyCount, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		date := from.AddDate(0, 0, i).Format(dayLayout)
		series[i] = DailyCount{Date: date}
		index[date] = i
	}
	for _, t := range tenants {
		if i, ok := index[t.CreatedAt.UTC().Format(dayLayout)]; ok {
			series[i].Count++
		}
	}
	return series
}
