package service

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"budstack-service/internal/clock"
	"budstack-service/internal/model"
	"budstack-service/pkg/export"
	"budstack-service/prometheus"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const orderNumberAttempts = 3

// CheckoutInput carries the customer and shipping details of a checkout
type CheckoutInput struct {
	CustomerName    string        `json:"customer_name"`
	CustomerEmail   string        `json:"customer_email"`
	CustomerPhone   string        `json:"customer_phone"`
	ShippingAddress model.Address `json:"shipping_address"`
	Notes           string        `json:"notes"`
}

type OrderService struct {
	orders OrderStore
	carts  CartStore
	clock  clock.Clock
	random io.Reader
	prefix string
	logger *zap.Logger
}

func NewOrderService(orders OrderStore, carts CartStore, clk clock.Clock, prefix string, logger *zap.Logger) *OrderService {
	return &OrderService{
		orders: orders,
		carts:  carts,
		clock:  clk,
		random: rand.Reader,
		prefix: strings.ToUpper(prefix),
		logger: logger,
	}
}

// Checkout turns the session's cart into a pending order at current prices
func (s *OrderService) Checkout(ctx context.Context, tenant *model.Tenant, sessionID string, userID *uint, input CheckoutInput) (*model.Order, error) {
	normalizeCheckout(&input)
	if err := validateCheckout(input); err != nil {
		return nil, err
	}

	cart, err := s.carts.FindActive(ctx, tenant.ID, sessionID)
	if err != nil {
		if isNotFound(err) {
			return nil, model.ErrEmptyCart
		}
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, model.ErrEmptyCart
	}

	var order *model.Order
	for attempt := 1; attempt <= orderNumberAttempts; attempt++ {
		number, err := s.orderNumber()
		if err != nil {
			return nil, err
		}
		order, err = s.orders.Checkout(ctx, tenant.ID, cart.ID, func(items []model.CartItem, products map[uint]model.Product) (*model.Order, error) {
			priced, err := PriceOrder(tenant, items, products)
			if err != nil {
				return nil, err
			}
			priced.OrderNumber = number
			priced.UserID = userID
			priced.CustomerName = input.CustomerName
			priced.CustomerEmail = input.CustomerEmail
			priced.CustomerPhone = input.CustomerPhone
			priced.ShippingAddress = datatypes.NewJSONType(input.ShippingAddress)
			priced.Notes = input.Notes
			priced.CreatedAt = s.clock.Now()
			return priced, nil
		})
		if err == nil {
			break
		}
		// only a colliding order number is worth another attempt
		if !errors.Is(err, model.ErrDuplicateKey) || attempt == orderNumberAttempts {
			return nil, err
		}
		s.logger.Warn("Order number collision, retrying", zap.String("order_number", number))
	}

	prometheus.RecordOrderPlaced(tenant.ID, order.TotalCents)
	s.logger.Info("Order placed",
		zap.Uint("tenant_id", tenant.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int("items", len(order.Items)),
		zap.Int64("total_cents", order.TotalCents))
	return order, nil
}

// PriceOrder prices cart lines at the locked product prices and applies the tenant's tax and
// shipping rules
func PriceOrder(tenant *model.Tenant, items []model.CartItem, products map[uint]model.Product) (*model.Order, error) {
	if len(items) == 0 {
		return nil, model.ErrEmptyCart
	}
	order := &model.Order{
		TenantID: tenant.ID,
		Status:   model.OrderStatusPending,
		Items:    make([]model.OrderItem, 0, len(items)),
	}
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok || !product.IsActive {
			return nil, fmt.Errorf("product %d is no longer available: %w", item.ProductID, model.ErrConflict)
		}
		if product.Stock < item.Quantity {
			return nil, fmt.Errorf("only %d of %s left: %w", product.Stock, product.Name, model.ErrInsufficientStock)
		}
		line := int64(item.Quantity) * product.PriceCents
		order.Items = append(order.Items, model.OrderItem{
			ProductID:      product.ID,
			ProductName:    product.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: product.PriceCents,
			LineTotalCents: line,
		})
		order.SubtotalCents += line
	}

	order.TaxCents = TaxCents(order.SubtotalCents, tenant.TaxRateBps)
	order.ShippingCents = ShippingCents(order.SubtotalCents, tenant.ShippingFeeCents, tenant.FreeShippingOverCents)
	order.TotalCents = order.SubtotalCents + order.TaxCents + order.ShippingCents
	return order, nil
}

// TaxCents is subtotal × rate/10000 rounded half up
func TaxCents(subtotal int64, rateBps int) int64 {
	if subtotal <= 0 || rateBps <= 0 {
		return 0
	}
	return (subtotal*int64(rateBps) + 5000) / 10000
}

// ShippingCents is free once the subtotal reaches a positive threshold
func ShippingCents(subtotal, fee, freeOver int64) int64 {
	if freeOver > 0 && subtotal >= freeOver {
		return 0
	}
	return fee
}

// orderNumber is <prefix>-<YYYYMMDD>-<6 base32 chars>
func (s *OrderService) orderNumber() (string, error) {
	buf := make([]byte, 4)
	if _, err := io.ReadFull(s.random, buf); err != nil {
		return "", fmt.Errorf("generate order number: %w", err)
	}
	suffix := base32.StdEncoding.EncodeToString(buf)[:6]
	return fmt.Sprintf("%s-%s-%s", s.prefix, s.clock.Now().Format("20060102"), suffix), nil
}

// Lookup finds an order for a guest who knows its number and email
func (s *OrderService) Lookup(ctx context.Context, tenantID uint, number, email string) (*model.Order, error) {
	order, err := s.orders.GetByNumber(ctx, tenantID, strings.TrimSpace(number))
	if err != nil {
		return nil, err
	}
	if email == "" || !strings.EqualFold(order.CustomerEmail, strings.TrimSpace(email)) {
		return nil, model.ErrNotFound
	}
	return order, nil
}

// ForCustomer lists a signed-in customer's orders
func (s *OrderService) ForCustomer(ctx context.Context, tenantID, userID uint, page, pageSize int) (*model.Page[model.Order], error) {
	return s.orders.List(ctx, tenantID, model.OrderFilter{UserID: &userID, Page: page, PageSize: pageSize})
}

func (s *OrderService) List(ctx context.Context, tenantID uint, filter model.OrderFilter) (*model.Page[model.Order], error) {
	return s.orders.List(ctx, tenantID, filter)
}

func (s *OrderService) Get(ctx context.Context, tenantID, id uint) (*model.Order, error) {
	return s.orders.GetByID(ctx, tenantID, id)
}

// UpdateStatus moves an order along the status machine; cancelling restocks
func (s *OrderService) UpdateStatus(ctx context.Context, tenantID, id uint, status string) (*model.Order, error) {
	to, ok := model.ParseOrderStatus(status)
	if !ok {
		return nil, model.NewValidationError("status", "unknown order status")
	}
	order, err := s.orders.UpdateStatus(ctx, tenantID, id, to)
	if err != nil {
		return nil, err
	}
	prometheus.RecordOrderStatus(string(to))
	s.logger.Info("Order status changed",
		zap.Uint("tenant_id", tenantID),
		zap.String("order_number", order.OrderNumber),
		zap.String("status", string(to)))
	return order, nil
}

// Export renders the tenant's orders created in [from, to) as csv or xlsx
func (s *OrderService) Export(ctx context.Context, tenantID uint, from, to time.Time, format string) ([]byte, error) {
	if format != export.FormatCSV && format != export.FormatXLSX {
		return nil, model.NewValidationError("format", "must be csv or xlsx")
	}
	orders, err := s.orders.ListBetween(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	return export.Render(OrdersTable(orders), format)
}

// OrdersTable lays orders out for export
func OrdersTable(orders []model.Order) export.Table {
	table := export.Table{
		Sheet:  "Orders",
		Header: []string{"Order Number", "Date", "Customer", "Email", "Status", "Items", "Subtotal", "Tax", "Shipping", "Total"},
		Rows:   make([][]any, 0, len(orders)),
	}
	for _, o := range orders {
		items := 0
		for _, item := range o.Items {
			items += item.Quantity
		}
		table.Rows = append(table.Rows, []any{
			o.OrderNumber,
			o.CreatedAt,
			o.CustomerName,
			o.CustomerEmail,
			string(o.Status),
			items,
			export.Cents(o.SubtotalCents),
			export.Cents(o.TaxCents),
			export.Cents(o.ShippingCents),
			export.Cents(o.TotalCents),
		})
	}
	return table
}

func normalizeCheckout(input *CheckoutInput) {
	input.CustomerName = strings.TrimSpace(input.CustomerName)
	input.CustomerEmail = strings.ToLower(strings.TrimSpace(input.CustomerEmail))
	input.CustomerPhone = strings.TrimSpace(input.CustomerPhone)
	input.ShippingAddress.Country = strings.ToUpper(strings.TrimSpace(input.ShippingAddress.Country))
}

func validateCheckout(input CheckoutInput) error {
	if err := requireLength("customer_name", input.CustomerName, 1, 100); err != nil {
		return err
	}
	if err := requireEmail("customer_email", input.CustomerEmail); err != nil {
		return err
	}
	addr := input.ShippingAddress
	if err := requireLength("shipping_address.line1", addr.Line1, 1, 255); err != nil {
		return err
	}
	if err := requireLength("shipping_address.city", addr.City, 1, 100); err != nil {
		return err
	}
	if err := requireLength("shipping_address.postal_code", addr.PostalCode, 1, 20); err != nil {
		return err
	}
	if !countryPattern.MatchString(addr.Country) {
		return model.NewValidationError("shipping_address.country", "must be a two letter country code")
	}
	return nil
}
