package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"
	"testing"
	"time"

	"budstack-service/internal/clock"
	"budstack-service/internal/model"
	"budstack-service/pkg/export"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var checkoutTime = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

type orderFixture struct {
	cart   *cartFixture
	orders *fakeOrders
	svc    *OrderService
	tenant *model.Tenant
}

func newOrderFixture() *orderFixture {
	cf := newCartFixture()
	f := &orderFixture{
		cart:   cf,
		orders: newFakeOrders(cf.carts, cf.products),
		tenant: &model.Tenant{ID: shopID, TaxRateBps: 825, ShippingFeeCents: 500, FreeShippingOverCents: 10000},
	}
	f.svc = NewOrderService(f.orders, cf.carts, clock.Fixed{T: checkoutTime}, "bs", zap.NewNop())
	f.svc.random = bytes.NewReader(bytes.Repeat([]byte{0x42}, 64))
	return f
}

func checkoutInput() CheckoutInput {
	return CheckoutInput{
		CustomerName:  "Rui Silva",
		CustomerEmail: "Rui@Mail.example",
		ShippingAddress: model.Address{
			Line1:      "Rua Augusta 1",
			City:       "Lisboa",
			PostalCode: "1100-048",
			Country:    "pt",
		},
	}
}

func TestTaxAndShipping(t *testing.T) {
	assert.Equal(t, int64(0), TaxCents(0, 825))
	assert.Equal(t, int64(0), TaxCents(1000, 0))
	assert.Equal(t, int64(83), TaxCents(1000, 825)) // 82.5 rounds up
	assert.Equal(t, int64(82), TaxCents(999, 825))  // 82.4175
	assert.Equal(t, int64(2300), TaxCents(10000, 2300))

	assert.Equal(t, int64(500), ShippingCents(9999, 500, 10000))
	assert.Equal(t, int64(0), ShippingCents(10000, 500, 10000))
	assert.Equal(t, int64(500), ShippingCents(1_000_000, 500, 0), "zero threshold never waives shipping")
}

func TestPriceOrder(t *testing.T) {
	tenant := &model.Tenant{ID: 1, TaxRateBps: 1000, ShippingFeeCents: 700}
	products := map[uint]model.Product{
		1: {ID: 1, Name: "OG Kush", PriceCents: 1250, Stock: 5, IsActive: true},
		2: {ID: 2, Name: "Lemon Haze", PriceCents: 999, Stock: 1, IsActive: true},
	}
	items := []model.CartItem{
		{ProductID: 1, Quantity: 2, UnitPriceCents: 1000},
		{ProductID: 2, Quantity: 1, UnitPriceCents: 999},
	}

	order, err := PriceOrder(tenant, items, products)
	require.NoError(t, err)
	assert.Equal(t, int64(2500+999), order.SubtotalCents, "current prices win over cart snapshots")
	assert.Equal(t, int64(350), order.TaxCents)
	assert.Equal(t, int64(700), order.ShippingCents)
	assert.Equal(t, order.SubtotalCents+order.TaxCents+order.ShippingCents, order.TotalCents)
	assert.Equal(t, model.OrderStatusPending, order.Status)
	require.Len(t, order.Items, 2)
	assert.Equal(t, int64(2500), order.Items[0].LineTotalCents)

	_, err = PriceOrder(tenant, []model.CartItem{{ProductID: 2, Quantity: 2}}, products)
	assert.ErrorIs(t, err, model.ErrInsufficientStock)

	_, err = PriceOrder(tenant, []model.CartItem{{ProductID: 3, Quantity: 1}}, products)
	assert.ErrorIs(t, err, model.ErrConflict)

	inactive := map[uint]model.Product{1: {ID: 1, PriceCents: 1, Stock: 5}}
	_, err = PriceOrder(tenant, []model.CartItem{{ProductID: 1, Quantity: 1}}, inactive)
	assert.ErrorIs(t, err, model.ErrConflict)

	_, err = PriceOrder(tenant, nil, products)
	assert.ErrorIs(t, err, model.ErrEmptyCart)
}

func TestOrder_Checkout(t *testing.T) {
	f := newOrderFixture()
	ctx := context.Background()

	_, err := f.cart.svc.AddItem(ctx, shopID, session, f.cart.kush.ID, 4)
	require.NoError(t, err)
	_, err = f.cart.svc.AddItem(ctx, shopID, session, f.cart.haze.ID, 1)
	require.NoError(t, err)

	userID := uint(9)
	order, err := f.svc.Checkout(ctx, f.tenant, session, &userID, checkoutInput())
	require.NoError(t, err)

	assert.Equal(t, "BS-20260314-IJBEEQ", order.OrderNumber)
	assert.Equal(t, "rui@mail.example", order.CustomerEmail)
	assert.Equal(t, "PT", order.ShippingAddress.Data().Country)
	assert.Equal(t, checkoutTime, order.CreatedAt)
	assert.Equal(t, int64(4*1250+999), order.SubtotalCents)
	assert.Equal(t, TaxCents(5999, 825), order.TaxCents)
	assert.Equal(t, int64(500), order.ShippingCents)
	assert.Equal(t, &userID, order.UserID)

	kush, _ := f.cart.products.GetByID(ctx, shopID, f.cart.kush.ID)
	assert.Equal(t, 6, kush.Stock)

	_, err = f.svc.Checkout(ctx, f.tenant, session, nil, checkoutInput())
	assert.ErrorIs(t, err, model.ErrEmptyCart, "the cart was converted")
}

func TestOrder_CheckoutErrors(t *testing.T) {
	f := newOrderFixture()
	ctx := context.Background()

	_, err := f.svc.Checkout(ctx, f.tenant, session, nil, checkoutInput())
	assert.ErrorIs(t, err, model.ErrEmptyCart)

	bad := checkoutInput()
	bad.ShippingAddress.Country = "Portugal"
	_, err = f.svc.Checkout(ctx, f.tenant, session, nil, bad)
	assert.ErrorIs(t, err, model.ErrValidation)

	bad = checkoutInput()
	bad.CustomerEmail = "nope"
	_, err = f.svc.Checkout(ctx, f.tenant, session, nil, bad)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = f.cart.svc.AddItem(ctx, shopID, session, f.cart.haze.ID, 3)
	require.NoError(t, err)
	f.cart.haze.Stock = 1
	require.NoError(t, f.cart.products.Save(ctx, &f.cart.haze))
	_, err = f.svc.Checkout(ctx, f.tenant, session, nil, checkoutInput())
	assert.ErrorIs(t, err, model.ErrInsufficientStock)
}

func TestOrder_CheckoutRetriesNumberCollision(t *testing.T) {
	f := newOrderFixture()
	ctx := context.Background()
	_, err := f.cart.svc.AddItem(ctx, shopID, session, f.cart.kush.ID, 1)
	require.NoError(t, err)

	f.orders.collisions = 2
	_, err = f.svc.Checkout(ctx, f.tenant, session, nil, checkoutInput())
	require.NoError(t, err)

	_, err = f.cart.svc.AddItem(ctx, shopID, "sess-2", f.cart.kush.ID, 1)
	require.NoError(t, err)
	f.orders.collisions = orderNumberAttempts
	_, err = f.svc.Checkout(ctx, f.tenant, "sess-2", nil, checkoutInput())
	assert.ErrorIs(t, err, model.ErrConflict)
}

// countingReader counts the order numbers drawn during a checkout
type countingReader struct {
	r     io.Reader
	reads int
}

func (c *countingReader) Read(p []byte) (int, error) {
	c.reads++
	return c.r.Read(p)
}

func TestOrder_CheckoutUnavailableProductIsNotRetried(t *testing.T) {
	f := newOrderFixture()
	ctx := context.Background()
	random := &countingReader{r: bytes.NewReader(bytes.Repeat([]byte{0x42}, 64))}
	f.svc.random = random

	_, err := f.cart.svc.AddItem(ctx, shopID, session, f.cart.kush.ID, 1)
	require.NoError(t, err)
	f.cart.kush.IsActive = false
	require.NoError(t, f.cart.products.Save(ctx, &f.cart.kush))

	_, err = f.svc.Checkout(ctx, f.tenant, session, nil, checkoutInput())
	assert.ErrorIs(t, err, model.ErrConflict)
	assert.NotErrorIs(t, err, model.ErrDuplicateKey)
	assert.Equal(t, 1, random.reads)
}

func TestOrder_LookupAndStatus(t *testing.T) {
	f := newOrderFixture()
	ctx := context.Background()
	_, err := f.cart.svc.AddItem(ctx, shopID, session, f.cart.kush.ID, 1)
	require.NoError(t, err)
	order, err := f.svc.Checkout(ctx, f.tenant, session, nil, checkoutInput())
	require.NoError(t, err)

	found, err := f.svc.Lookup(ctx, shopID, strings.ToLower(order.OrderNumber), "RUI@mail.example")
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)

	_, err = f.svc.Lookup(ctx, shopID, order.OrderNumber, "someone@else.example")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = f.svc.Lookup(ctx, shopID, order.OrderNumber, "")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = f.svc.Lookup(ctx, 2, order.OrderNumber, "rui@mail.example")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = f.svc.UpdateStatus(ctx, shopID, order.ID, "teleported")
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = f.svc.UpdateStatus(ctx, shopID, order.ID, "shipped")
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	updated, err := f.svc.UpdateStatus(ctx, shopID, order.ID, "confirmed")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusConfirmed, updated.Status)
}

func TestOrder_Export(t *testing.T) {
	f := newOrderFixture()
	ctx := context.Background()
	_, err := f.cart.svc.AddItem(ctx, shopID, session, f.cart.kush.ID, 2)
	require.NoError(t, err)
	order, err := f.svc.Checkout(ctx, f.tenant, session, nil, checkoutInput())
	require.NoError(t, err)

	_, err = f.svc.Export(ctx, shopID, checkoutTime.Add(-time.Hour), checkoutTime.Add(time.Hour), "pdf")
	assert.ErrorIs(t, err, model.ErrValidation)

	body, err := f.svc.Export(ctx, shopID, checkoutTime.Add(-time.Hour), checkoutTime.Add(time.Hour), export.FormatCSV)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Order Number", records[0][0])
	assert.Equal(t, order.OrderNumber, records[1][0])
	assert.Equal(t, "2", records[1][5])
	assert.Equal(t, "25.00", records[1][6])
}
