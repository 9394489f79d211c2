package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"budstack-service/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *gorm.DB) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, PreferSimpleProtocol: true}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return sqlDB, mock, db
}

func TestTranslateError(t *testing.T) {
	assert.NoError(t, translateError(nil))
	assert.ErrorIs(t, translateError(gorm.ErrRecordNotFound), model.ErrNotFound)
	assert.ErrorIs(t, translateError(gorm.ErrDuplicatedKey), model.ErrConflict)
	assert.ErrorIs(t, translateError(gorm.ErrDuplicatedKey), model.ErrDuplicateKey)
	assert.NotErrorIs(t, translateError(gorm.ErrRecordNotFound), model.ErrDuplicateKey)

	other := errors.New("boom")
	assert.Equal(t, other, translateError(other))
}

func TestNormalizePage(t *testing.T) {
	page, size := normalizePage(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, defaultPageSize, size)

	page, size = normalizePage(3, 1000)
	assert.Equal(t, 3, page)
	assert.Equal(t, maxPageSize, size)
}

func TestProductRepository_GetBySlug_NotFound(t *testing.T) {
	sqlDB, mock, db := setupMockDB(t)
	defer sqlDB.Close()

	mock.ExpectQuery(`SELECT \* FROM "products"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "slug"}))

	_, err := NewProductRepository(db).GetBySlug(context.Background(), 1, "missing")

	assert.ErrorIs(t, err, model.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_GetBySlug_Success(t *testing.T) {
	sqlDB, mock, db := setupMockDB(t)
	defer sqlDB.Close()

	rows := sqlmock.NewRows([]string{"id", "tenant_id", "name", "slug", "price_cents", "stock", "is_active"}).
		AddRow(7, 1, "Blue Dream", "blue-dream", 1500, 12, true)
	mock.ExpectQuery(`SELECT \* FROM "products" WHERE \(tenant_id = \$1 AND slug = \$2\)`).
		WillReturnRows(rows)

	product, err := NewProductRepository(db).GetBySlug(context.Background(), 1, "blue-dream")

	require.NoError(t, err)
	assert.Equal(t, uint(7), product.ID)
	assert.Equal(t, "Blue Dream", product.Name)
	assert.Equal(t, int64(1500), product.PriceCents)
	assert.True(t, product.IsActive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_Delete_NotFound(t *testing.T) {
	sqlDB, mock, db := setupMockDB(t)
	defer sqlDB.Close()

	mock.ExpectExec(`UPDATE "products" SET "deleted_at"`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewProductRepository(db).Delete(context.Background(), 1, 99)

	assert.ErrorIs(t, err, model.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantRepository_SubdomainTaken(t *testing.T) {
	sqlDB, mock, db := setupMockDB(t)
	defer sqlDB.Close()

	mock.ExpectQuery(`SELECT count\(\*\) FROM "tenants" WHERE subdomain = \$1`).
		WithArgs("greenleaf").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	taken, err := NewTenantRepository(db).SubdomainTaken(context.Background(), "GreenLeaf")

	require.NoError(t, err)
	assert.True(t, taken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_Checkout_EmptyCart(t *testing.T) {
	sqlDB, mock, db := setupMockDB(t)
	defer sqlDB.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "cart_items" WHERE cart_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "cart_id", "product_id", "quantity"}))
	mock.ExpectRollback()

	called := false
	_, err := NewOrderRepository(db).Checkout(context.Background(), 1, 5,
		func(items []model.CartItem, products map[uint]model.Product) (*model.Order, error) {
			called = true
			return nil, nil
		})

	assert.ErrorIs(t, err, model.ErrEmptyCart)
	assert.False(t, called)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_Checkout_PriceErrorRollsBack(t *testing.T) {
	sqlDB, mock, db := setupMockDB(t)
	defer sqlDB.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "cart_items"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "cart_id", "product_id", "quantity"}).AddRow(1, 5, 7, 3))
	mock.ExpectQuery(`SELECT \* FROM "products" .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name", "stock", "is_active"}).AddRow(7, 1, "Blue Dream", 2, true))
	mock.ExpectRollback()

	_, err := NewOrderRepository(db).Checkout(context.Background(), 1, 5,
		func(items []model.CartItem, products map[uint]model.Product) (*model.Order, error) {
			require.Len(t, items, 1)
			require.Contains(t, products, uint(7))
			if products[7].Stock < items[0].Quantity {
				return nil, model.ErrInsufficientStock
			}
			return &model.Order{}, nil
		})

	assert.ErrorIs(t, err, model.ErrInsufficientStock)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_UpdateStatus_InvalidTransition(t *testing.T) {
	sqlDB, mock, db := setupMockDB(t)
	defer sqlDB.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "orders" .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "status"}).AddRow(3, 1, "delivered"))
	mock.ExpectRollback()

	_, err := NewOrderRepository(db).UpdateStatus(context.Background(), 1, 3, model.OrderStatusCancelled)

	assert.ErrorIs(t, err, model.ErrInvalidTransition)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_TopTenantsByRevenue_SkipsDeletedTenants(t *testing.T) {
	sqlDB, mock, db := setupMockDB(t)
	defer sqlDB.Close()

	rows := sqlmock.NewRows([]string{"tenant_id", "business_name", "order_count", "revenue_cents"}).
		AddRow(2, "Green Leaf", 4, 18250)
	mock.ExpectQuery(`FROM "?orders"? JOIN tenants ON tenants\.id = orders\.tenant_id WHERE .*tenants\.deleted_at IS NULL.* GROUP BY orders\.tenant_id`).
		WillReturnRows(rows)

	to := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	top, err := NewOrderRepository(db).TopTenantsByRevenue(context.Background(), to.AddDate(0, 0, -30), to, 10)

	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "Green Leaf", top[0].BusinessName)
	assert.Equal(t, int64(18250), top[0].RevenueCents)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsRepository_Get_DefaultsWhenMissing(t *testing.T) {
	sqlDB, mock, db := setupMockDB(t)
	defer sqlDB.Close()

	mock.ExpectQuery(`SELECT \* FROM "platform_settings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "platform_name"}))

	settings, err := NewSettingsRepository(db).Get(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "BudStack", settings.PlatformName)
	assert.True(t, settings.AllowOnboarding)
	require.NoError(t, mock.ExpectationsWereMet())
}
