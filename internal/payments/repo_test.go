package payments

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/anhpnguyen/edupay-backend/pkg/db/models"
	"github.com/anhpnguyen/edupay-backend/pkg/enums"
)

func setupPaymentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  description TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  due_date DATETIME,
  status TEXT NOT NULL DEFAULT 'pending',
  student_id TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	payments := `
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  order_id TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  method TEXT NOT NULL DEFAULT 'qr_code',
  status TEXT NOT NULL DEFAULT 'pending',
  gateway_txn_id TEXT,
  paid_at DATETIME,
  qr_payload TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(payments).Error)
	return db
}

func insertOrder(t *testing.T, db *gorm.DB, status enums.OrderStatus) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:          uuid.New(),
		Code:        "ORD-" + uuid.NewString()[:8],
		Description: "Hoc phi thang 9",
		Amount:      decimal.NewFromInt(500000),
		Status:      status,
		StudentID:   uuid.New(),
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestRepositoryPaymentLifecycle(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := insertOrder(t, db, enums.OrderStatusPending)

	payment := &models.Payment{
		ID:        uuid.New(),
		Code:      "TXN-AAAA11112222",
		OrderID:   order.ID,
		Amount:    order.Amount,
		Method:    enums.PaymentMethodQRCode,
		Status:    enums.PaymentStatusPending,
		QRPayload: "VIETQR|970436|0123456789|500000|TXN-AAAA11112222|" + order.Code,
	}
	_, err := repo.CreatePayment(ctx, payment)
	require.NoError(t, err)

	found, err := repo.FindPaymentByCodeForUpdate(ctx, payment.Code)
	require.NoError(t, err)
	assert.Equal(t, payment.ID, found.ID)
	assert.Equal(t, enums.PaymentStatusPending, found.Status)

	err = repo.UpdatePaymentStatus(ctx, payment.ID, map[string]any{"status": enums.PaymentStatusSuccess})
	require.NoError(t, err)

	reloaded, err := repo.FindPaymentByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusSuccess, reloaded.Status)
}

func TestRepositoryDuplicatePaymentCode(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := insertOrder(t, db, enums.OrderStatusPending)

	first := &models.Payment{
		ID:        uuid.New(),
		Code:      "TXN-DUP",
		OrderID:   order.ID,
		Amount:    order.Amount,
		Status:    enums.PaymentStatusPending,
		QRPayload: "x",
	}
	_, err := repo.CreatePayment(ctx, first)
	require.NoError(t, err)

	second := &models.Payment{
		ID:        uuid.New(),
		Code:      "TXN-DUP",
		OrderID:   order.ID,
		Amount:    order.Amount,
		Status:    enums.PaymentStatusPending,
		QRPayload: "x",
	}
	_, err = repo.CreatePayment(ctx, second)
	assert.Error(t, err)
}

func TestRepositoryOrderStatus(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := insertOrder(t, db, enums.OrderStatusPending)

	require.NoError(t, repo.UpdateOrderStatus(ctx, order.ID, enums.OrderStatusPaid))

	reloaded, err := repo.FindOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, reloaded.Status)

	_, err = repo.FindOrderByID(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
