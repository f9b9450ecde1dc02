package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anhpnguyen/edupay-backend/pkg/db/models"
	"github.com/anhpnguyen/edupay-backend/pkg/enums"
)

// Repository defines persistence operations for payments and the orders they
// settle. FindPaymentByCodeForUpdate takes a row lock and must run inside a
// transaction.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreatePayment(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	FindPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindPaymentByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindPaymentByCodeForUpdate(ctx context.Context, code string) (*models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, updates map[string]any) error

	FindOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error
}
