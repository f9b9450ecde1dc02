package invoices

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anhpnguyen/edupay-backend/pkg/db/models"
	"github.com/anhpnguyen/edupay-backend/pkg/enums"
)

// Repository defines persistence operations for invoices and the orders they
// document.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateInvoice(ctx context.Context, invoice *models.Invoice) (*models.Invoice, error)
	FindInvoiceByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	FindInvoiceByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error)
	FindInvoiceByCode(ctx context.Context, code string) (*models.Invoice, error)
	UpdateArtifactPaths(ctx context.Context, id uuid.UUID, updates map[string]any) error

	FindOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindOrderByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error
}
