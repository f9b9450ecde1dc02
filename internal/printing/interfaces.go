package printing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anhpnguyen/edupay-backend/pkg/db/models"
	"github.com/anhpnguyen/edupay-backend/pkg/enums"
)

// Repository defines persistence operations for printers, agents and jobs.
// The invoice read is included because every job embeds invoice data.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreatePrinter(ctx context.Context, printer *models.Printer) (*models.Printer, error)
	FindPrinterByID(ctx context.Context, id uuid.UUID) (*models.Printer, error)
	ListPrinters(ctx context.Context, activeOnly bool) ([]models.Printer, error)

	CreateAgent(ctx context.Context, agent *models.PrinterAgent) (*models.PrinterAgent, error)
	FindAgentByID(ctx context.Context, id uuid.UUID) (*models.PrinterAgent, error)
	FindAgentByHostID(ctx context.Context, hostID string) (*models.PrinterAgent, error)
	ListAgents(ctx context.Context) ([]models.PrinterAgent, error)
	TouchAgentHeartbeat(ctx context.Context, id uuid.UUID, seenAt time.Time) error

	CreatePrintJob(ctx context.Context, job *models.PrintJob) (*models.PrintJob, error)
	FindPrintJobByID(ctx context.Context, id uuid.UUID) (*models.PrintJob, error)
	ListPrintJobs(ctx context.Context, status *enums.PrintJobStatus) ([]models.PrintJob, error)
	UpdatePrintJob(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ClaimFailedPrintJob(ctx context.Context, id uuid.UUID) (bool, error)

	FindInvoiceByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
}
