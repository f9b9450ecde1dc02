package printing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anhpnguyen/edupay-backend/pkg/db/models"
	"github.com/anhpnguyen/edupay-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a printing repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreatePrinter(ctx context.Context, printer *models.Printer) (*models.Printer, error) {
	if err := r.db.WithContext(ctx).Create(printer).Error; err != nil {
		return nil, err
	}
	return printer, nil
}

func (r *repository) FindPrinterByID(ctx context.Context, id uuid.UUID) (*models.Printer, error) {
	var printer models.Printer
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&printer).Error
	if err != nil {
		return nil, err
	}
	return &printer, nil
}

func (r *repository) ListPrinters(ctx context.Context, activeOnly bool) ([]models.Printer, error) {
	query := r.db.WithContext(ctx).Order("name ASC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var printers []models.Printer
	if err := query.Find(&printers).Error; err != nil {
		return nil, err
	}
	return printers, nil
}

func (r *repository) CreateAgent(ctx context.Context, agent *models.PrinterAgent) (*models.PrinterAgent, error) {
	if err := r.db.WithContext(ctx).Create(agent).Error; err != nil {
		return nil, err
	}
	return agent, nil
}

func (r *repository) FindAgentByID(ctx context.Context, id uuid.UUID) (*models.PrinterAgent, error) {
	var agent models.PrinterAgent
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&agent).Error
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

func (r *repository) FindAgentByHostID(ctx context.Context, hostID string) (*models.PrinterAgent, error) {
	var agent models.PrinterAgent
	err := r.db.WithContext(ctx).
		Where("host_id = ?", hostID).
		First(&agent).Error
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

func (r *repository) ListAgents(ctx context.Context) ([]models.PrinterAgent, error) {
	var agents []models.PrinterAgent
	err := r.db.WithContext(ctx).
		Order("host_name ASC").
		Find(&agents).Error
	if err != nil {
		return nil, err
	}
	return agents, nil
}

func (r *repository) TouchAgentHeartbeat(ctx context.Context, id uuid.UUID, seenAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.PrinterAgent{}).
		Where("id = ?", id).
		Update("last_seen_at", seenAt).Error
}

func (r *repository) CreatePrintJob(ctx context.Context, job *models.PrintJob) (*models.PrintJob, error) {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

func (r *repository) FindPrintJobByID(ctx context.Context, id uuid.UUID) (*models.PrintJob, error) {
	var job models.PrintJob
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *repository) ListPrintJobs(ctx context.Context, status *enums.PrintJobStatus) ([]models.PrintJob, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var jobs []models.PrintJob
	if err := query.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *repository) UpdatePrintJob(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.PrintJob{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ClaimFailedPrintJob moves a failed job back to pending. The status guard in
// the WHERE clause makes the claim atomic, so only one of two concurrent
// retries wins.
func (r *repository) ClaimFailedPrintJob(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PrintJob{}).
		Where("id = ? AND status = ?", id, enums.PrintJobStatusFailed).
		Updates(map[string]any{
			"status":     enums.PrintJobStatusPending,
			"last_error": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) FindInvoiceByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}
