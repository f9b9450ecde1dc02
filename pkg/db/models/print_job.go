package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/anhpnguyen/edupay-backend/pkg/enums"
)

// PrintJob is one attempt to deliver a rendered invoice to a printer.
// Payload holds the serialized render payload so a retry can re-dispatch
// without re-reading artifacts.
type PrintJob struct {
	ID          uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	PrinterID   uuid.UUID            `gorm:"column:printer_id;type:uuid;not null;index"`
	InvoiceID   uuid.UUID            `gorm:"column:invoice_id;type:uuid;not null;index"`
	Payload     []byte               `gorm:"column:payload;type:bytea;not null"`
	PayloadType enums.DocumentType   `gorm:"column:payload_type;type:text;not null"`
	Copies      int                  `gorm:"column:copies;not null;default:1"`
	PaperSize   string               `gorm:"column:paper_size;not null;default:'A4'"`
	Status      enums.PrintJobStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	LastError   *string              `gorm:"column:last_error"`
	SentAt      *time.Time           `gorm:"column:sent_at"`
	CompletedAt *time.Time           `gorm:"column:completed_at"`
	CreatedAt   time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
