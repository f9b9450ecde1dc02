package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/anhpnguyen/edupay-backend/pkg/enums"
)

// Order is a billable fee owed by a student. Status moves Pending→Paid on a
// successful payment and Paid→Invoiced when the invoice is issued.
type Order struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Code        string            `gorm:"column:code;type:text;not null;uniqueIndex"`
	Description string            `gorm:"column:description;not null"`
	Amount      decimal.Decimal   `gorm:"column:amount;type:numeric(14,2);not null"`
	DueDate     *time.Time        `gorm:"column:due_date"`
	Status      enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	StudentID   uuid.UUID         `gorm:"column:student_id;type:uuid;not null;index"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
