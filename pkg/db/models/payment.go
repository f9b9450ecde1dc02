package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/anhpnguyen/edupay-backend/pkg/enums"
)

// Payment is one attempt to settle an Order through the gateway. The status is
// written exactly once, either by the webhook ingestor or by an operator
// override, and never leaves a terminal state.
type Payment struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Code         string              `gorm:"column:code;type:text;not null;uniqueIndex"`
	OrderID      uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	Amount       decimal.Decimal     `gorm:"column:amount;type:numeric(14,2);not null"`
	Method       enums.PaymentMethod `gorm:"column:method;type:text;not null;default:'qr_code'"`
	Status       enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	GatewayTxnID *string             `gorm:"column:gateway_txn_id"`
	PaidAt       *time.Time          `gorm:"column:paid_at"`
	QRPayload    string              `gorm:"column:qr_payload;type:text;not null"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
