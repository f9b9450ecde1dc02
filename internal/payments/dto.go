package payments

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/anhpnguyen/edupay-backend/pkg/db/models"
)

// CallbackPayload is the decoded webhook body. The gateway sends at minimum a
// payment code and a terminal status string.
type CallbackPayload struct {
	PaymentCode  string `json:"payment_code" validate:"required"`
	Status       string `json:"status" validate:"required,oneof=success failed"`
	GatewayTxnID string `json:"gateway_txn_id"`
}

// CallbackResult reports what a callback delivery did. AlreadyProcessed marks
// redeliveries that observed a terminal payment and changed nothing.
type CallbackResult struct {
	Payment          *models.Payment
	AlreadyProcessed bool
}

// CreateQRPaymentInput carries the staff request to open a payment intent.
// Amount is the full order amount; partial settlement is not supported.
type CreateQRPaymentInput struct {
	OrderID uuid.UUID
	Amount  decimal.Decimal
}

// ManualActionInput identifies the payment and the operator behind a manual
// confirm or refund override.
type ManualActionInput struct {
	PaymentID uuid.UUID
	ActorID   uuid.UUID
	ActorRole string
}
