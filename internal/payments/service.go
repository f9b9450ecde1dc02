package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgdb "github.com/anhpnguyen/edupay-backend/pkg/db"
	"github.com/anhpnguyen/edupay-backend/pkg/db/models"
	"github.com/anhpnguyen/edupay-backend/pkg/enums"
	pkgerrors "github.com/anhpnguyen/edupay-backend/pkg/errors"
	"github.com/anhpnguyen/edupay-backend/pkg/logger"
	"github.com/anhpnguyen/edupay-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	PaymentConfirmation(ctx context.Context, payment *models.Payment, order *models.Order)
}

// Service defines the payment lifecycle operations.
type Service interface {
	CreateQRPayment(ctx context.Context, input CreateQRPaymentInput) (*models.Payment, error)
	HandleCallback(ctx context.Context, payload CallbackPayload) (*CallbackResult, error)
	ManualConfirm(ctx context.Context, input ManualActionInput) (*models.Payment, error)
	ManualRefund(ctx context.Context, input ManualActionInput) (*models.Payment, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	gateway Gateway
	notify  notifier
	metrics *metrics.DispatchMetrics
	logg    *logger.Logger
}

// NewService builds a payment service with the required dependencies. The
// notifier and metrics sink are optional.
func NewService(repo Repository, tx txRunner, gateway Gateway, notify notifier, m *metrics.DispatchMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		gateway: gateway,
		notify:  notify,
		metrics: m,
		logg:    logg,
	}, nil
}

func (s *service) CreateQRPayment(ctx context.Context, input CreateQRPaymentInput) (*models.Payment, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.repo.FindOrderByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not pending")
	}

	amount := input.Amount
	if amount.IsZero() {
		amount = order.Amount
	}
	if !amount.Equal(order.Amount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must match the order amount")
	}

	// The intent call happens before any row is written; a gateway failure
	// leaves the ledger untouched.
	intent, err := s.gateway.CreateIntent(ctx, order, amount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "gateway unavailable")
	}

	payment := &models.Payment{
		ID:        uuid.New(),
		Code:      intent.TransactionCode,
		OrderID:   order.ID,
		Amount:    amount,
		Method:    enums.PaymentMethodQRCode,
		Status:    enums.PaymentStatusPending,
		QRPayload: intent.QRPayload,
	}

	created, err := s.repo.CreatePayment(ctx, payment)
	if err != nil {
		if pkgdb.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "duplicate payment code")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payment")
	}

	return created, nil
}

func (s *service) HandleCallback(ctx context.Context, payload CallbackPayload) (*CallbackResult, error) {
	code := strings.TrimSpace(payload.PaymentCode)
	if code == "" {
		s.countCallback("invalid")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment code required")
	}
	target := enums.PaymentStatus(strings.ToLower(strings.TrimSpace(payload.Status)))
	if !target.IsTerminal() {
		s.countCallback("invalid")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be success or failed")
	}

	var result CallbackResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		payment, err := repo.FindPaymentByCodeForUpdate(ctx, code)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}

		// A redelivered callback sees the committed terminal state under the
		// row lock and acknowledges without touching anything.
		if payment.Status.IsTerminal() {
			result = CallbackResult{Payment: payment, AlreadyProcessed: true}
			return nil
		}

		updates := map[string]any{"status": target}
		if target == enums.PaymentStatusSuccess {
			now := time.Now()
			updates["paid_at"] = &now
			payment.PaidAt = &now
		}
		if txnID := strings.TrimSpace(payload.GatewayTxnID); txnID != "" {
			updates["gateway_txn_id"] = &txnID
			payment.GatewayTxnID = &txnID
		}
		if err := repo.UpdatePaymentStatus(ctx, payment.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment status")
		}
		payment.Status = target

		if target == enums.PaymentStatusSuccess {
			order, err := repo.FindOrderByID(ctx, payment.OrderID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
			}
			if order.Status == enums.OrderStatusPending {
				if err := repo.UpdateOrderStatus(ctx, order.ID, enums.OrderStatusPaid); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
				}
			}
		}

		result = CallbackResult{Payment: payment}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			s.countCallback("not_found")
		} else {
			s.countCallback("error")
		}
		return nil, err
	}

	if result.AlreadyProcessed {
		s.countCallback("duplicate")
		return &result, nil
	}
	s.countCallback(string(result.Payment.Status))

	if result.Payment.Status == enums.PaymentStatusSuccess && s.notify != nil {
		order, err := s.repo.FindOrderByID(ctx, result.Payment.OrderID)
		if err == nil {
			s.notify.PaymentConfirmation(ctx, result.Payment, order)
		} else if s.logg != nil {
			s.logg.Error(ctx, "payments.callback.notify_load_order", err)
		}
	}

	return &result, nil
}

func (s *service) ManualConfirm(ctx context.Context, input ManualActionInput) (*models.Payment, error) {
	if input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}

	var confirmed *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		payment, err := repo.FindPaymentByIDForUpdate(ctx, input.PaymentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		if payment.Status != enums.PaymentStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not pending")
		}

		now := time.Now()
		updates := map[string]any{
			"status":  enums.PaymentStatusSuccess,
			"paid_at": &now,
		}
		if err := repo.UpdatePaymentStatus(ctx, payment.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment status")
		}
		payment.Status = enums.PaymentStatusSuccess
		payment.PaidAt = &now

		order, err := repo.FindOrderByID(ctx, payment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status == enums.OrderStatusPending {
			if err := repo.UpdateOrderStatus(ctx, order.ID, enums.OrderStatusPaid); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
			}
		}

		confirmed = payment
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logManualAction(ctx, "payments.manual_confirm", confirmed.ID, input)
	return confirmed, nil
}

func (s *service) ManualRefund(ctx context.Context, input ManualActionInput) (*models.Payment, error) {
	if input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}

	var refunded *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		payment, err := repo.FindPaymentByIDForUpdate(ctx, input.PaymentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		if payment.Status != enums.PaymentStatusSuccess {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only successful payments can be refunded")
		}

		updates := map[string]any{
			"status":  enums.PaymentStatusFailed,
			"paid_at": nil,
		}
		if err := repo.UpdatePaymentStatus(ctx, payment.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment status")
		}
		payment.Status = enums.PaymentStatusFailed
		payment.PaidAt = nil

		order, err := repo.FindOrderByID(ctx, payment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		// Refund is blocked once the order is invoiced; the invoice is the
		// legal record and must be voided through the provider first.
		if order.Status == enums.OrderStatusInvoiced {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already invoiced")
		}
		if order.Status == enums.OrderStatusPaid {
			if err := repo.UpdateOrderStatus(ctx, order.ID, enums.OrderStatusPending); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
			}
		}

		refunded = payment
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logManualAction(ctx, "payments.manual_refund", refunded.ID, input)
	return refunded, nil
}

func (s *service) countCallback(outcome string) {
	if s.metrics != nil {
		s.metrics.IncCallback(outcome)
	}
}

func (s *service) logManualAction(ctx context.Context, msg string, paymentID uuid.UUID, input ManualActionInput) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"payment_id": paymentID.String(),
		"actor_id":   input.ActorID.String(),
		"actor_role": input.ActorRole,
	})
	s.logg.Info(logCtx, msg)
}
