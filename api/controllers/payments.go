package controllers

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/anhpnguyen/edupay-backend/api/middleware"
	"github.com/anhpnguyen/edupay-backend/api/responses"
	"github.com/anhpnguyen/edupay-backend/api/validators"
	"github.com/anhpnguyen/edupay-backend/internal/payments"
	"github.com/anhpnguyen/edupay-backend/pkg/db/models"
	pkgerrors "github.com/anhpnguyen/edupay-backend/pkg/errors"
	"github.com/anhpnguyen/edupay-backend/pkg/logger"
)

type createQRPaymentRequest struct {
	OrderID string `json:"order_id" validate:"required,uuid"`
	Amount  string `json:"amount"`
}

// CreateQRPayment opens a payment intent for a pending order and returns the
// stored payment with its QR payload.
func CreateQRPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		var payload createQRPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := uuid.Parse(payload.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		amount := decimal.Zero
		if payload.Amount != "" {
			amount, err = decimal.NewFromString(payload.Amount)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
				return
			}
		}

		payment, err := svc.CreateQRPayment(r.Context(), payments.CreateQRPaymentInput{
			OrderID: orderID,
			Amount:  amount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, payment)
	}
}

// PaymentWebhook ingests gateway callbacks. The rate limiter runs before this
// handler; the signature check happens here over the raw body, ahead of any
// decoding.
func PaymentWebhook(svc payments.Service, gateway payments.Gateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		if gateway == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateway unavailable"))
			return
		}

		raw, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := r.Header.Get("X-Gateway-Signature")
		if !gateway.VerifyCallback(raw, signature) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature"))
			return
		}

		var payload payments.CallbackPayload
		if err := validators.DecodeJSON(raw, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.HandleCallback(ctx, payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"payment_code":      result.Payment.Code,
			"status":            result.Payment.Status,
			"already_processed": result.AlreadyProcessed,
		})
	}
}

// ManualConfirmPayment applies a success transition without a gateway
// callback. The acting operator comes from the auth context.
func ManualConfirmPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return manualPaymentAction(svc, logg, payments.Service.ManualConfirm)
}

// ManualRefundPayment reverses a settled payment and reopens the order.
func ManualRefundPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return manualPaymentAction(svc, logg, payments.Service.ManualRefund)
}

func manualPaymentAction(
	svc payments.Service,
	logg *logger.Logger,
	action func(payments.Service, context.Context, payments.ManualActionInput) (*models.Payment, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		paymentID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment id"))
			return
		}

		actorID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		payment, err := action(svc, r.Context(), payments.ManualActionInput{
			PaymentID: paymentID,
			ActorID:   actorID,
			ActorRole: middleware.RoleFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, payment)
	}
}
