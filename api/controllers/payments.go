package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warrantyflow-sys/warrantyflow-sub001/api/responses"
	"github.com/warrantyflow-sys/warrantyflow-sub001/api/validators"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/payments"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
	pkgerrors "github.com/warrantyflow-sys/warrantyflow-sub001/pkg/errors"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/logger"
)

type recordPaymentRequest struct {
	LabID       string  `json:"lab_id" validate:"required,uuid"`
	Amount      string  `json:"amount" validate:"required"`
	PaymentDate *string `json:"payment_date,omitempty"`
	Reference   *string `json:"reference,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

// RecordPayment logs a settlement payment made to a lab.
func RecordPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body recordPaymentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		labID, err := uuid.Parse(body.LabID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid lab_id"))
			return
		}
		amount, err := decimal.NewFromString(body.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
			return
		}

		paymentDate := time.Now().UTC()
		if body.PaymentDate != nil {
			parsed, err := time.Parse(time.RFC3339, *body.PaymentDate)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payment_date must be RFC 3339"))
				return
			}
			paymentDate = parsed
		}

		payment, err := svc.Record(r.Context(), payments.RecordInput{
			LabID:       labID,
			Amount:      amount,
			PaymentDate: paymentDate,
			Reference:   body.Reference,
			Notes:       body.Notes,
			ActorUserID: caller.UserID,
			ActorRole:   caller.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, payment)
	}
}

// ListLabPayments pages the payments recorded for a lab. Labs see their own
// history; admins may inspect any lab via the path id.
func ListLabPayments(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		labID, err := pathUUID(r, "labId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if caller.Role != enums.UserRoleAdmin && caller.UserID != labID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "labs may only view their own payments"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListByLab(r.Context(), labID, limit, strings.TrimSpace(r.URL.Query().Get("cursor")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
