package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/warrantyflow-sys/warrantyflow-sub001/api/responses"
	"github.com/warrantyflow-sys/warrantyflow-sub001/api/validators"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/warranties"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
	pkgerrors "github.com/warrantyflow-sys/warrantyflow-sub001/pkg/errors"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/logger"
)

type activateWarrantyRequest struct {
	DeviceID       string  `json:"device_id" validate:"required,uuid"`
	StoreID        *string `json:"store_id,omitempty" validate:"omitempty,uuid"`
	CustomerName   string  `json:"customer_name" validate:"required"`
	CustomerPhone  string  `json:"customer_phone" validate:"required"`
	ActivationDate *string `json:"activation_date,omitempty"`
}

type cancelWarrantyRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// ActivateWarranty starts coverage for a sold device. Stores activate their
// own sales; admins may activate on behalf of a store by passing store_id.
func ActivateWarranty(svc warranties.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "warranty service unavailable"))
			return
		}

		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body activateWarrantyRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		deviceID, err := uuid.Parse(body.DeviceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid device_id"))
			return
		}

		storeID := caller.UserID
		if body.StoreID != nil {
			if caller.Role != enums.UserRoleAdmin {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only admins may activate for another store"))
				return
			}
			parsed, err := uuid.Parse(*body.StoreID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid store_id"))
				return
			}
			storeID = parsed
		}

		activationDate := time.Now().UTC()
		if body.ActivationDate != nil {
			parsed, err := time.Parse(time.RFC3339, *body.ActivationDate)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "activation_date must be RFC 3339"))
				return
			}
			activationDate = parsed
		}

		warranty, err := svc.Activate(r.Context(), warranties.ActivateInput{
			DeviceID:       deviceID,
			StoreID:        storeID,
			CustomerName:   validators.SanitizeString(body.CustomerName, 120),
			CustomerPhone:  validators.SanitizeString(body.CustomerPhone, 32),
			ActivationDate: activationDate,
			ActorUserID:    caller.UserID,
			ActorRole:      caller.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, warranty)
	}
}

// CancelWarranty ends coverage before its natural expiry.
func CancelWarranty(svc warranties.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "warranty service unavailable"))
			return
		}

		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := pathUUID(r, "warrantyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body cancelWarrantyRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err = svc.Cancel(r.Context(), warranties.CancelInput{
			WarrantyID:  id,
			Reason:      validators.SanitizeString(body.Reason, 500),
			ActorUserID: caller.UserID,
			ActorRole:   caller.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "cancelled"})
	}
}

// DeviceCoverage reports whether a device is currently under warranty.
func DeviceCoverage(svc warranties.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "warranty service unavailable"))
			return
		}

		deviceID, err := pathUUID(r, "deviceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		coverage, err := svc.GetCoverage(r.Context(), deviceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, coverage)
	}
}

// ListStoreWarranties pages through warranties activated by the calling store.
// Admins may inspect any store via the storeId query parameter.
func ListStoreWarranties(svc warranties.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "warranty service unavailable"))
			return
		}

		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		storeID := caller.UserID
		if raw := strings.TrimSpace(r.URL.Query().Get("storeId")); raw != "" {
			if caller.Role != enums.UserRoleAdmin {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only admins may view another store"))
				return
			}
			parsed, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid storeId"))
				return
			}
			storeID = parsed
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListByStore(r.Context(), storeID, limit, strings.TrimSpace(r.URL.Query().Get("cursor")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
