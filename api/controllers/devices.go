package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/warrantyflow-sys/warrantyflow-sub001/api/responses"
	"github.com/warrantyflow-sys/warrantyflow-sub001/api/validators"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/devices"
	pkgerrors "github.com/warrantyflow-sys/warrantyflow-sub001/pkg/errors"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/logger"
)

type registerDeviceRequest struct {
	IMEI    string  `json:"imei" validate:"required"`
	IMEI2   *string `json:"imei2,omitempty"`
	ModelID string  `json:"model_id" validate:"required,uuid"`
}

// RegisterDevice adds a sold device to the registry.
func RegisterDevice(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "device service unavailable"))
			return
		}

		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body registerDeviceRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		modelID, err := uuid.Parse(body.ModelID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid model_id"))
			return
		}

		device, err := svc.RegisterDevice(r.Context(), devices.RegisterDeviceInput{
			IMEI:        body.IMEI,
			IMEI2:       body.IMEI2,
			ModelID:     modelID,
			ActorUserID: caller.UserID,
			ActorRole:   caller.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, device)
	}
}

// GetDevice returns one device by id.
func GetDevice(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "device service unavailable"))
			return
		}

		id, err := pathUUID(r, "deviceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		device, err := svc.GetDevice(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, device)
	}
}

// LookupDeviceByIMEI resolves a device from either of its IMEI slots.
func LookupDeviceByIMEI(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "device service unavailable"))
			return
		}

		imei := strings.TrimSpace(r.URL.Query().Get("imei"))
		if imei == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "imei query parameter required"))
			return
		}

		device, err := svc.LookupByIMEI(r.Context(), imei)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, device)
	}
}

// ListDevices returns one page of registered devices.
func ListDevices(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "device service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListDevices(r.Context(), limit, strings.TrimSpace(r.URL.Query().Get("cursor")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type createModelRequest struct {
	ModelName      string  `json:"model_name" validate:"required"`
	Manufacturer   *string `json:"manufacturer,omitempty"`
	WarrantyMonths int     `json:"warranty_months" validate:"required,min=1"`
}

type updateModelRequest struct {
	Manufacturer   *string `json:"manufacturer,omitempty"`
	WarrantyMonths *int    `json:"warranty_months,omitempty" validate:"omitempty,min=1"`
	IsActive       *bool   `json:"is_active,omitempty"`
}

// CreateDeviceModel adds a catalog entry.
func CreateDeviceModel(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "device service unavailable"))
			return
		}

		var body createModelRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		model, err := svc.CreateModel(r.Context(), devices.CreateModelDTO{
			ModelName:      body.ModelName,
			Manufacturer:   body.Manufacturer,
			WarrantyMonths: body.WarrantyMonths,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, model)
	}
}

// ListDeviceModels returns the catalog, active entries only by default.
func ListDeviceModels(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "device service unavailable"))
			return
		}

		includeInactive := false
		if raw := strings.TrimSpace(r.URL.Query().Get("includeInactive")); raw != "" {
			value, err := strconv.ParseBool(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid includeInactive value"))
				return
			}
			includeInactive = value
		}

		models, err := svc.ListModels(r.Context(), includeInactive)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, models)
	}
}

// UpdateDeviceModel patches a catalog entry.
func UpdateDeviceModel(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "device service unavailable"))
			return
		}

		id, err := pathUUID(r, "modelId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateModelRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		model, err := svc.UpdateModel(r.Context(), id, devices.UpdateModelDTO{
			Manufacturer:   body.Manufacturer,
			WarrantyMonths: body.WarrantyMonths,
			IsActive:       body.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, model)
	}
}
