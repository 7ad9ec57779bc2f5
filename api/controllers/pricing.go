package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warrantyflow-sys/warrantyflow-sub001/api/responses"
	"github.com/warrantyflow-sys/warrantyflow-sub001/api/validators"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/pricing"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
	pkgerrors "github.com/warrantyflow-sys/warrantyflow-sub001/pkg/errors"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/logger"
)

type createRepairTypeRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description,omitempty"`
}

type updateRepairTypeRequest struct {
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

type setLabPriceRequest struct {
	RepairTypeID  string  `json:"repair_type_id" validate:"required,uuid"`
	Price         string  `json:"price" validate:"required"`
	ExpectedPrice *string `json:"expected_price,omitempty"`
}

// CreateRepairType adds an entry to the repair catalog.
func CreateRepairType(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pricing service unavailable"))
			return
		}

		var body createRepairTypeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		repairType, err := svc.CreateRepairType(r.Context(), pricing.CreateRepairTypeDTO{
			Name:        body.Name,
			Description: body.Description,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, repairType)
	}
}

// ListRepairTypes returns the repair catalog, active entries only by default.
func ListRepairTypes(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pricing service unavailable"))
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

		types, err := svc.ListRepairTypes(r.Context(), includeInactive)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, types)
	}
}

// UpdateRepairType patches a repair catalog entry.
func UpdateRepairType(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pricing service unavailable"))
			return
		}

		id, err := pathUUID(r, "repairTypeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateRepairTypeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		repairType, err := svc.UpdateRepairType(r.Context(), id, pricing.UpdateRepairTypeDTO{
			Description: body.Description,
			IsActive:    body.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, repairType)
	}
}

// SetLabPrice binds a price to one lab and repair type pair. The optional
// expected_price guards against concurrent edits.
func SetLabPrice(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pricing service unavailable"))
			return
		}

		labID, err := pathUUID(r, "labId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body setLabPriceRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		repairTypeID, err := uuid.Parse(body.RepairTypeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid repair_type_id"))
			return
		}
		price, err := decimal.NewFromString(body.Price)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price"))
			return
		}
		var expected *decimal.Decimal
		if body.ExpectedPrice != nil {
			parsed, err := decimal.NewFromString(*body.ExpectedPrice)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid expected_price"))
				return
			}
			expected = &parsed
		}

		labPrice, err := svc.SetLabPrice(r.Context(), pricing.SetLabPriceDTO{
			LabID:         labID,
			RepairTypeID:  repairTypeID,
			Price:         price,
			ExpectedPrice: expected,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, labPrice)
	}
}

// ListLabPrices returns the price card for a lab. Labs see their own card;
// admins may inspect any lab.
func ListLabPrices(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pricing service unavailable"))
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
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "labs may only view their own prices"))
			return
		}

		prices, err := svc.ListLabPrices(r.Context(), labID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, prices)
	}
}
