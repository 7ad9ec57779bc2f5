package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warrantyflow-sys/warrantyflow-sub001/api/responses"
	"github.com/warrantyflow-sys/warrantyflow-sub001/api/validators"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/repairs"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
	pkgerrors "github.com/warrantyflow-sys/warrantyflow-sub001/pkg/errors"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/logger"
)

type createRepairRequest struct {
	DeviceID                string  `json:"device_id" validate:"required,uuid"`
	LabID                   *string `json:"lab_id,omitempty" validate:"omitempty,uuid"`
	RepairTypeID            *string `json:"repair_type_id,omitempty" validate:"omitempty,uuid"`
	FaultType               string  `json:"fault_type" validate:"required"`
	FaultDescription        *string `json:"fault_description,omitempty"`
	CustomRepairDescription *string `json:"custom_repair_description,omitempty"`
	CustomRepairPrice       *string `json:"custom_repair_price,omitempty"`
	CustomerName            string  `json:"customer_name" validate:"required"`
	CustomerPhone           string  `json:"customer_phone" validate:"required"`
}

type transitionRepairRequest struct {
	ToStatus string  `json:"to_status" validate:"required"`
	Cost     *string `json:"cost,omitempty"`
}

func parseOptionalUUID(raw *string, field string) (*uuid.UUID, error) {
	if raw == nil {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field)
	}
	return &id, nil
}

// CreateRepair opens a repair ticket for a device.
func CreateRepair(svc repairs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "repair service unavailable"))
			return
		}

		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createRepairRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		deviceID, err := uuid.Parse(body.DeviceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid device_id"))
			return
		}
		labID, err := parseOptionalUUID(body.LabID, "lab_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		repairTypeID, err := parseOptionalUUID(body.RepairTypeID, "repair_type_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		faultType, err := enums.ParseFaultType(body.FaultType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid fault_type"))
			return
		}

		repair, err := svc.Create(r.Context(), repairs.CreateInput{
			DeviceID:                deviceID,
			LabID:                   labID,
			RepairTypeID:            repairTypeID,
			FaultType:               faultType,
			FaultDescription:        body.FaultDescription,
			CustomRepairDescription: body.CustomRepairDescription,
			CustomRepairPrice:       body.CustomRepairPrice,
			CustomerName:            validators.SanitizeString(body.CustomerName, 120),
			CustomerPhone:           validators.SanitizeString(body.CustomerPhone, 32),
			ActorUserID:             caller.UserID,
			ActorRole:               caller.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, repair)
	}
}

// ClaimRepair assigns an unassigned repair to the calling lab.
func ClaimRepair(svc repairs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "repair service unavailable"))
			return
		}

		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := pathUUID(r, "repairId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		repair, err := svc.Claim(r.Context(), repairs.ClaimInput{
			RepairID:    id,
			ActorUserID: caller.UserID,
			ActorRole:   caller.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, repair)
	}
}

// TransitionRepair moves a repair along its lifecycle. Cost is accepted only
// on the completed transition.
func TransitionRepair(svc repairs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "repair service unavailable"))
			return
		}

		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := pathUUID(r, "repairId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body transitionRepairRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		toStatus, err := enums.ParseRepairStatus(body.ToStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid to_status"))
			return
		}

		var cost *decimal.Decimal
		if body.Cost != nil {
			parsed, err := decimal.NewFromString(*body.Cost)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cost"))
				return
			}
			cost = &parsed
		}

		repair, err := svc.Transition(r.Context(), repairs.TransitionInput{
			RepairID:    id,
			ToStatus:    toStatus,
			Cost:        cost,
			ActorUserID: caller.UserID,
			ActorRole:   caller.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, repair)
	}
}

// GetRepair returns one repair by id.
func GetRepair(svc repairs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "repair service unavailable"))
			return
		}

		id, err := pathUUID(r, "repairId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		repair, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, repair)
	}
}

// ListRepairs pages repairs, optionally narrowed by lab, device, or status.
func ListRepairs(svc repairs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "repair service unavailable"))
			return
		}

		var filter repairs.ListFilter
		if raw := strings.TrimSpace(r.URL.Query().Get("labId")); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid labId"))
				return
			}
			filter.LabID = &id
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("deviceId")); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid deviceId"))
				return
			}
			filter.DeviceID = &id
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseRepairStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			filter.Status = &status
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), repairs.ListInput{
			Filter: filter,
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
