package repairs

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/db/models"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
)

// RepairDTO is the transport shape for one repair.
type RepairDTO struct {
	ID                      uuid.UUID          `json:"id"`
	DeviceID                uuid.UUID          `json:"device_id"`
	DeviceIMEI              string             `json:"device_imei,omitempty"`
	LabID                   *uuid.UUID         `json:"lab_id,omitempty"`
	WarrantyID              *uuid.UUID         `json:"warranty_id,omitempty"`
	RepairTypeID            *uuid.UUID         `json:"repair_type_id,omitempty"`
	RepairTypeName          *string            `json:"repair_type_name,omitempty"`
	Status                  enums.RepairStatus `json:"status"`
	FaultType               enums.FaultType    `json:"fault_type"`
	FaultDescription        *string            `json:"fault_description,omitempty"`
	CustomRepairDescription *string            `json:"custom_repair_description,omitempty"`
	CustomRepairPrice       *decimal.Decimal   `json:"custom_repair_price,omitempty"`
	Cost                    *decimal.Decimal   `json:"cost,omitempty"`
	CustomerName            string             `json:"customer_name"`
	CustomerPhone           string             `json:"customer_phone"`
	CreatedBy               uuid.UUID          `json:"created_by"`
	CompletedAt             *time.Time         `json:"completed_at,omitempty"`
	CreatedAt               time.Time          `json:"created_at"`
	UpdatedAt               time.Time          `json:"updated_at"`
}

func FromModel(r *models.Repair) *RepairDTO {
	if r == nil {
		return nil
	}
	dto := &RepairDTO{
		ID:                      r.ID,
		DeviceID:                r.DeviceID,
		LabID:                   r.LabID,
		WarrantyID:              r.WarrantyID,
		RepairTypeID:            r.RepairTypeID,
		Status:                  r.Status,
		FaultType:               r.FaultType,
		FaultDescription:        r.FaultDescription,
		CustomRepairDescription: r.CustomRepairDescription,
		CustomRepairPrice:       r.CustomRepairPrice,
		Cost:                    r.Cost,
		CustomerName:            r.CustomerName,
		CustomerPhone:           r.CustomerPhone,
		CreatedBy:               r.CreatedBy,
		CompletedAt:             r.CompletedAt,
		CreatedAt:               r.CreatedAt,
		UpdatedAt:               r.UpdatedAt,
	}
	if r.Device != nil {
		dto.DeviceIMEI = r.Device.IMEI
	}
	if r.RepairType != nil {
		name := r.RepairType.Name
		dto.RepairTypeName = &name
	}
	return dto
}
