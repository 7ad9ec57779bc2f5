package devices

import (
	"time"

	"github.com/google/uuid"

	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/db/models"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
)

// DeviceModelDTO is the catalog entry returned to clients.
type DeviceModelDTO struct {
	ID             uuid.UUID `json:"id"`
	ModelName      string    `json:"model_name"`
	Manufacturer   *string   `json:"manufacturer,omitempty"`
	WarrantyMonths int       `json:"warranty_months"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// DeviceDTO carries a device plus its catalog model.
type DeviceDTO struct {
	ID             uuid.UUID            `json:"id"`
	IMEI           string               `json:"imei"`
	IMEI2          *string              `json:"imei2,omitempty"`
	ModelID        uuid.UUID            `json:"model_id"`
	WarrantyStatus enums.WarrantyStatus `json:"warranty_status"`
	Model          *DeviceModelDTO      `json:"model,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// CreateModelDTO holds the data for a new catalog entry.
type CreateModelDTO struct {
	ModelName      string
	Manufacturer   *string
	WarrantyMonths int
}

// UpdateModelDTO carries the mutable catalog fields; nil means unchanged.
type UpdateModelDTO struct {
	Manufacturer   *string
	WarrantyMonths *int
	IsActive       *bool
}

func ModelFromDB(m *models.DeviceModel) *DeviceModelDTO {
	if m == nil {
		return nil
	}
	return &DeviceModelDTO{
		ID:             m.ID,
		ModelName:      m.ModelName,
		Manufacturer:   m.Manufacturer,
		WarrantyMonths: m.WarrantyMonths,
		IsActive:       m.IsActive,
		CreatedAt:      m.CreatedAt,
	}
}

func FromDB(d *models.Device) *DeviceDTO {
	if d == nil {
		return nil
	}
	return &DeviceDTO{
		ID:             d.ID,
		IMEI:           d.IMEI,
		IMEI2:          d.IMEI2,
		ModelID:        d.ModelID,
		WarrantyStatus: d.WarrantyStatus,
		Model:          ModelFromDB(d.Model),
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}
