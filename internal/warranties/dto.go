package warranties

import (
	"time"

	"github.com/google/uuid"

	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/db/models"
)

// WarrantyDTO is the transport shape for one coverage window.
type WarrantyDTO struct {
	ID             uuid.UUID  `json:"id"`
	DeviceID       uuid.UUID  `json:"device_id"`
	StoreID        uuid.UUID  `json:"store_id"`
	CustomerName   string     `json:"customer_name"`
	CustomerPhone  string     `json:"customer_phone"`
	ActivationDate time.Time  `json:"activation_date"`
	ExpiryDate     time.Time  `json:"expiry_date"`
	IsActive       bool       `json:"is_active"`
	DeactivatedAt  *time.Time `json:"deactivated_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// CoverageDTO reports whether a device is currently under warranty.
type CoverageDTO struct {
	DeviceID   uuid.UUID    `json:"device_id"`
	InWarranty bool         `json:"in_warranty"`
	Warranty   *WarrantyDTO `json:"warranty,omitempty"`
}

func FromModel(w *models.Warranty) *WarrantyDTO {
	if w == nil {
		return nil
	}
	return &WarrantyDTO{
		ID:             w.ID,
		DeviceID:       w.DeviceID,
		StoreID:        w.StoreID,
		CustomerName:   w.CustomerName,
		CustomerPhone:  w.CustomerPhone,
		ActivationDate: w.ActivationDate,
		ExpiryDate:     w.ExpiryDate,
		IsActive:       w.IsActive,
		DeactivatedAt:  w.DeactivatedAt,
		CreatedAt:      w.CreatedAt,
	}
}
