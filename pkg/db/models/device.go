package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
)

// Device identifies a tracked handset. WarrantyStatus is only ever written by
// the warranty and replacement lifecycle services; once `replaced` the row is
// immutable.
type Device struct {
	ID             uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	IMEI           string               `gorm:"column:imei;type:text;not null;uniqueIndex"`
	IMEI2          *string              `gorm:"column:imei2;type:text"`
	ModelID        uuid.UUID            `gorm:"column:model_id;type:uuid;not null"`
	WarrantyStatus enums.WarrantyStatus `gorm:"column:warranty_status;type:warranty_status;not null;default:'new'"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`

	Model *DeviceModel `gorm:"foreignKey:ModelID"`
}
