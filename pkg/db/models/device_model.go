package models

import (
	"time"

	"github.com/google/uuid"
)

// DeviceModel is the catalog entry devices reference; warranty duration is
// defined per model.
type DeviceModel struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ModelName      string    `gorm:"column:model_name;type:text;not null;uniqueIndex"`
	Manufacturer   *string   `gorm:"column:manufacturer;type:text"`
	WarrantyMonths int       `gorm:"column:warranty_months;not null;default:12"`
	IsActive       bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
