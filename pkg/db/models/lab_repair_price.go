package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LabRepairPrice is a lab's agreed price for one repair type. One active row
// per (lab, repair type).
type LabRepairPrice struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	LabID        uuid.UUID       `gorm:"column:lab_id;type:uuid;not null;uniqueIndex:ux_lab_repair_prices_lab_type"`
	RepairTypeID uuid.UUID       `gorm:"column:repair_type_id;type:uuid;not null;uniqueIndex:ux_lab_repair_prices_lab_type"`
	Price        decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	IsActive     bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
