package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
)

// Repair tracks one device repair through its lifecycle. Cost and CompletedAt
// are stamped by the completion transition and immutable afterward.
type Repair struct {
	ID                      uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	DeviceID                uuid.UUID          `gorm:"column:device_id;type:uuid;not null;index"`
	LabID                   *uuid.UUID         `gorm:"column:lab_id;type:uuid;index"`
	WarrantyID              *uuid.UUID         `gorm:"column:warranty_id;type:uuid"`
	RepairTypeID            *uuid.UUID         `gorm:"column:repair_type_id;type:uuid"`
	Status                  enums.RepairStatus `gorm:"column:status;type:repair_status;not null;default:'received'"`
	FaultType               enums.FaultType    `gorm:"column:fault_type;type:fault_type;not null"`
	FaultDescription        *string            `gorm:"column:fault_description;type:text"`
	CustomRepairDescription *string            `gorm:"column:custom_repair_description;type:text"`
	CustomRepairPrice       *decimal.Decimal   `gorm:"column:custom_repair_price;type:numeric(12,2)"`
	Cost                    *decimal.Decimal   `gorm:"column:cost;type:numeric(12,2)"`
	CustomerName            string             `gorm:"column:customer_name;type:text;not null"`
	CustomerPhone           string             `gorm:"column:customer_phone;type:text;not null"`
	CreatedBy               uuid.UUID          `gorm:"column:created_by;type:uuid;not null"`
	CompletedAt             *time.Time         `gorm:"column:completed_at"`
	CreatedAt               time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time          `gorm:"column:updated_at;autoUpdateTime"`

	Device     *Device     `gorm:"foreignKey:DeviceID"`
	RepairType *RepairType `gorm:"foreignKey:RepairTypeID"`
}
