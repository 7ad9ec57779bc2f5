package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
)

// ReplacementRequest asks an admin to swap a device. Resolution happens
// exactly once; ResolvedBy/ResolvedAt are written atomically with the status.
type ReplacementRequest struct {
	ID          uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	DeviceID    uuid.UUID           `gorm:"column:device_id;type:uuid;not null;index"`
	RepairID    *uuid.UUID          `gorm:"column:repair_id;type:uuid"`
	RequesterID uuid.UUID           `gorm:"column:requester_id;type:uuid;not null;index"`
	Status      enums.RequestStatus `gorm:"column:status;type:request_status;not null;default:'pending'"`
	Reason      string              `gorm:"column:reason;type:text;not null"`
	AdminNotes  *string             `gorm:"column:admin_notes;type:text"`
	ResolvedBy  *uuid.UUID          `gorm:"column:resolved_by;type:uuid"`
	ResolvedAt  *time.Time          `gorm:"column:resolved_at"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`

	Device *Device `gorm:"foreignKey:DeviceID"`
	Repair *Repair `gorm:"foreignKey:RepairID"`
}
