package models

import (
	"time"

	"github.com/google/uuid"
)

// Warranty records a device's coverage window. A device has at most one
// active warranty at a time.
type Warranty struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	DeviceID       uuid.UUID  `gorm:"column:device_id;type:uuid;not null;index"`
	StoreID        uuid.UUID  `gorm:"column:store_id;type:uuid;not null;index"`
	CustomerName   string     `gorm:"column:customer_name;type:text;not null"`
	CustomerPhone  string     `gorm:"column:customer_phone;type:text;not null"`
	ActivationDate time.Time  `gorm:"column:activation_date;type:date;not null"`
	ExpiryDate     time.Time  `gorm:"column:expiry_date;type:date;not null"`
	IsActive       bool       `gorm:"column:is_active;not null;default:true"`
	DeactivatedAt  *time.Time `gorm:"column:deactivated_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}
