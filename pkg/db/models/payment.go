package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment is an append-only record of money paid to a lab. There is no status
// machine: a recorded payment is a fact.
type Payment struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	LabID       uuid.UUID       `gorm:"column:lab_id;type:uuid;not null;index"`
	Amount      decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	PaymentDate time.Time       `gorm:"column:payment_date;type:date;not null"`
	Reference   *string         `gorm:"column:reference;type:text"`
	Notes       *string         `gorm:"column:notes;type:text"`
	CreatedBy   uuid.UUID       `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}
