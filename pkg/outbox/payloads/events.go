package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
)

// RepairCreatedEvent signals a device was checked in for repair.
type RepairCreatedEvent struct {
	RepairID  uuid.UUID       `json:"repair_id"`
	DeviceID  uuid.UUID       `json:"device_id"`
	FaultType enums.FaultType `json:"fault_type"`
	CreatedBy uuid.UUID       `json:"created_by"`
}

// RepairStatusChangedEvent is emitted on every lifecycle transition.
type RepairStatusChangedEvent struct {
	RepairID   uuid.UUID          `json:"repair_id"`
	DeviceID   uuid.UUID          `json:"device_id"`
	LabID      *uuid.UUID         `json:"lab_id,omitempty"`
	FromStatus enums.RepairStatus `json:"from_status"`
	ToStatus   enums.RepairStatus `json:"to_status"`
	ChangedBy  uuid.UUID          `json:"changed_by"`
}

// RepairCompletedEvent carries the finalized cost that feeds lab balances.
type RepairCompletedEvent struct {
	RepairID    uuid.UUID       `json:"repair_id"`
	DeviceID    uuid.UUID       `json:"device_id"`
	LabID       uuid.UUID       `json:"lab_id"`
	Cost        decimal.Decimal `json:"cost"`
	CompletedAt time.Time       `json:"completed_at"`
}

// ReplacementRequestedEvent asks admins to review a swap.
type ReplacementRequestedEvent struct {
	RequestID   uuid.UUID  `json:"request_id"`
	DeviceID    uuid.UUID  `json:"device_id"`
	RepairID    *uuid.UUID `json:"repair_id,omitempty"`
	RequesterID uuid.UUID  `json:"requester_id"`
	Reason      string     `json:"reason"`
}

// ReplacementResolvedEvent reports the admin decision on a request.
type ReplacementResolvedEvent struct {
	RequestID   uuid.UUID           `json:"request_id"`
	DeviceID    uuid.UUID           `json:"device_id"`
	RequesterID uuid.UUID           `json:"requester_id"`
	Status      enums.RequestStatus `json:"status"`
	AdminNotes  string              `json:"admin_notes,omitempty"`
	ResolvedBy  uuid.UUID           `json:"resolved_by"`
	ResolvedAt  time.Time           `json:"resolved_at"`
}

// ReplacementStaleEvent flags a pending request nobody has acted on.
type ReplacementStaleEvent struct {
	RequestID    uuid.UUID `json:"request_id"`
	DeviceID     uuid.UUID `json:"device_id"`
	RequesterID  uuid.UUID `json:"requester_id"`
	PendingSince time.Time `json:"pending_since"`
	PendingHours int       `json:"pending_hours"`
}

// WarrantyActivatedEvent marks a device's coverage start.
type WarrantyActivatedEvent struct {
	WarrantyID     uuid.UUID `json:"warranty_id"`
	DeviceID       uuid.UUID `json:"device_id"`
	StoreID        uuid.UUID `json:"store_id"`
	ActivationDate time.Time `json:"activation_date"`
	ExpiryDate     time.Time `json:"expiry_date"`
}

// WarrantyCancelledEvent is emitted when coverage is deactivated early.
type WarrantyCancelledEvent struct {
	WarrantyID    uuid.UUID `json:"warranty_id"`
	DeviceID      uuid.UUID `json:"device_id"`
	DeactivatedAt time.Time `json:"deactivated_at"`
	Reason        string    `json:"reason,omitempty"`
}

// PaymentRecordedEvent reports money paid out to a lab.
type PaymentRecordedEvent struct {
	PaymentID   uuid.UUID       `json:"payment_id"`
	LabID       uuid.UUID       `json:"lab_id"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate time.Time       `json:"payment_date"`
	RecordedBy  uuid.UUID       `json:"recorded_by"`
}

// LedgerDriftDetectedEvent reports a lab balance that moved without a
// matching repair_completed or payment_recorded event. Subscribers treat it
// as an invalidation and refetch the balance.
type LedgerDriftDetectedEvent struct {
	LabID       uuid.UUID       `json:"lab_id"`
	TotalEarned decimal.Decimal `json:"total_earned"`
	TotalPaid   decimal.Decimal `json:"total_paid"`
	Balance     decimal.Decimal `json:"balance"`
	DetectedAt  time.Time       `json:"detected_at"`
}

// NotificationDriftDetectedEvent reports an unread counter that changed since
// the last reconciliation sweep.
type NotificationDriftDetectedEvent struct {
	UserID      uuid.UUID `json:"user_id"`
	UnreadCount int64     `json:"unread_count"`
	DetectedAt  time.Time `json:"detected_at"`
}

// DeviceRegisteredEvent signals a new device entered the system.
type DeviceRegisteredEvent struct {
	DeviceID uuid.UUID `json:"device_id"`
	IMEI     string    `json:"imei"`
	ModelID  uuid.UUID `json:"model_id"`
}
