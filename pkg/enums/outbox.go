package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateRepair             OutboxAggregateType = "repair"
	AggregateReplacementRequest OutboxAggregateType = "replacement_request"
	AggregateDevice             OutboxAggregateType = "device"
	AggregateWarranty           OutboxAggregateType = "warranty"
	AggregatePayment            OutboxAggregateType = "payment"
	AggregateNotification       OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateRepair,
	AggregateReplacementRequest,
	AggregateDevice,
	AggregateWarranty,
	AggregatePayment,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventRepairCreated        OutboxEventType = "repair_created"
	EventRepairStatusChanged  OutboxEventType = "repair_status_changed"
	EventRepairCompleted      OutboxEventType = "repair_completed"
	EventReplacementRequested OutboxEventType = "replacement_requested"
	EventReplacementResolved  OutboxEventType = "replacement_resolved"
	EventReplacementStale     OutboxEventType = "replacement_stale"
	EventWarrantyActivated    OutboxEventType = "warranty_activated"
	EventWarrantyCancelled    OutboxEventType = "warranty_cancelled"
	EventPaymentRecorded      OutboxEventType = "payment_recorded"
	EventDeviceRegistered     OutboxEventType = "device_registered"

	// Synthetic events emitted by the reconciliation sweep when derived
	// state moved without a matching domain event.
	EventLedgerDriftDetected       OutboxEventType = "ledger_drift_detected"
	EventNotificationDriftDetected OutboxEventType = "notification_drift_detected"
)

var validOutboxEventTypes = []OutboxEventType{
	EventRepairCreated,
	EventRepairStatusChanged,
	EventRepairCompleted,
	EventReplacementRequested,
	EventReplacementResolved,
	EventReplacementStale,
	EventWarrantyActivated,
	EventWarrantyCancelled,
	EventPaymentRecorded,
	EventDeviceRegistered,
	EventLedgerDriftDetected,
	EventNotificationDriftDetected,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
