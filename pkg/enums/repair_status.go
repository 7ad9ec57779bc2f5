package enums

import "fmt"

// RepairStatus tracks the repair lifecycle.
type RepairStatus string

const (
	RepairStatusReceived             RepairStatus = "received"
	RepairStatusInProgress           RepairStatus = "in_progress"
	RepairStatusCompleted            RepairStatus = "completed"
	RepairStatusReplacementRequested RepairStatus = "replacement_requested"
	RepairStatusCancelled            RepairStatus = "cancelled"
)

var validRepairStatuses = []RepairStatus{
	RepairStatusReceived,
	RepairStatusInProgress,
	RepairStatusCompleted,
	RepairStatusReplacementRequested,
	RepairStatusCancelled,
}

// String implements fmt.Stringer.
func (r RepairStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RepairStatus.
func (r RepairStatus) IsValid() bool {
	for _, candidate := range validRepairStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status has no outgoing transitions.
func (r RepairStatus) IsTerminal() bool {
	switch r {
	case RepairStatusCompleted, RepairStatusReplacementRequested, RepairStatusCancelled:
		return true
	}
	return false
}

// ParseRepairStatus converts raw input into a RepairStatus.
func ParseRepairStatus(value string) (RepairStatus, error) {
	for _, candidate := range validRepairStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid repair status %q", value)
}
