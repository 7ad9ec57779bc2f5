package repairs

import "github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"

// allowedTransitions is the full lifecycle graph. Completed, cancelled, and
// replacement_requested have no outgoing edges, and nothing reaches cancelled
// through the transition API: the status survives only for legacy rows.
var allowedTransitions = map[enums.RepairStatus][]enums.RepairStatus{
	enums.RepairStatusReceived: {
		enums.RepairStatusInProgress,
		enums.RepairStatusCompleted,
	},
	enums.RepairStatusInProgress: {
		enums.RepairStatusCompleted,
		enums.RepairStatusReplacementRequested,
	},
}

// CanTransition reports whether the lifecycle permits moving from one status
// to another.
func CanTransition(from, to enums.RepairStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
