package analytics

import "time"

// FactTimestamp selects the business timestamp for a settlement fact.
// The event's own time (completion, payment date) wins over the envelope time.
func FactTimestamp(eventTime time.Time, fallback time.Time) time.Time {
	if !eventTime.IsZero() {
		return eventTime.UTC()
	}
	return fallback.UTC()
}
