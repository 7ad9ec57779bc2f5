package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
)

// SettlementFactRow mirrors the lab_settlement_facts BigQuery schema. Earned
// facts come from completed repairs, paid facts from recorded payments.
type SettlementFactRow struct {
	EventID     string                   `bigquery:"event_id"`
	OccurredAt  time.Time                `bigquery:"occurred_at"`
	LabID       string                   `bigquery:"lab_id"`
	Type        enums.SettlementFactType `bigquery:"type"`
	AmountCents int64                    `bigquery:"amount_cents"`
	RepairID    *string                  `bigquery:"repair_id"`
	PaymentID   *string                  `bigquery:"payment_id"`
	DeviceID    *string                  `bigquery:"device_id"`
	Payload     cbigquery.NullJSON       `bigquery:"payload"`
}

// DomainEventRow mirrors the domain_events BigQuery schema. Every routed
// event lands here regardless of whether it also produced a settlement fact.
type DomainEventRow struct {
	EventID       string             `bigquery:"event_id"`
	EventType     string             `bigquery:"event_type"`
	AggregateType string             `bigquery:"aggregate_type"`
	AggregateID   string             `bigquery:"aggregate_id"`
	OccurredAt    time.Time          `bigquery:"occurred_at"`
	Payload       cbigquery.NullJSON `bigquery:"payload"`
}
