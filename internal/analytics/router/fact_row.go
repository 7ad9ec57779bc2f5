package router

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/analytics"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/analytics/types"
	analyticswriter "github.com/warrantyflow-sys/warrantyflow-sub001/internal/analytics/writer"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
)

func buildFactRow(envelope types.Envelope, factType enums.SettlementFactType, labID string, amount decimal.Decimal, occurred time.Time, payload any) (types.SettlementFactRow, error) {
	occurred = analytics.FactTimestamp(occurred, envelope.OccurredAt)

	payloadJSON, err := analyticswriter.EncodeJSON(payload)
	if err != nil {
		return types.SettlementFactRow{}, fmt.Errorf("encode payload json: %w", err)
	}

	return types.SettlementFactRow{
		EventID:     envelope.EventID,
		OccurredAt:  occurred,
		LabID:       labID,
		Type:        factType,
		AmountCents: amount.Shift(2).IntPart(),
		Payload:     payloadJSON,
	}, nil
}

func buildDomainRow(envelope types.Envelope, payload any) (types.DomainEventRow, error) {
	payloadJSON, err := analyticswriter.EncodeJSON(payload)
	if err != nil {
		return types.DomainEventRow{}, fmt.Errorf("encode payload json: %w", err)
	}

	return types.DomainEventRow{
		EventID:       envelope.EventID,
		EventType:     string(envelope.EventType),
		AggregateType: string(envelope.AggregateType),
		AggregateID:   envelope.AggregateID,
		OccurredAt:    envelope.OccurredAt.UTC(),
		Payload:       payloadJSON,
	}, nil
}
