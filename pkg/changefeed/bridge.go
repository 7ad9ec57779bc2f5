package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/logger"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/outbox"
)

// aggregateTables maps domain event aggregates to the table names exposed on
// the change bus.
var aggregateTables = map[enums.OutboxAggregateType]string{
	enums.AggregateRepair:             "repairs",
	enums.AggregateReplacementRequest: "replacement_requests",
	enums.AggregateDevice:             "devices",
	enums.AggregateWarranty:           "warranties",
	enums.AggregatePayment:            "payments",
	enums.AggregateNotification:       "notifications",
}

// insertEvents are the event types that create their aggregate row; every
// other supported type is an update.
var insertEvents = map[enums.OutboxEventType]struct{}{
	enums.EventRepairCreated:        {},
	enums.EventReplacementRequested: {},
	enums.EventWarrantyActivated:    {},
	enums.EventPaymentRecorded:      {},
	enums.EventDeviceRegistered:     {},
}

// Bridge consumes the changefeed Pub/Sub subscription and republishes each
// domain event into the in-process hub so SSE streams and cache brokers see
// committed changes without polling.
type Bridge struct {
	sub  *gcppubsub.Subscriber
	hub  *Hub
	logg *logger.Logger
}

// NewBridge wires the subscription to the hub.
func NewBridge(sub *gcppubsub.Subscriber, hub *Hub, logg *logger.Logger) (*Bridge, error) {
	if sub == nil {
		return nil, errors.New("changefeed subscription required")
	}
	if hub == nil {
		return nil, errors.New("changefeed hub required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Bridge{sub: sub, hub: hub, logg: logg}, nil
}

// Run blocks consuming the subscription until the context is canceled.
func (b *Bridge) Run(ctx context.Context) error {
	return b.sub.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		evt, ok := b.translate(ctx, msg)
		if !ok {
			// Unsupported or malformed events never become deliverable.
			msg.Ack()
			return
		}
		b.hub.Publish(ctx, evt)
		msg.Ack()
	})
}

func (b *Bridge) translate(ctx context.Context, msg *gcppubsub.Message) (Event, bool) {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	aggregateType := enums.OutboxAggregateType(msg.Attributes["aggregate_type"])

	table, ok := aggregateTables[aggregateType]
	if !ok {
		return Event{}, false
	}

	rowID, err := uuid.Parse(msg.Attributes["aggregate_id"])
	if err != nil {
		logCtx := b.logg.WithField(ctx, "message_id", msg.ID)
		b.logg.Warn(logCtx, "changefeed message missing aggregate id")
		return Event{}, false
	}

	op := OpUpdate
	if _, ok := insertEvents[eventType]; ok {
		op = OpInsert
	}

	evt := Event{
		Table:  table,
		Op:     op,
		RowID:  rowID,
		Fields: map[string]string{"event_type": string(eventType)},
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err == nil {
		mergeScalarFields(evt.Fields, envelope.Data)
	}

	return evt, true
}

// mergeScalarFields flattens the top-level scalar values of the payload into
// filterable columns. Nested objects and arrays are skipped.
func mergeScalarFields(fields map[string]string, data json.RawMessage) {
	if len(data) == 0 {
		return
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return
	}
	for key, value := range raw {
		switch v := value.(type) {
		case string:
			fields[key] = v
		case float64:
			fields[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			fields[key] = strconv.FormatBool(v)
		case nil:
		default:
		}
	}
}

// TableForAggregate resolves the change bus table name for an aggregate, for
// callers that subscribe by aggregate rather than table.
func TableForAggregate(aggregate enums.OutboxAggregateType) (string, error) {
	table, ok := aggregateTables[aggregate]
	if !ok {
		return "", fmt.Errorf("no changefeed table for aggregate %q", aggregate)
	}
	return table, nil
}

// KnownTable reports whether the name identifies a table carried on the bus.
func KnownTable(name string) bool {
	for _, table := range aggregateTables {
		if table == strings.TrimSpace(name) {
			return true
		}
	}
	return false
}
