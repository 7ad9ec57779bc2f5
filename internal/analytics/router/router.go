package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/analytics/types"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/logger"
	outboxpayloads "github.com/warrantyflow-sys/warrantyflow-sub001/pkg/outbox/payloads"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer delivers BigQuery rows produced by analytics handlers.
type Writer interface {
	InsertDomainEvent(ctx context.Context, row types.DomainEventRow) error
	InsertFact(ctx context.Context, row types.SettlementFactRow) error
}

// Handler receives an envelope plus a decoded event payload.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

type handlerEntry struct {
	factory func() any
	handler Handler
}

// Router dispatches analytics envelopes to the configured handler per event type.
type Router struct {
	handlers map[enums.OutboxEventType]handlerEntry
	logg     *logger.Logger
}

// NewRouter wires the default handlers and allows overrides for specific events.
func NewRouter(writer Writer, logg *logger.Logger, overrides map[enums.OutboxEventType]Handler) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	entries := map[enums.OutboxEventType]handlerEntry{
		enums.EventRepairCompleted: {
			factory: func() any { return &outboxpayloads.RepairCompletedEvent{} },
			handler: newRepairCompletedHandler(writer, logg),
		},
		enums.EventPaymentRecorded: {
			factory: func() any { return &outboxpayloads.PaymentRecordedEvent{} },
			handler: newPaymentRecordedHandler(writer, logg),
		},
		enums.EventReplacementResolved: {
			factory: func() any { return &outboxpayloads.ReplacementResolvedEvent{} },
			handler: newArchiveHandler(writer, logg),
		},
		enums.EventWarrantyActivated: {
			factory: func() any { return &outboxpayloads.WarrantyActivatedEvent{} },
			handler: newArchiveHandler(writer, logg),
		},
		enums.EventWarrantyCancelled: {
			factory: func() any { return &outboxpayloads.WarrantyCancelledEvent{} },
			handler: newArchiveHandler(writer, logg),
		},
		enums.EventDeviceRegistered: {
			factory: func() any { return &outboxpayloads.DeviceRegisteredEvent{} },
			handler: newArchiveHandler(writer, logg),
		},
	}

	for event, custom := range overrides {
		entry, ok := entries[event]
		if !ok || custom == nil {
			continue
		}
		entry.handler = custom
		entries[event] = entry
	}

	return &Router{
		handlers: entries,
		logg:     logg,
	}, nil
}

// Handle dispatches the incoming envelope to the configured handler.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	entry, ok := r.handlers[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	payload := entry.factory()
	if len(envelope.Payload) == 0 {
		return fmt.Errorf("empty payload for %s", envelope.EventType)
	}
	if err := json.Unmarshal(envelope.Payload, payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", envelope.EventType, err)
	}

	return entry.handler.Handle(ctx, envelope, payload)
}
