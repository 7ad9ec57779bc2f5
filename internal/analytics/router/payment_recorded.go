package router

import (
	"context"
	"fmt"

	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/analytics/types"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/logger"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/outbox/payloads"
)

type paymentRecordedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newPaymentRecordedHandler(writer Writer, logg *logger.Logger) Handler {
	return &paymentRecordedHandler{writer: writer, logg: logg}
}

func (h *paymentRecordedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.PaymentRecordedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for payment_recorded")
	}
	fields := map[string]any{
		"event_type":   envelope.EventType,
		"payment_id":   event.PaymentID,
		"lab_id":       event.LabID,
		"amount":       event.Amount,
		"payment_date": event.PaymentDate,
	}
	logCtx := h.logg.WithFields(ctx, fields)

	row, err := buildFactRow(envelope, enums.SettlementFactPaid, event.LabID.String(), event.Amount, event.PaymentDate, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build settlement fact row", err)
		return err
	}
	row.PaymentID = stringPtr(event.PaymentID.String())

	if err := h.writer.InsertFact(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert settlement fact row", err)
		return err
	}

	domainRow, err := buildDomainRow(envelope, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build domain event row", err)
		return err
	}
	if err := h.writer.InsertDomainEvent(logCtx, domainRow); err != nil {
		h.logg.Error(logCtx, "failed to insert domain event row", err)
		return err
	}

	h.logg.Info(logCtx, "payment_recorded handler inserted settlement rows")
	return nil
}
