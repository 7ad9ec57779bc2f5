package router

import (
	"context"
	"fmt"

	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/analytics/types"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/logger"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/outbox/payloads"
)

type repairCompletedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newRepairCompletedHandler(writer Writer, logg *logger.Logger) Handler {
	return &repairCompletedHandler{writer: writer, logg: logg}
}

func (h *repairCompletedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.RepairCompletedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for repair_completed")
	}
	fields := map[string]any{
		"event_type":   envelope.EventType,
		"repair_id":    event.RepairID,
		"lab_id":       event.LabID,
		"cost":         event.Cost,
		"completed_at": event.CompletedAt,
	}
	logCtx := h.logg.WithFields(ctx, fields)

	row, err := buildFactRow(envelope, enums.SettlementFactEarned, event.LabID.String(), event.Cost, event.CompletedAt, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build settlement fact row", err)
		return err
	}
	row.RepairID = stringPtr(event.RepairID.String())
	row.DeviceID = stringPtr(event.DeviceID.String())

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

	h.logg.Info(logCtx, "repair_completed handler inserted settlement rows")
	return nil
}
