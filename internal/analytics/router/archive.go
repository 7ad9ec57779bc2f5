package router

import (
	"context"

	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/analytics/types"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/logger"
)

// archiveHandler records events that carry no settlement amount. They still
// land in the domain event table for audit queries.
type archiveHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newArchiveHandler(writer Writer, logg *logger.Logger) Handler {
	return &archiveHandler{writer: writer, logg: logg}
}

func (h *archiveHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type":   envelope.EventType,
		"aggregate_id": envelope.AggregateID,
	})

	row, err := buildDomainRow(envelope, payload)
	if err != nil {
		h.logg.Error(logCtx, "failed to build domain event row", err)
		return err
	}
	if err := h.writer.InsertDomainEvent(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert domain event row", err)
		return err
	}

	h.logg.Info(logCtx, "event archived")
	return nil
}
