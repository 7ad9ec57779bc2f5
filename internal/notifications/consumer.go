package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/db/models"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/logger"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/outbox"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/outbox/idempotency"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/outbox/payloads"
)

const domainNotificationConsumer = "domain-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type adminDirectory interface {
	ListByRole(ctx context.Context, role enums.UserRole) ([]models.User, error)
}

// Consumer watches domain events and fans them out as in-app notifications.
// Replacement requests go to every admin; decisions and payments go to the
// user they concern.
type Consumer struct {
	repo         repository
	users        adminDirectory
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds a domain notification consumer.
func NewConsumer(repo repository, users adminDirectory, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("user directory required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		users:        users,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	fields := map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	}
	logCtx := c.logg.WithFields(ctx, fields)

	handler := c.handlerFor(enums.OutboxEventType(eventType))
	if handler == nil {
		c.logg.Info(logCtx, "skipping unhandled event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, domainNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := handler(ctx, envelope.Data, logCtx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, domainNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}

type eventHandler func(ctx context.Context, data json.RawMessage, logCtx context.Context) error

func (c *Consumer) handlerFor(eventType enums.OutboxEventType) eventHandler {
	switch eventType {
	case enums.EventReplacementRequested:
		return c.handleReplacementRequested
	case enums.EventReplacementResolved:
		return c.handleReplacementResolved
	case enums.EventReplacementStale:
		return c.handleReplacementStale
	case enums.EventPaymentRecorded:
		return c.handlePaymentRecorded
	default:
		return nil
	}
}

func (c *Consumer) handleReplacementRequested(ctx context.Context, data json.RawMessage, logCtx context.Context) error {
	var payload payloads.ReplacementRequestedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	if payload.RequestID == uuid.Nil {
		return fmt.Errorf("request id missing")
	}

	admins, err := c.users.ListByRole(ctx, enums.UserRoleAdmin)
	if err != nil {
		return err
	}

	body, err := json.Marshal(map[string]string{
		"request_id": payload.RequestID.String(),
		"device_id":  payload.DeviceID.String(),
	})
	if err != nil {
		return err
	}

	for _, admin := range admins {
		notification := &models.Notification{
			UserID:  admin.ID,
			Type:    enums.NotificationTypeReplacementRequested,
			Title:   "Replacement request pending",
			Message: fmt.Sprintf("A replacement was requested for device %s. Reason: %s", payload.DeviceID, payload.Reason),
			Data:    body,
		}
		if err := c.repo.Create(ctx, notification); err != nil {
			return err
		}
	}
	c.logg.Info(c.logg.WithFields(logCtx, map[string]any{
		"request_id": payload.RequestID.String(),
		"admins":     len(admins),
	}), "admins notified of replacement request")
	return nil
}

func (c *Consumer) handleReplacementStale(ctx context.Context, data json.RawMessage, logCtx context.Context) error {
	var payload payloads.ReplacementStaleEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	if payload.RequestID == uuid.Nil {
		return fmt.Errorf("request id missing")
	}

	admins, err := c.users.ListByRole(ctx, enums.UserRoleAdmin)
	if err != nil {
		return err
	}

	body, err := json.Marshal(map[string]string{
		"request_id": payload.RequestID.String(),
		"device_id":  payload.DeviceID.String(),
	})
	if err != nil {
		return err
	}

	for _, admin := range admins {
		notification := &models.Notification{
			UserID:  admin.ID,
			Type:    enums.NotificationTypeSystem,
			Title:   "Replacement request needs attention",
			Message: fmt.Sprintf("The replacement request for device %s has been pending for %d hours.", payload.DeviceID, payload.PendingHours),
			Data:    body,
		}
		if err := c.repo.Create(ctx, notification); err != nil {
			return err
		}
	}
	c.logg.Info(c.logg.WithFields(logCtx, map[string]any{
		"request_id":    payload.RequestID.String(),
		"pending_hours": payload.PendingHours,
		"admins":        len(admins),
	}), "admins reminded of stale request")
	return nil
}

func (c *Consumer) handleReplacementResolved(ctx context.Context, data json.RawMessage, logCtx context.Context) error {
	var payload payloads.ReplacementResolvedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	if payload.RequesterID == uuid.Nil {
		return fmt.Errorf("requester id missing")
	}

	notificationType := enums.NotificationTypeReplacementRejected
	title := "Replacement request rejected"
	message := fmt.Sprintf("Your replacement request for device %s was rejected.", payload.DeviceID)
	if payload.Status == enums.RequestStatusApproved {
		notificationType = enums.NotificationTypeReplacementApproved
		title = "Replacement request approved"
		message = fmt.Sprintf("Your replacement request for device %s was approved.", payload.DeviceID)
	}
	if payload.AdminNotes != "" {
		message = fmt.Sprintf("%s Notes: %s", message, payload.AdminNotes)
	}

	body, err := json.Marshal(map[string]string{
		"request_id":  payload.RequestID.String(),
		"device_id":   payload.DeviceID.String(),
		"status":      string(payload.Status),
		"admin_notes": payload.AdminNotes,
	})
	if err != nil {
		return err
	}

	notification := &models.Notification{
		UserID:  payload.RequesterID,
		Type:    notificationType,
		Title:   title,
		Message: message,
		Data:    body,
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(c.logg.WithFields(logCtx, map[string]any{
		"request_id": payload.RequestID.String(),
		"status":     string(payload.Status),
	}), "requester notified of decision")
	return nil
}

func (c *Consumer) handlePaymentRecorded(ctx context.Context, data json.RawMessage, logCtx context.Context) error {
	var payload payloads.PaymentRecordedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	if payload.LabID == uuid.Nil {
		return fmt.Errorf("lab id missing")
	}

	body, err := json.Marshal(map[string]string{
		"payment_id": payload.PaymentID.String(),
		"amount":     payload.Amount.String(),
	})
	if err != nil {
		return err
	}

	notification := &models.Notification{
		UserID:  payload.LabID,
		Type:    enums.NotificationTypePaymentRecorded,
		Title:   "Payment recorded",
		Message: fmt.Sprintf("A payment of %s was recorded for your lab.", payload.Amount.StringFixed(2)),
		Data:    body,
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(c.logg.WithFields(logCtx, map[string]any{
		"payment_id": payload.PaymentID.String(),
	}), "lab notified of payment")
	return nil
}
