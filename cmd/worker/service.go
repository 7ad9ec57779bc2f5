package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	archive "github.com/warrantyflow-sys/warrantyflow-sub001/internal/consumers/analytics"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/notifications"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/bigquery"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/config"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/db"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/logger"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/outbox"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/pubsub"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/redis"
)

type ServiceParams struct {
	Config               *config.Config
	Logger               *logger.Logger
	DB                   *db.Client
	Redis                *redis.Client
	PubSub               *pubsub.Client
	NotificationConsumer *notifications.Consumer
	Archive              *archive.Consumer
	ArchiveSubscription  *gcppubsub.Subscriber
	BigQuery             *bigquery.Client
}

// Service runs the domain event consumers: notification fan-out always, and
// the raw event archive when an archive subscription is configured.
type Service struct {
	cfg                  *config.Config
	logg                 *logger.Logger
	db                   *db.Client
	redis                *redis.Client
	pubsub               *pubsub.Client
	notificationConsumer *notifications.Consumer
	archive              *archive.Consumer
	archiveSub           *gcppubsub.Subscriber
	bigquery             *bigquery.Client
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.NotificationConsumer == nil {
		return nil, errors.New("notification consumer is required")
	}
	if params.Archive != nil && params.ArchiveSubscription == nil {
		return nil, errors.New("archive subscription is required when the archive consumer is set")
	}

	return &Service{
		cfg:                  params.Config,
		logg:                 params.Logger,
		db:                   params.DB,
		redis:                params.Redis,
		pubsub:               params.PubSub,
		notificationConsumer: params.NotificationConsumer,
		archive:              params.Archive,
		archiveSub:           params.ArchiveSubscription,
		bigquery:             params.BigQuery,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "pubsub", s.pubsub.Ping); err != nil {
		return err
	}
	if s.bigquery != nil {
		if err := pingDependency(ctx, s.logg, "bigquery", s.bigquery.Ping); err != nil {
			return err
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- s.notificationConsumer.Run(ctx)
	}()
	if s.archive != nil {
		go func() {
			errCh <- s.runArchive(ctx)
		}()
	}

	select {
	case <-ctx.Done():
		s.logg.Info(ctx, "worker context canceled")
		return ctx.Err()
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logg.Error(ctx, "consumer stopped unexpectedly", err)
		}
		return err
	}
}

func (s *Service) runArchive(ctx context.Context) error {
	return s.archiveSub.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		eventType := enums.OutboxEventType(msg.Attributes["event_type"])
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"message_id": msg.ID,
			"event_type": eventType,
		})

		var envelope outbox.PayloadEnvelope
		if err := json.Unmarshal(msg.Data, &envelope); err != nil {
			// Malformed payloads never parse; retrying just redelivers them.
			s.logg.Error(logCtx, "failed to decode envelope", err)
			msg.Ack()
			return
		}

		if err := s.archive.Process(ctx, eventType, envelope); err != nil {
			s.logg.Error(logCtx, "archive ingestion failed", err)
			msg.Nack()
			return
		}
		msg.Ack()
	})
}
