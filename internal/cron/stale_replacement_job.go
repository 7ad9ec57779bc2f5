package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/db/models"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/logger"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/outbox"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/outbox/payloads"
)

const (
	defaultStalePendingAge   = 72 * time.Hour
	staleReplacementBatchMax = 200
)

type stalePendingReader interface {
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.ReplacementRequest, error)
}

// StaleReplacementJobParams configure the pending-request sweep.
type StaleReplacementJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Pending    stalePendingReader
	Outbox     outboxEmitter
	OutboxRepo outboxExistenceChecker
	MaxAge     time.Duration
}

// NewStaleReplacementJob builds the job that flags replacement requests
// sitting in pending past the configured age. Each request is flagged at
// most once; the outbox row doubles as the dedup marker.
func NewStaleReplacementJob(params StaleReplacementJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Pending == nil {
		return nil, fmt.Errorf("pending request reader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if params.OutboxRepo == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	maxAge := params.MaxAge
	if maxAge <= 0 {
		maxAge = defaultStalePendingAge
	}
	return &staleReplacementJob{
		logg:       params.Logger,
		db:         params.DB,
		pending:    params.Pending,
		outbox:     params.Outbox,
		outboxRepo: params.OutboxRepo,
		maxAge:     maxAge,
		now:        time.Now,
	}, nil
}

type staleReplacementJob struct {
	logg       *logger.Logger
	db         txRunner
	pending    stalePendingReader
	outbox     outboxEmitter
	outboxRepo outboxExistenceChecker
	maxAge     time.Duration
	now        func() time.Time
}

func (j *staleReplacementJob) Name() string { return "stale-replacement-sweep" }

func (j *staleReplacementJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.maxAge)
	requests, err := j.pending.ListStalePending(ctx, cutoff, staleReplacementBatchMax)
	if err != nil {
		return fmt.Errorf("query stale pending requests: %w", err)
	}
	flagged := 0
	for i := range requests {
		emitted, err := j.flagRequest(ctx, requests[i])
		if err != nil {
			return err
		}
		if emitted {
			flagged++
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"pending": len(requests),
		"flagged": flagged,
	})
	j.logg.Info(logCtx, "stale replacement sweep complete")
	return nil
}

func (j *staleReplacementJob) flagRequest(ctx context.Context, request models.ReplacementRequest) (bool, error) {
	exists, err := j.outboxRepo.Exists(ctx, enums.EventReplacementStale, enums.AggregateReplacementRequest, request.ID)
	if err != nil {
		return false, fmt.Errorf("check stale event existence: %w", err)
	}
	if exists {
		return false, nil
	}
	now := j.now().UTC()
	err = j.db.WithTx(ctx, func(tx *gorm.DB) error {
		event := outbox.DomainEvent{
			EventType:     enums.EventReplacementStale,
			AggregateType: enums.AggregateReplacementRequest,
			AggregateID:   request.ID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.ReplacementStaleEvent{
				RequestID:    request.ID,
				DeviceID:     request.DeviceID,
				RequesterID:  request.RequesterID,
				PendingSince: request.CreatedAt,
				PendingHours: int(now.Sub(request.CreatedAt).Hours()),
			},
		}
		return j.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return false, fmt.Errorf("queue stale event: %w", err)
	}
	return true, nil
}
