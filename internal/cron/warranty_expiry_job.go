package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/devices"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/warranties"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/db/models"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/logger"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/outbox"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/outbox/payloads"
)

const (
	warrantyExpiryBatchSize = 100
	warrantyExpiredReason   = "coverage period ended"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type outboxExistenceChecker interface {
	Exists(ctx context.Context, eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType, aggregateID uuid.UUID) (bool, error)
}

type expiredWarrantyReader interface {
	ListExpiredCoverage(ctx context.Context, asOf time.Time, limit int) ([]models.Warranty, error)
}

type warrantyTxRepo interface {
	Deactivate(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

type deviceTxRepo interface {
	UpdateWarrantyStatus(ctx context.Context, id uuid.UUID, status enums.WarrantyStatus) (bool, error)
}

type warrantyRepoFactory func(tx *gorm.DB) warrantyTxRepo

type deviceRepoFactory func(tx *gorm.DB) deviceTxRepo

func defaultWarrantyRepo(tx *gorm.DB) warrantyTxRepo {
	return warranties.NewRepository(tx)
}

func defaultDeviceRepo(tx *gorm.DB) deviceTxRepo {
	return devices.NewRepository(tx)
}

// WarrantyExpiryJobParams configure the nightly coverage sweep.
type WarrantyExpiryJobParams struct {
	Logger            *logger.Logger
	DB                txRunner
	ExpiredReader     expiredWarrantyReader
	Outbox            outboxEmitter
	WarrantyTxFactory warrantyRepoFactory
	DeviceTxFactory   deviceRepoFactory
	BatchSize         int
}

// NewWarrantyExpiryJob builds the job that deactivates warranties whose
// expiry date has passed and flips the device out of coverage. The event
// path never fires for pure passage of time, so this sweep is the only
// thing that moves devices to expired.
func NewWarrantyExpiryJob(params WarrantyExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.ExpiredReader == nil {
		return nil, fmt.Errorf("expired warranty reader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	warrantyFactory := params.WarrantyTxFactory
	if warrantyFactory == nil {
		warrantyFactory = defaultWarrantyRepo
	}
	deviceFactory := params.DeviceTxFactory
	if deviceFactory == nil {
		deviceFactory = defaultDeviceRepo
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = warrantyExpiryBatchSize
	}
	return &warrantyExpiryJob{
		logg:            params.Logger,
		db:              params.DB,
		expiredReader:   params.ExpiredReader,
		outbox:          params.Outbox,
		warrantyFactory: warrantyFactory,
		deviceFactory:   deviceFactory,
		batchSize:       batchSize,
		now:             time.Now,
	}, nil
}

type warrantyExpiryJob struct {
	logg            *logger.Logger
	db              txRunner
	expiredReader   expiredWarrantyReader
	outbox          outboxEmitter
	warrantyFactory warrantyRepoFactory
	deviceFactory   deviceRepoFactory
	batchSize       int
	now             func() time.Time
}

func (j *warrantyExpiryJob) Name() string { return "warranty-expiry" }

func (j *warrantyExpiryJob) Run(ctx context.Context) error {
	asOf := j.now().UTC()
	total := 0
	for {
		rows, err := j.expiredReader.ListExpiredCoverage(ctx, asOf, j.batchSize)
		if err != nil {
			return fmt.Errorf("query expired warranties: %w", err)
		}
		for i := range rows {
			if err := j.expireWarranty(ctx, rows[i]); err != nil {
				return err
			}
			total++
		}
		if len(rows) < j.batchSize {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": total})
	j.logg.Info(logCtx, "warranty expiry sweep complete")
	return nil
}

func (j *warrantyExpiryJob) expireWarranty(ctx context.Context, warranty models.Warranty) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		now := j.now().UTC()
		done, err := j.warrantyFactory(tx).Deactivate(ctx, warranty.ID, now)
		if err != nil {
			return fmt.Errorf("deactivate warranty: %w", err)
		}
		if !done {
			// Someone cancelled it between the read and this write.
			return nil
		}
		updated, err := j.deviceFactory(tx).UpdateWarrantyStatus(ctx, warranty.DeviceID, enums.WarrantyStatusExpired)
		if err != nil {
			return fmt.Errorf("update device status: %w", err)
		}
		if !updated {
			// The device was replaced since the read; the swap owns its status.
			logCtx := j.logg.WithFields(ctx, map[string]any{"device_id": warranty.DeviceID})
			j.logg.Warn(logCtx, "skipping status write for replaced device")
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventWarrantyCancelled,
			AggregateType: enums.AggregateWarranty,
			AggregateID:   warranty.ID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.WarrantyCancelledEvent{
				WarrantyID:    warranty.ID,
				DeviceID:      warranty.DeviceID,
				DeactivatedAt: now,
				Reason:        warrantyExpiredReason,
			},
		}
		return j.outbox.Emit(ctx, tx, event)
	})
}
