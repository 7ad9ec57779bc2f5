package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/ledger"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/notifications"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/logger"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/outbox"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/outbox/payloads"
)

const (
	reconcileLastRunKey         = "wf:reconcile:last-run"
	reconcileLedgerKeyFormat    = "wf:reconcile:ledger:%s"
	reconcileUnreadKeyFormat    = "wf:reconcile:unread:%s"
	defaultReconcileSnapshotTTL = 72 * time.Hour
)

// ledgerEventTypes are the only events that move a lab balance. A balance
// that changed while none of these were queued means a write bypassed the
// event path.
var ledgerEventTypes = []enums.OutboxEventType{
	enums.EventRepairCompleted,
	enums.EventPaymentRecorded,
}

type labBalanceSource interface {
	GetAllLabBalances(ctx context.Context) ([]ledger.LabBalance, error)
}

type unreadCountSource interface {
	UnreadCountsByUser(ctx context.Context) ([]notifications.UserUnreadCount, error)
}

type snapshotStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type eventActivityCounter interface {
	CountEventsSince(ctx context.Context, eventTypes []enums.OutboxEventType, since time.Time) (int64, error)
}

// ReconciliationJobParams configure the backstop sweep that re-derives lab
// balances and unread counts independent of the event bus.
type ReconciliationJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Balances    labBalanceSource
	Unread      unreadCountSource
	Snapshots   snapshotStore
	Activity    eventActivityCounter
	Outbox      outboxEmitter
	SnapshotTTL time.Duration
}

// NewReconciliationJob builds the sweep. Push events can be lost between the
// publisher and a subscriber; this job detects the resulting staleness and
// republishes it as synthetic changefeed events so caches converge anyway.
func NewReconciliationJob(params ReconciliationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Balances == nil {
		return nil, fmt.Errorf("balance source required")
	}
	if params.Unread == nil {
		return nil, fmt.Errorf("unread count source required")
	}
	if params.Snapshots == nil {
		return nil, fmt.Errorf("snapshot store required")
	}
	if params.Activity == nil {
		return nil, fmt.Errorf("event activity counter required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	ttl := params.SnapshotTTL
	if ttl <= 0 {
		ttl = defaultReconcileSnapshotTTL
	}
	return &reconciliationJob{
		logg:        params.Logger,
		db:          params.DB,
		balances:    params.Balances,
		unread:      params.Unread,
		snapshots:   params.Snapshots,
		activity:    params.Activity,
		outbox:      params.Outbox,
		snapshotTTL: ttl,
		now:         time.Now,
	}, nil
}

type reconciliationJob struct {
	logg        *logger.Logger
	db          txRunner
	balances    labBalanceSource
	unread      unreadCountSource
	snapshots   snapshotStore
	activity    eventActivityCounter
	outbox      outboxEmitter
	snapshotTTL time.Duration
	now         func() time.Time
}

func (j *reconciliationJob) Name() string { return "reconciliation" }

func (j *reconciliationJob) Run(ctx context.Context) error {
	now := j.now().UTC()

	lastRun, primed, err := j.lastRunAt(ctx)
	if err != nil {
		return fmt.Errorf("load last run marker: %w", err)
	}

	ledgerDrift, err := j.reconcileLedger(ctx, now, lastRun, primed)
	if err != nil {
		return err
	}
	unreadChanged, err := j.reconcileUnreadCounts(ctx, now, primed)
	if err != nil {
		return err
	}

	if err := j.snapshots.Set(ctx, reconcileLastRunKey, now.Format(time.RFC3339Nano), j.snapshotTTL); err != nil {
		return fmt.Errorf("store last run marker: %w", err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"ledger_drift":   ledgerDrift,
		"unread_changed": unreadChanged,
	})
	j.logg.Info(logCtx, "reconciliation sweep complete")
	return nil
}

// lastRunAt returns the previous sweep time. primed is false on the first
// sweep against an empty snapshot store, where nothing can be compared yet.
func (j *reconciliationJob) lastRunAt(ctx context.Context) (time.Time, bool, error) {
	raw, err := j.snapshots.Get(ctx, reconcileLastRunKey)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		// A corrupt marker resets the sweep to priming mode.
		return time.Time{}, false, nil
	}
	return at, true, nil
}

func (j *reconciliationJob) reconcileLedger(ctx context.Context, now, lastRun time.Time, primed bool) (int, error) {
	balances, err := j.balances.GetAllLabBalances(ctx)
	if err != nil {
		return 0, fmt.Errorf("derive lab balances: %w", err)
	}

	var eventCount int64
	if primed {
		eventCount, err = j.activity.CountEventsSince(ctx, ledgerEventTypes, lastRun)
		if err != nil {
			return 0, fmt.Errorf("count ledger events: %w", err)
		}
	}

	drift := 0
	for i := range balances {
		balance := balances[i]
		key := fmt.Sprintf(reconcileLedgerKeyFormat, balance.LabID)
		current := fmt.Sprintf("%s|%s", balance.TotalEarned.String(), balance.TotalPaid.String())

		previous, err := j.snapshots.Get(ctx, key)
		if err != nil && !errors.Is(err, redis.Nil) {
			return drift, fmt.Errorf("load ledger snapshot: %w", err)
		}

		if primed && previous != "" && previous != current && eventCount == 0 {
			if err := j.emitLedgerDrift(ctx, now, balance); err != nil {
				return drift, err
			}
			drift++
		}

		if err := j.snapshots.Set(ctx, key, current, j.snapshotTTL); err != nil {
			return drift, fmt.Errorf("store ledger snapshot: %w", err)
		}
	}
	return drift, nil
}

func (j *reconciliationJob) emitLedgerDrift(ctx context.Context, now time.Time, balance ledger.LabBalance) error {
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"lab_id":  balance.LabID,
		"balance": balance.Balance.String(),
	})
	j.logg.Warn(logCtx, "lab balance moved without a ledger event")

	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLedgerDriftDetected,
			AggregateType: enums.AggregatePayment,
			AggregateID:   balance.LabID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.LedgerDriftDetectedEvent{
				LabID:       balance.LabID,
				TotalEarned: balance.TotalEarned,
				TotalPaid:   balance.TotalPaid,
				Balance:     balance.Balance,
				DetectedAt:  now,
			},
		})
	})
}

// reconcileUnreadCounts has no event to cross-check against: marking
// notifications read happens through the API without emitting anything. Any
// change since the last sweep publishes an invalidation; refetching a counter
// is idempotent, so a spurious nudge costs one query.
func (j *reconciliationJob) reconcileUnreadCounts(ctx context.Context, now time.Time, primed bool) (int, error) {
	counts, err := j.unread.UnreadCountsByUser(ctx)
	if err != nil {
		return 0, fmt.Errorf("derive unread counts: %w", err)
	}

	changed := 0
	for _, row := range counts {
		key := fmt.Sprintf(reconcileUnreadKeyFormat, row.UserID)
		current := fmt.Sprintf("%d", row.Count)

		previous, err := j.snapshots.Get(ctx, key)
		if err != nil && !errors.Is(err, redis.Nil) {
			return changed, fmt.Errorf("load unread snapshot: %w", err)
		}

		if primed && previous != "" && previous != current {
			if err := j.emitNotificationDrift(ctx, now, row.UserID, row.Count); err != nil {
				return changed, err
			}
			changed++
		}

		if err := j.snapshots.Set(ctx, key, current, j.snapshotTTL); err != nil {
			return changed, fmt.Errorf("store unread snapshot: %w", err)
		}
	}
	return changed, nil
}

func (j *reconciliationJob) emitNotificationDrift(ctx context.Context, now time.Time, userID uuid.UUID, count int64) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventNotificationDriftDetected,
			AggregateType: enums.AggregateNotification,
			AggregateID:   userID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.NotificationDriftDetectedEvent{
				UserID:      userID,
				UnreadCount: count,
				DetectedAt:  now,
			},
		})
	})
}
