package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/db/models"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	require.NoError(t, db.Exec(ddl).Error)
	return db
}

func seedOutboxEvent(t *testing.T, db *gorm.DB, eventType enums.OutboxEventType, createdAt time.Time) {
	t.Helper()
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateRepair,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{}`),
		CreatedAt:     createdAt,
	}
	require.NoError(t, db.Create(&event).Error)
}

func TestCountEventsSinceFiltersTypeAndCutoff(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	seedOutboxEvent(t, db, enums.EventRepairCompleted, now.Add(-30*time.Minute))
	seedOutboxEvent(t, db, enums.EventPaymentRecorded, now.Add(-10*time.Minute))
	seedOutboxEvent(t, db, enums.EventRepairCompleted, now.Add(-2*time.Hour))
	seedOutboxEvent(t, db, enums.EventRepairCreated, now.Add(-5*time.Minute))

	count, err := repo.CountEventsSince(ctx, []enums.OutboxEventType{
		enums.EventRepairCompleted,
		enums.EventPaymentRecorded,
	}, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestCountEventsSinceIgnoresPublishState(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	seedOutboxEvent(t, db, enums.EventPaymentRecorded, now.Add(-5*time.Minute))
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventPaymentRecorded).
		Update("published_at", now).Error)

	count, err := repo.CountEventsSince(ctx, []enums.OutboxEventType{enums.EventPaymentRecorded}, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
