package repairs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/db/models"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/pagination"
)

// ListFilter narrows repair listings; zero values mean no filter.
type ListFilter struct {
	LabID    *uuid.UUID
	DeviceID *uuid.UUID
	Status   *enums.RepairStatus
}

// Repository exposes repair persistence. WithTx returns a copy bound to the
// supplied transaction.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, repair *models.Repair) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Repair, error)
	List(ctx context.Context, filter ListFilter, limit int, cursor *pagination.Cursor) ([]models.Repair, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.RepairStatus) (bool, error)
	Claim(ctx context.Context, id, labID uuid.UUID) (bool, error)
	Complete(ctx context.Context, id uuid.UUID, from enums.RepairStatus, cost decimal.Decimal, at time.Time) (bool, error)
	SumCompletedCostByLab(ctx context.Context, labID uuid.UUID) (decimal.Decimal, error)
	CountCompletedByLab(ctx context.Context, labID uuid.UUID) (int64, error)
	ListStale(ctx context.Context, status enums.RepairStatus, olderThan time.Time, limit int) ([]models.Repair, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository constructs a repairs repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &gormRepository{db: tx}
}

func (r *gormRepository) Create(ctx context.Context, repair *models.Repair) error {
	return r.db.WithContext(ctx).Create(repair).Error
}

func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Repair, error) {
	var repair models.Repair
	err := r.db.WithContext(ctx).
		Preload("Device").
		Preload("Device.Model").
		Preload("RepairType").
		First(&repair, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &repair, nil
}

func (r *gormRepository) List(ctx context.Context, filter ListFilter, limit int, cursor *pagination.Cursor) ([]models.Repair, error) {
	query := r.db.WithContext(ctx).
		Preload("Device").
		Preload("RepairType").
		Order("created_at DESC, id DESC").
		Limit(limit)
	if filter.LabID != nil {
		query = query.Where("lab_id = ?", *filter.LabID)
	}
	if filter.DeviceID != nil {
		query = query.Where("device_id = ?", *filter.DeviceID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	var rows []models.Repair
	err := query.Find(&rows).Error
	return rows, err
}

// UpdateStatus moves a repair between states with a compare-and-set; the
// boolean reports whether this call performed the transition.
func (r *gormRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.RepairStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Repair{}).
		Where("id = ? AND status = ?", id, from).
		UpdateColumn("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Claim assigns a lab to an unclaimed received repair and starts work.
func (r *gormRepository) Claim(ctx context.Context, id, labID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Repair{}).
		Where("id = ? AND status = ? AND lab_id IS NULL", id, enums.RepairStatusReceived).
		UpdateColumns(map[string]interface{}{
			"lab_id": labID,
			"status": enums.RepairStatusInProgress,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Complete stamps the cost and completion time while moving to completed.
// The write is conditional on the status the caller loaded.
func (r *gormRepository) Complete(ctx context.Context, id uuid.UUID, from enums.RepairStatus, cost decimal.Decimal, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Repair{}).
		Where("id = ? AND status = ?", id, from).
		UpdateColumns(map[string]interface{}{
			"status":       enums.RepairStatusCompleted,
			"cost":         cost,
			"completed_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SumCompletedCostByLab totals the cost of every completed repair for a lab.
// Balances are recomputed from the ground truth on every read.
func (r *gormRepository) SumCompletedCostByLab(ctx context.Context, labID uuid.UUID) (decimal.Decimal, error) {
	var raw *string
	err := r.db.WithContext(ctx).
		Model(&models.Repair{}).
		Select("SUM(cost)").
		Where("lab_id = ? AND status = ?", labID, enums.RepairStatusCompleted).
		Scan(&raw).Error
	if err != nil {
		return decimal.Zero, err
	}
	if raw == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(*raw)
}

func (r *gormRepository) CountCompletedByLab(ctx context.Context, labID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Repair{}).
		Where("lab_id = ? AND status = ?", labID, enums.RepairStatusCompleted).
		Count(&count).Error
	return count, err
}

func (r *gormRepository) ListStale(ctx context.Context, status enums.RepairStatus, olderThan time.Time, limit int) ([]models.Repair, error) {
	var rows []models.Repair
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", status, olderThan).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
