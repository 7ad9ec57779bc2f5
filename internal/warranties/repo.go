package warranties

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/db/models"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/pagination"
)

// Repository exposes warranty persistence. WithTx returns a copy bound to the
// supplied transaction.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, warranty *models.Warranty) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Warranty, error)
	FindActiveByDevice(ctx context.Context, deviceID uuid.UUID) (*models.Warranty, error)
	Deactivate(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	ListByStore(ctx context.Context, storeID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Warranty, error)
	ListExpiredCoverage(ctx context.Context, asOf time.Time, limit int) ([]models.Warranty, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository constructs a warranties repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &gormRepository{db: tx}
}

func (r *gormRepository) Create(ctx context.Context, warranty *models.Warranty) error {
	return r.db.WithContext(ctx).Create(warranty).Error
}

func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Warranty, error) {
	var warranty models.Warranty
	if err := r.db.WithContext(ctx).First(&warranty, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &warranty, nil
}

func (r *gormRepository) FindActiveByDevice(ctx context.Context, deviceID uuid.UUID) (*models.Warranty, error) {
	var warranty models.Warranty
	err := r.db.WithContext(ctx).
		Where("device_id = ? AND is_active", deviceID).
		First(&warranty).Error
	if err != nil {
		return nil, err
	}
	return &warranty, nil
}

// Deactivate flips the active flag exactly once; the boolean reports whether
// this call performed the deactivation.
func (r *gormRepository) Deactivate(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Warranty{}).
		Where("id = ? AND is_active", id).
		UpdateColumns(map[string]interface{}{
			"is_active":      false,
			"deactivated_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *gormRepository) ListByStore(ctx context.Context, storeID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Warranty, error) {
	query := r.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	var rows []models.Warranty
	err := query.Find(&rows).Error
	return rows, err
}

// ListExpiredCoverage returns active warranties whose expiry date has passed
// while the device still reports active coverage. The expiry reconciliation
// job drains this set.
func (r *gormRepository) ListExpiredCoverage(ctx context.Context, asOf time.Time, limit int) ([]models.Warranty, error) {
	var rows []models.Warranty
	err := r.db.WithContext(ctx).
		Joins("JOIN devices ON devices.id = warranties.device_id").
		Where("warranties.is_active AND warranties.expiry_date < ?", asOf).
		Where("devices.warranty_status = ?", "active").
		Order("warranties.expiry_date ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
