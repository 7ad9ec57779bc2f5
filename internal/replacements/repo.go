package replacements

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/db/models"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/pagination"
)

// ListFilter narrows request listings; nil fields mean no filter.
type ListFilter struct {
	RequesterID *uuid.UUID
	Status      *enums.RequestStatus
}

// Repository exposes replacement request persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, request *models.ReplacementRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ReplacementRequest, error)
	List(ctx context.Context, filter ListFilter, limit int, cursor *pagination.Cursor) ([]models.ReplacementRequest, error)
	Resolve(ctx context.Context, id uuid.UUID, status enums.RequestStatus, notes *string, resolvedBy uuid.UUID, at time.Time) (bool, error)
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.ReplacementRequest, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository constructs a replacements repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &gormRepository{db: tx}
}

func (r *gormRepository) Create(ctx context.Context, request *models.ReplacementRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.ReplacementRequest, error) {
	var request models.ReplacementRequest
	err := r.db.WithContext(ctx).
		Preload("Device").
		Preload("Repair").
		First(&request, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *gormRepository) List(ctx context.Context, filter ListFilter, limit int, cursor *pagination.Cursor) ([]models.ReplacementRequest, error) {
	query := r.db.WithContext(ctx).
		Preload("Device").
		Order("created_at DESC, id DESC").
		Limit(limit)
	if filter.RequesterID != nil {
		query = query.Where("requester_id = ?", *filter.RequesterID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	var rows []models.ReplacementRequest
	err := query.Find(&rows).Error
	return rows, err
}

// Resolve writes the decision exactly once: the conditional update only
// matches while the request is still pending.
func (r *gormRepository) Resolve(ctx context.Context, id uuid.UUID, status enums.RequestStatus, notes *string, resolvedBy uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ReplacementRequest{}).
		Where("id = ? AND status = ?", id, enums.RequestStatusPending).
		UpdateColumns(map[string]interface{}{
			"status":      status,
			"admin_notes": notes,
			"resolved_by": resolvedBy,
			"resolved_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *gormRepository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.ReplacementRequest, error) {
	var rows []models.ReplacementRequest
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.RequestStatusPending, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
