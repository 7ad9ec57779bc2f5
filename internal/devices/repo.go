package devices

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/db/models"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/pagination"
)

// Repository exposes device and catalog persistence. WithTx returns a copy
// bound to the supplied transaction so lifecycle services can participate.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateModel(ctx context.Context, model *models.DeviceModel) error
	FindModel(ctx context.Context, id uuid.UUID) (*models.DeviceModel, error)
	ListModels(ctx context.Context, includeInactive bool) ([]models.DeviceModel, error)
	UpdateModel(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error

	CreateDevice(ctx context.Context, device *models.Device) error
	FindDevice(ctx context.Context, id uuid.UUID) (*models.Device, error)
	FindDeviceByIMEI(ctx context.Context, imei string) (*models.Device, error)
	ListDevices(ctx context.Context, limit int, cursor *pagination.Cursor) ([]models.Device, error)
	UpdateWarrantyStatus(ctx context.Context, id uuid.UUID, status enums.WarrantyStatus) (bool, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository constructs a devices repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &gormRepository{db: tx}
}

func (r *gormRepository) CreateModel(ctx context.Context, model *models.DeviceModel) error {
	return r.db.WithContext(ctx).Create(model).Error
}

func (r *gormRepository) FindModel(ctx context.Context, id uuid.UUID) (*models.DeviceModel, error) {
	var model models.DeviceModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &model, nil
}

func (r *gormRepository) ListModels(ctx context.Context, includeInactive bool) ([]models.DeviceModel, error) {
	query := r.db.WithContext(ctx).Model(&models.DeviceModel{})
	if !includeInactive {
		query = query.Where("is_active")
	}
	var rows []models.DeviceModel
	err := query.Order("model_name ASC").Find(&rows).Error
	return rows, err
}

func (r *gormRepository) UpdateModel(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.DeviceModel{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *gormRepository) CreateDevice(ctx context.Context, device *models.Device) error {
	return r.db.WithContext(ctx).Create(device).Error
}

func (r *gormRepository) FindDevice(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	var device models.Device
	err := r.db.WithContext(ctx).
		Preload("Model").
		First(&device, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &device, nil
}

func (r *gormRepository) FindDeviceByIMEI(ctx context.Context, imei string) (*models.Device, error) {
	var device models.Device
	err := r.db.WithContext(ctx).
		Preload("Model").
		Where("imei = ? OR imei2 = ?", imei, imei).
		First(&device).Error
	if err != nil {
		return nil, err
	}
	return &device, nil
}

func (r *gormRepository) ListDevices(ctx context.Context, limit int, cursor *pagination.Cursor) ([]models.Device, error) {
	query := r.db.WithContext(ctx).
		Preload("Model").
		Order("created_at DESC, id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where(
			"(created_at, id) < (?, ?)",
			cursor.CreatedAt, cursor.ID,
		)
	}
	var rows []models.Device
	err := query.Find(&rows).Error
	return rows, err
}

// UpdateWarrantyStatus never touches a replaced device: replaced is terminal,
// so the write is conditional and callers must treat a false return as a lost
// race against a replacement approval.
func (r *gormRepository) UpdateWarrantyStatus(ctx context.Context, id uuid.UUID, status enums.WarrantyStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Device{}).
		Where("id = ? AND warranty_status <> ?", id, enums.WarrantyStatusReplaced).
		UpdateColumn("warranty_status", status)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
