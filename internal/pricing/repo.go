package pricing

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/db/models"
)

// Repository exposes repair type and lab price persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateRepairType(ctx context.Context, rt *models.RepairType) error
	FindRepairType(ctx context.Context, id uuid.UUID) (*models.RepairType, error)
	ListRepairTypes(ctx context.Context, includeInactive bool) ([]models.RepairType, error)
	UpdateRepairType(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error

	CreateLabPrice(ctx context.Context, price *models.LabRepairPrice) error
	UpdateLabPriceFrom(ctx context.Context, labID, repairTypeID uuid.UUID, expected, price decimal.Decimal, isActive bool) (bool, error)
	FindLabPrice(ctx context.Context, labID, repairTypeID uuid.UUID) (*models.LabRepairPrice, error)
	FindActiveLabPrice(ctx context.Context, labID, repairTypeID uuid.UUID) (*models.LabRepairPrice, error)
	ListLabPrices(ctx context.Context, labID uuid.UUID) ([]models.LabRepairPrice, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository constructs a pricing repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &gormRepository{db: tx}
}

func (r *gormRepository) CreateRepairType(ctx context.Context, rt *models.RepairType) error {
	return r.db.WithContext(ctx).Create(rt).Error
}

func (r *gormRepository) FindRepairType(ctx context.Context, id uuid.UUID) (*models.RepairType, error) {
	var rt models.RepairType
	if err := r.db.WithContext(ctx).First(&rt, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rt, nil
}

func (r *gormRepository) ListRepairTypes(ctx context.Context, includeInactive bool) ([]models.RepairType, error) {
	query := r.db.WithContext(ctx).Model(&models.RepairType{})
	if !includeInactive {
		query = query.Where("is_active")
	}
	var rows []models.RepairType
	err := query.Order("name ASC").Find(&rows).Error
	return rows, err
}

func (r *gormRepository) UpdateRepairType(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.RepairType{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *gormRepository) CreateLabPrice(ctx context.Context, price *models.LabRepairPrice) error {
	return r.db.WithContext(ctx).Create(price).Error
}

// UpdateLabPriceFrom writes the new price only if the stored price still
// equals expected. A false return means another writer got there first.
func (r *gormRepository) UpdateLabPriceFrom(ctx context.Context, labID, repairTypeID uuid.UUID, expected, price decimal.Decimal, isActive bool) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.LabRepairPrice{}).
		Where("lab_id = ? AND repair_type_id = ? AND price = ?", labID, repairTypeID, expected).
		UpdateColumns(map[string]interface{}{
			"price":     price,
			"is_active": isActive,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *gormRepository) FindLabPrice(ctx context.Context, labID, repairTypeID uuid.UUID) (*models.LabRepairPrice, error) {
	var price models.LabRepairPrice
	err := r.db.WithContext(ctx).
		Where("lab_id = ? AND repair_type_id = ?", labID, repairTypeID).
		First(&price).Error
	if err != nil {
		return nil, err
	}
	return &price, nil
}

func (r *gormRepository) FindActiveLabPrice(ctx context.Context, labID, repairTypeID uuid.UUID) (*models.LabRepairPrice, error) {
	var price models.LabRepairPrice
	err := r.db.WithContext(ctx).
		Where("lab_id = ? AND repair_type_id = ? AND is_active", labID, repairTypeID).
		First(&price).Error
	if err != nil {
		return nil, err
	}
	return &price, nil
}

func (r *gormRepository) ListLabPrices(ctx context.Context, labID uuid.UUID) ([]models.LabRepairPrice, error) {
	var rows []models.LabRepairPrice
	err := r.db.WithContext(ctx).
		Where("lab_id = ?", labID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}
