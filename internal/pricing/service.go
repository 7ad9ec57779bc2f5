package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/warrantyflow-sys/warrantyflow-sub001/pkg/db"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/db/models"
	pkgerrors "github.com/warrantyflow-sys/warrantyflow-sub001/pkg/errors"
)

// CreateRepairTypeDTO holds the data for a new catalog entry.
type CreateRepairTypeDTO struct {
	Name        string
	Description *string
}

// UpdateRepairTypeDTO carries mutable repair type fields; nil means unchanged.
type UpdateRepairTypeDTO struct {
	Description *string
	IsActive    *bool
}

// SetLabPriceDTO binds a price to one (lab, repair type) pair. ExpectedPrice
// is the price the caller last read; nil asserts that no row exists yet.
type SetLabPriceDTO struct {
	LabID         uuid.UUID
	RepairTypeID  uuid.UUID
	Price         decimal.Decimal
	ExpectedPrice *decimal.Decimal
}

// Service defines the pricing catalog operations.
type Service interface {
	CreateRepairType(ctx context.Context, dto CreateRepairTypeDTO) (*models.RepairType, error)
	ListRepairTypes(ctx context.Context, includeInactive bool) ([]models.RepairType, error)
	UpdateRepairType(ctx context.Context, id uuid.UUID, dto UpdateRepairTypeDTO) (*models.RepairType, error)

	SetLabPrice(ctx context.Context, dto SetLabPriceDTO) (*models.LabRepairPrice, error)
	ResolvePrice(ctx context.Context, labID, repairTypeID uuid.UUID) (*models.LabRepairPrice, error)
	ListLabPrices(ctx context.Context, labID uuid.UUID) ([]models.LabRepairPrice, error)
}

type service struct {
	repo Repository
}

// NewService builds a pricing service with the required dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("pricing repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) CreateRepairType(ctx context.Context, dto CreateRepairTypeDTO) (*models.RepairType, error) {
	name := strings.TrimSpace(dto.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "repair type name is required")
	}

	rt := &models.RepairType{
		Name:        name,
		Description: dto.Description,
		IsActive:    true,
	}
	if err := s.repo.CreateRepairType(ctx, rt); err != nil {
		if dbpkg.IsUniqueViolation(err, "name") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "repair type already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create repair type")
	}
	return rt, nil
}

func (s *service) ListRepairTypes(ctx context.Context, includeInactive bool) ([]models.RepairType, error) {
	rows, err := s.repo.ListRepairTypes(ctx, includeInactive)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list repair types")
	}
	return rows, nil
}

func (s *service) UpdateRepairType(ctx context.Context, id uuid.UUID, dto UpdateRepairTypeDTO) (*models.RepairType, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "repair type id required")
	}
	if _, err := s.repo.FindRepairType(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "repair type not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load repair type")
	}

	updates := map[string]interface{}{}
	if dto.Description != nil {
		updates["description"] = *dto.Description
	}
	if dto.IsActive != nil {
		updates["is_active"] = *dto.IsActive
	}
	if err := s.repo.UpdateRepairType(ctx, id, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update repair type")
	}
	rt, err := s.repo.FindRepairType(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload repair type")
	}
	return rt, nil
}

func (s *service) SetLabPrice(ctx context.Context, dto SetLabPriceDTO) (*models.LabRepairPrice, error) {
	if dto.LabID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lab id required")
	}
	if dto.RepairTypeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "repair type id required")
	}
	if dto.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}

	rt, err := s.repo.FindRepairType(ctx, dto.RepairTypeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "repair type not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load repair type")
	}
	if !rt.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "repair type is inactive")
	}

	if dto.ExpectedPrice == nil {
		price := &models.LabRepairPrice{
			LabID:        dto.LabID,
			RepairTypeID: dto.RepairTypeID,
			Price:        dto.Price,
			IsActive:     true,
		}
		if err := s.repo.CreateLabPrice(ctx, price); err != nil {
			if dbpkg.IsUniqueViolation(err, "lab_repair_prices") {
				return nil, pkgerrors.New(pkgerrors.CodeConflict, "price already set for this repair type")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create lab price")
		}
		return price, nil
	}

	updated, err := s.repo.UpdateLabPriceFrom(ctx, dto.LabID, dto.RepairTypeID, *dto.ExpectedPrice, dto.Price, true)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update lab price")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "price changed since it was read")
	}
	stored, err := s.repo.FindLabPrice(ctx, dto.LabID, dto.RepairTypeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload lab price")
	}
	return stored, nil
}

func (s *service) ResolvePrice(ctx context.Context, labID, repairTypeID uuid.UUID) (*models.LabRepairPrice, error) {
	if labID == uuid.Nil || repairTypeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lab id and repair type id required")
	}
	price, err := s.repo.FindActiveLabPrice(ctx, labID, repairTypeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeMissingPrice, "lab has no active price for this repair type")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load lab price")
	}
	return price, nil
}

func (s *service) ListLabPrices(ctx context.Context, labID uuid.UUID) ([]models.LabRepairPrice, error) {
	if labID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lab id required")
	}
	rows, err := s.repo.ListLabPrices(ctx, labID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list lab prices")
	}
	return rows, nil
}
