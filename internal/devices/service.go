package devices

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/warrantyflow-sys/warrantyflow-sub001/pkg/db"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/db/models"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
	pkgerrors "github.com/warrantyflow-sys/warrantyflow-sub001/pkg/errors"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/outbox"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/outbox/payloads"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// RegisterDeviceInput captures the data required to enter a device into the registry.
type RegisterDeviceInput struct {
	IMEI        string
	IMEI2       *string
	ModelID     uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   enums.UserRole
}

// ListDevicesResult is one page of devices plus the continuation cursor.
type ListDevicesResult struct {
	Devices    []DeviceDTO
	NextCursor *string
}

// Service defines the device registry operations.
type Service interface {
	RegisterDevice(ctx context.Context, input RegisterDeviceInput) (*DeviceDTO, error)
	GetDevice(ctx context.Context, id uuid.UUID) (*DeviceDTO, error)
	LookupByIMEI(ctx context.Context, imei string) (*DeviceDTO, error)
	ListDevices(ctx context.Context, limit int, cursor string) (*ListDevicesResult, error)

	CreateModel(ctx context.Context, dto CreateModelDTO) (*DeviceModelDTO, error)
	ListModels(ctx context.Context, includeInactive bool) ([]DeviceModelDTO, error)
	UpdateModel(ctx context.Context, id uuid.UUID, dto UpdateModelDTO) (*DeviceModelDTO, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// NewService builds a device registry service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("devices repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outboxSvc}, nil
}

func (s *service) RegisterDevice(ctx context.Context, input RegisterDeviceInput) (*DeviceDTO, error) {
	imei := strings.TrimSpace(input.IMEI)
	if imei == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "imei is required")
	}
	if input.ModelID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "model id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var created *models.Device
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		model, err := repo.FindModel(ctx, input.ModelID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "device model not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load device model")
		}
		if !model.IsActive {
			return pkgerrors.New(pkgerrors.CodeValidation, "device model is inactive")
		}

		device := &models.Device{
			IMEI:           imei,
			IMEI2:          input.IMEI2,
			ModelID:        model.ID,
			WarrantyStatus: enums.WarrantyStatusNew,
		}
		if err := repo.CreateDevice(ctx, device); err != nil {
			if dbpkg.IsUniqueViolation(err, "imei") {
				return pkgerrors.New(pkgerrors.CodeConflict, "imei already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create device")
		}
		device.Model = model
		created = device

		event := outbox.DomainEvent{
			EventType:     enums.EventDeviceRegistered,
			AggregateType: enums.AggregateDevice,
			AggregateID:   device.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: string(input.ActorRole)},
			Data: payloads.DeviceRegisteredEvent{
				DeviceID: device.ID,
				IMEI:     device.IMEI,
				ModelID:  device.ModelID,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return FromDB(created), nil
}

func (s *service) GetDevice(ctx context.Context, id uuid.UUID) (*DeviceDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "device id required")
	}
	device, err := s.repo.FindDevice(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "device not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load device")
	}
	return FromDB(device), nil
}

func (s *service) LookupByIMEI(ctx context.Context, imei string) (*DeviceDTO, error) {
	trimmed := strings.TrimSpace(imei)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "imei is required")
	}
	device, err := s.repo.FindDeviceByIMEI(ctx, trimmed)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "device not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup device")
	}
	return FromDB(device), nil
}

func (s *service) ListDevices(ctx context.Context, limit int, cursor string) (*ListDevicesResult, error) {
	var parsed *pagination.Cursor
	if cursor != "" {
		decoded, err := pagination.ParseCursor(cursor)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
		}
		parsed = decoded
	}

	normalized := pagination.NormalizeLimit(limit)
	rows, err := s.repo.ListDevices(ctx, pagination.LimitWithBuffer(limit), parsed)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list devices")
	}

	result := &ListDevicesResult{}
	if len(rows) > normalized {
		rows = rows[:normalized]
		last := rows[len(rows)-1]
		next := pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		result.NextCursor = &next
	}
	result.Devices = make([]DeviceDTO, 0, len(rows))
	for i := range rows {
		result.Devices = append(result.Devices, *FromDB(&rows[i]))
	}
	return result, nil
}

func (s *service) CreateModel(ctx context.Context, dto CreateModelDTO) (*DeviceModelDTO, error) {
	name := strings.TrimSpace(dto.ModelName)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "model name is required")
	}
	months := dto.WarrantyMonths
	if months <= 0 {
		months = 12
	}

	model := &models.DeviceModel{
		ModelName:      name,
		Manufacturer:   dto.Manufacturer,
		WarrantyMonths: months,
		IsActive:       true,
	}
	if err := s.repo.CreateModel(ctx, model); err != nil {
		if dbpkg.IsUniqueViolation(err, "model_name") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "model name already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create device model")
	}
	return ModelFromDB(model), nil
}

func (s *service) ListModels(ctx context.Context, includeInactive bool) ([]DeviceModelDTO, error) {
	rows, err := s.repo.ListModels(ctx, includeInactive)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list device models")
	}
	out := make([]DeviceModelDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *ModelFromDB(&rows[i]))
	}
	return out, nil
}

func (s *service) UpdateModel(ctx context.Context, id uuid.UUID, dto UpdateModelDTO) (*DeviceModelDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "model id required")
	}

	updates := map[string]interface{}{}
	if dto.Manufacturer != nil {
		updates["manufacturer"] = *dto.Manufacturer
	}
	if dto.WarrantyMonths != nil {
		if *dto.WarrantyMonths <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "warranty months must be positive")
		}
		updates["warranty_months"] = *dto.WarrantyMonths
	}
	if dto.IsActive != nil {
		updates["is_active"] = *dto.IsActive
	}

	if _, err := s.repo.FindModel(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "device model not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load device model")
	}
	if err := s.repo.UpdateModel(ctx, id, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update device model")
	}
	model, err := s.repo.FindModel(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload device model")
	}
	return ModelFromDB(model), nil
}
