package warranties

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/devices"
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

// ActivateInput carries the data a store submits at point of sale.
type ActivateInput struct {
	DeviceID       uuid.UUID
	StoreID        uuid.UUID
	CustomerName   string
	CustomerPhone  string
	ActivationDate time.Time
	ActorUserID    uuid.UUID
	ActorRole      enums.UserRole
}

// CancelInput identifies the warranty being deactivated early.
type CancelInput struct {
	WarrantyID  uuid.UUID
	Reason      string
	ActorUserID uuid.UUID
	ActorRole   enums.UserRole
}

// ListResult is one page of warranties plus the continuation cursor.
type ListResult struct {
	Warranties []WarrantyDTO
	NextCursor *string
}

// Service defines warranty lifecycle operations.
type Service interface {
	Activate(ctx context.Context, input ActivateInput) (*WarrantyDTO, error)
	Cancel(ctx context.Context, input CancelInput) error
	GetCoverage(ctx context.Context, deviceID uuid.UUID) (*CoverageDTO, error)
	ListByStore(ctx context.Context, storeID uuid.UUID, limit int, cursor string) (*ListResult, error)
}

type service struct {
	repo    Repository
	devices devices.Repository
	tx      txRunner
	outbox  outboxPublisher
}

// NewService builds a warranty service with the required dependencies.
func NewService(repo Repository, deviceRepo devices.Repository, tx txRunner, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("warranties repository required")
	}
	if deviceRepo == nil {
		return nil, fmt.Errorf("devices repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, devices: deviceRepo, tx: tx, outbox: outboxSvc}, nil
}

func (s *service) Activate(ctx context.Context, input ActivateInput) (*WarrantyDTO, error) {
	if input.DeviceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "device id required")
	}
	if input.StoreID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "store context missing")
	}
	if strings.TrimSpace(input.CustomerName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name required")
	}
	if strings.TrimSpace(input.CustomerPhone) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer phone required")
	}

	activation := input.ActivationDate
	if activation.IsZero() {
		activation = time.Now().UTC()
	}
	activation = truncateToDate(activation)

	var created *models.Warranty
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		deviceRepo := s.devices.WithTx(tx)

		device, err := deviceRepo.FindDevice(ctx, input.DeviceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "device not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load device")
		}
		if device.WarrantyStatus == enums.WarrantyStatusReplaced {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "device was replaced")
		}
		if device.Model == nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, gorm.ErrRecordNotFound, "device model missing")
		}
		if _, err := repo.FindActiveByDevice(ctx, device.ID); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "device already has an active warranty")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check active warranty")
		}

		warranty := &models.Warranty{
			DeviceID:       device.ID,
			StoreID:        input.StoreID,
			CustomerName:   strings.TrimSpace(input.CustomerName),
			CustomerPhone:  strings.TrimSpace(input.CustomerPhone),
			ActivationDate: activation,
			ExpiryDate:     activation.AddDate(0, device.Model.WarrantyMonths, 0),
			IsActive:       true,
		}
		if err := repo.Create(ctx, warranty); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_warranties_device_active") {
				return pkgerrors.New(pkgerrors.CodeConflict, "device already has an active warranty")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create warranty")
		}

		done, err := deviceRepo.UpdateWarrantyStatus(ctx, device.ID, enums.WarrantyStatusActive)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update device status")
		}
		if !done {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "device was replaced")
		}

		created = warranty
		event := outbox.DomainEvent{
			EventType:     enums.EventWarrantyActivated,
			AggregateType: enums.AggregateWarranty,
			AggregateID:   warranty.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: string(input.ActorRole)},
			Data: payloads.WarrantyActivatedEvent{
				WarrantyID:     warranty.ID,
				DeviceID:       warranty.DeviceID,
				StoreID:        warranty.StoreID,
				ActivationDate: warranty.ActivationDate,
				ExpiryDate:     warranty.ExpiryDate,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return FromModel(created), nil
}

func (s *service) Cancel(ctx context.Context, input CancelInput) error {
	if input.WarrantyID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "warranty id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		deviceRepo := s.devices.WithTx(tx)

		warranty, err := repo.FindByID(ctx, input.WarrantyID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "warranty not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load warranty")
		}

		now := time.Now().UTC()
		done, err := repo.Deactivate(ctx, warranty.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate warranty")
		}
		if !done {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "warranty already inactive")
		}

		done, err = deviceRepo.UpdateWarrantyStatus(ctx, warranty.DeviceID, enums.WarrantyStatusExpired)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update device status")
		}
		if !done {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "device was replaced")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventWarrantyCancelled,
			AggregateType: enums.AggregateWarranty,
			AggregateID:   warranty.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: string(input.ActorRole)},
			Data: payloads.WarrantyCancelledEvent{
				WarrantyID:    warranty.ID,
				DeviceID:      warranty.DeviceID,
				DeactivatedAt: now,
				Reason:        strings.TrimSpace(input.Reason),
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}

func (s *service) GetCoverage(ctx context.Context, deviceID uuid.UUID) (*CoverageDTO, error) {
	if deviceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "device id required")
	}

	warranty, err := s.repo.FindActiveByDevice(ctx, deviceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &CoverageDTO{DeviceID: deviceID, InWarranty: false}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load warranty")
	}

	today := truncateToDate(time.Now().UTC())
	return &CoverageDTO{
		DeviceID:   deviceID,
		InWarranty: !warranty.ExpiryDate.Before(today),
		Warranty:   FromModel(warranty),
	}, nil
}

func (s *service) ListByStore(ctx context.Context, storeID uuid.UUID, limit int, cursor string) (*ListResult, error) {
	if storeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}

	var parsed *pagination.Cursor
	if cursor != "" {
		decoded, err := pagination.ParseCursor(cursor)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
		}
		parsed = decoded
	}

	normalized := pagination.NormalizeLimit(limit)
	rows, err := s.repo.ListByStore(ctx, storeID, pagination.LimitWithBuffer(limit), parsed)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list warranties")
	}

	result := &ListResult{}
	if len(rows) > normalized {
		rows = rows[:normalized]
		last := rows[len(rows)-1]
		next := pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		result.NextCursor = &next
	}
	result.Warranties = make([]WarrantyDTO, 0, len(rows))
	for i := range rows {
		result.Warranties = append(result.Warranties, *FromModel(&rows[i]))
	}
	return result, nil
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
