package repairs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/devices"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/pricing"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/warranties"
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

// CreateInput captures a device check-in.
type CreateInput struct {
	DeviceID                uuid.UUID
	LabID                   *uuid.UUID
	RepairTypeID            *uuid.UUID
	FaultType               enums.FaultType
	FaultDescription        *string
	CustomRepairDescription *string
	CustomRepairPrice       *string
	CustomerName            string
	CustomerPhone           string
	ActorUserID             uuid.UUID
	ActorRole               enums.UserRole
}

// ClaimInput assigns an unclaimed repair to the acting lab.
type ClaimInput struct {
	RepairID    uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   enums.UserRole
}

// TransitionInput moves a repair along the lifecycle. Cost is only consulted
// for the completed transition and overrides any stored price.
type TransitionInput struct {
	RepairID    uuid.UUID
	ToStatus    enums.RepairStatus
	Cost        *decimal.Decimal
	ActorUserID uuid.UUID
	ActorRole   enums.UserRole
}

// ListInput narrows and pages repair listings.
type ListInput struct {
	Filter ListFilter
	Limit  int
	Cursor string
}

// ListResult is one page of repairs plus the continuation cursor.
type ListResult struct {
	Repairs    []RepairDTO
	NextCursor *string
}

// Service is the repair lifecycle engine.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*RepairDTO, error)
	Claim(ctx context.Context, input ClaimInput) (*RepairDTO, error)
	Transition(ctx context.Context, input TransitionInput) (*RepairDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*RepairDTO, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
}

type service struct {
	repo       Repository
	devices    devices.Repository
	warranties warranties.Repository
	pricing    pricing.Repository
	tx         txRunner
	outbox     outboxPublisher
}

// NewService builds the repair engine with the required dependencies.
func NewService(
	repo Repository,
	deviceRepo devices.Repository,
	warrantyRepo warranties.Repository,
	pricingRepo pricing.Repository,
	tx txRunner,
	outboxSvc outboxPublisher,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("repairs repository required")
	}
	if deviceRepo == nil {
		return nil, fmt.Errorf("devices repository required")
	}
	if warrantyRepo == nil {
		return nil, fmt.Errorf("warranties repository required")
	}
	if pricingRepo == nil {
		return nil, fmt.Errorf("pricing repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:       repo,
		devices:    deviceRepo,
		warranties: warrantyRepo,
		pricing:    pricingRepo,
		tx:         tx,
		outbox:     outboxSvc,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*RepairDTO, error) {
	if input.DeviceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "device id required")
	}
	if !input.FaultType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid fault type")
	}
	if strings.TrimSpace(input.CustomerName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name required")
	}
	if strings.TrimSpace(input.CustomerPhone) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer phone required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.RepairTypeID == nil && input.CustomRepairDescription == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "repair type or custom description required")
	}

	customPrice, err := parseCustomPrice(input.CustomRepairPrice)
	if err != nil {
		return nil, err
	}

	var created *models.Repair
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		deviceRepo := s.devices.WithTx(tx)
		warrantyRepo := s.warranties.WithTx(tx)

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

		if input.RepairTypeID != nil {
			pricingRepo := s.pricing.WithTx(tx)
			if _, err := pricingRepo.FindRepairType(ctx, *input.RepairTypeID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "repair type not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load repair type")
			}
		}

		repair := &models.Repair{
			DeviceID:                device.ID,
			LabID:                   input.LabID,
			RepairTypeID:            input.RepairTypeID,
			Status:                  enums.RepairStatusReceived,
			FaultType:               input.FaultType,
			FaultDescription:        input.FaultDescription,
			CustomRepairDescription: input.CustomRepairDescription,
			CustomRepairPrice:       customPrice,
			CustomerName:            strings.TrimSpace(input.CustomerName),
			CustomerPhone:           strings.TrimSpace(input.CustomerPhone),
			CreatedBy:               input.ActorUserID,
		}
		if warranty, err := warrantyRepo.FindActiveByDevice(ctx, device.ID); err == nil {
			repair.WarrantyID = &warranty.ID
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check warranty")
		}

		if err := repo.Create(ctx, repair); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create repair")
		}
		created = repair

		event := outbox.DomainEvent{
			EventType:     enums.EventRepairCreated,
			AggregateType: enums.AggregateRepair,
			AggregateID:   repair.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: string(input.ActorRole)},
			Data: payloads.RepairCreatedEvent{
				RepairID:  repair.ID,
				DeviceID:  repair.DeviceID,
				FaultType: repair.FaultType,
				CreatedBy: repair.CreatedBy,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return FromModel(created), nil
}

func (s *service) Claim(ctx context.Context, input ClaimInput) (*RepairDTO, error) {
	if input.RepairID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "repair id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ActorRole != enums.UserRoleLab {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only labs claim repairs")
	}

	var claimed *models.Repair
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		repair, err := repo.FindByID(ctx, input.RepairID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "repair not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load repair")
		}

		done, err := repo.Claim(ctx, repair.ID, input.ActorUserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim repair")
		}
		if !done {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "repair is not available to claim")
		}

		from := repair.Status
		repair.Status = enums.RepairStatusInProgress
		repair.LabID = &input.ActorUserID
		claimed = repair

		return s.emitStatusChanged(ctx, tx, repair, from, input.ActorUserID, input.ActorRole)
	})
	if err != nil {
		return nil, err
	}
	return FromModel(claimed), nil
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (*RepairDTO, error) {
	if input.RepairID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "repair id required")
	}
	if !input.ToStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid target status")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ToStatus == enums.RepairStatusReplacementRequested {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "replacement requests go through the replacements flow")
	}
	if input.Cost != nil && input.Cost.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cost cannot be negative")
	}

	var updated *models.Repair
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		repair, err := repo.FindByID(ctx, input.RepairID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "repair not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load repair")
		}
		if err := s.guardActor(repair, input.ActorUserID, input.ActorRole); err != nil {
			return err
		}
		if !CanTransition(repair.Status, input.ToStatus) {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition,
				fmt.Sprintf("cannot move repair from %s to %s", repair.Status, input.ToStatus))
		}

		from := repair.Status
		if input.ToStatus == enums.RepairStatusCompleted {
			if err := s.complete(ctx, tx, repo, repair, input); err != nil {
				return err
			}
		} else {
			done, err := repo.UpdateStatus(ctx, repair.ID, from, input.ToStatus)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update repair status")
			}
			if !done {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "repair changed concurrently")
			}
			repair.Status = input.ToStatus
		}
		updated = repair

		return s.emitStatusChanged(ctx, tx, repair, from, input.ActorUserID, input.ActorRole)
	})
	if err != nil {
		return nil, err
	}
	return FromModel(updated), nil
}

// complete resolves the cost before the terminal transition: an explicit cost
// wins, then a custom quote, otherwise the assigned lab's price list must
// carry the repair type.
func (s *service) complete(ctx context.Context, tx *gorm.DB, repo Repository, repair *models.Repair, input TransitionInput) error {
	if repair.LabID == nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "repair has no lab assigned")
	}

	cost := input.Cost
	if cost == nil {
		cost = repair.CustomRepairPrice
	}
	if cost == nil {
		if repair.RepairTypeID == nil {
			return pkgerrors.New(pkgerrors.CodeMissingPrice, "no repair type and no custom price")
		}
		pricingRepo := s.pricing.WithTx(tx)
		price, err := pricingRepo.FindLabPrice(ctx, *repair.LabID, *repair.RepairTypeID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeMissingPrice, "lab has no price for this repair type")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load lab price")
		}
		if !price.IsActive {
			return pkgerrors.New(pkgerrors.CodeMissingPrice, "lab price is inactive")
		}
		cost = &price.Price
	}

	now := time.Now().UTC()
	done, err := repo.Complete(ctx, repair.ID, repair.Status, *cost, now)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete repair")
	}
	if !done {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "repair changed concurrently")
	}
	repair.Status = enums.RepairStatusCompleted
	repair.Cost = cost
	repair.CompletedAt = &now

	event := outbox.DomainEvent{
		EventType:     enums.EventRepairCompleted,
		AggregateType: enums.AggregateRepair,
		AggregateID:   repair.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: string(input.ActorRole)},
		Data: payloads.RepairCompletedEvent{
			RepairID:    repair.ID,
			DeviceID:    repair.DeviceID,
			LabID:       *repair.LabID,
			Cost:        *cost,
			CompletedAt: now,
		},
	}
	return s.outbox.Emit(ctx, tx, event)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*RepairDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "repair id required")
	}
	repair, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "repair not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load repair")
	}
	return FromModel(repair), nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	var parsed *pagination.Cursor
	if input.Cursor != "" {
		decoded, err := pagination.ParseCursor(input.Cursor)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
		}
		parsed = decoded
	}

	normalized := pagination.NormalizeLimit(input.Limit)
	rows, err := s.repo.List(ctx, input.Filter, pagination.LimitWithBuffer(input.Limit), parsed)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list repairs")
	}

	result := &ListResult{}
	if len(rows) > normalized {
		rows = rows[:normalized]
		last := rows[len(rows)-1]
		next := pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		result.NextCursor = &next
	}
	result.Repairs = make([]RepairDTO, 0, len(rows))
	for i := range rows {
		result.Repairs = append(result.Repairs, *FromModel(&rows[i]))
	}
	return result, nil
}

// guardActor enforces ownership: the owning lab moves its own repairs and
// admins can intervene. Stores only open tickets, never drive the lifecycle.
func (s *service) guardActor(repair *models.Repair, actorID uuid.UUID, role enums.UserRole) error {
	switch role {
	case enums.UserRoleAdmin:
		return nil
	case enums.UserRoleLab:
		if repair.LabID == nil || *repair.LabID != actorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "repair does not belong to lab")
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the owning lab or an admin transitions repairs")
	}
}

func (s *service) emitStatusChanged(ctx context.Context, tx *gorm.DB, repair *models.Repair, from enums.RepairStatus, actorID uuid.UUID, role enums.UserRole) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventRepairStatusChanged,
		AggregateType: enums.AggregateRepair,
		AggregateID:   repair.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{UserID: actorID, Role: string(role)},
		Data: payloads.RepairStatusChangedEvent{
			RepairID:   repair.ID,
			DeviceID:   repair.DeviceID,
			LabID:      repair.LabID,
			FromStatus: from,
			ToStatus:   repair.Status,
			ChangedBy:  actorID,
		},
	}
	return s.outbox.Emit(ctx, tx, event)
}

func parseCustomPrice(raw *string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	value, err := decimal.NewFromString(strings.TrimSpace(*raw))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid custom repair price")
	}
	if value.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "custom repair price cannot be negative")
	}
	return &value, nil
}
