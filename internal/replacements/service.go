package replacements

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/devices"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/repairs"
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

// CreateInput captures a swap request from a store or lab.
type CreateInput struct {
	DeviceID    uuid.UUID
	RepairID    *uuid.UUID
	Reason      string
	ActorUserID uuid.UUID
	ActorRole   enums.UserRole
}

// Decision is the admin verdict on a pending request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ResolveInput carries the admin decision.
type ResolveInput struct {
	RequestID   uuid.UUID
	Decision    Decision
	AdminNotes  *string
	ActorUserID uuid.UUID
	ActorRole   enums.UserRole
}

// ListInput narrows and pages request listings.
type ListInput struct {
	Filter ListFilter
	Limit  int
	Cursor string
}

// ListResult is one page of requests plus the continuation cursor.
type ListResult struct {
	Requests   []RequestDTO
	NextCursor *string
}

// Service defines the replacement request operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*RequestDTO, error)
	Resolve(ctx context.Context, input ResolveInput) (*RequestDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*RequestDTO, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
}

type service struct {
	repo       Repository
	devices    devices.Repository
	repairs    repairs.Repository
	warranties warranties.Repository
	tx         txRunner
	outbox     outboxPublisher
}

// NewService builds a replacements service with the required dependencies.
func NewService(
	repo Repository,
	deviceRepo devices.Repository,
	repairRepo repairs.Repository,
	warrantyRepo warranties.Repository,
	tx txRunner,
	outboxSvc outboxPublisher,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("replacements repository required")
	}
	if deviceRepo == nil {
		return nil, fmt.Errorf("devices repository required")
	}
	if repairRepo == nil {
		return nil, fmt.Errorf("repairs repository required")
	}
	if warrantyRepo == nil {
		return nil, fmt.Errorf("warranties repository required")
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
		repairs:    repairRepo,
		warranties: warrantyRepo,
		tx:         tx,
		outbox:     outboxSvc,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*RequestDTO, error) {
	if input.DeviceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "device id required")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeMissingReason, "a reason is required to request replacement")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var created *models.ReplacementRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		deviceRepo := s.devices.WithTx(tx)
		repairRepo := s.repairs.WithTx(tx)

		device, err := deviceRepo.FindDevice(ctx, input.DeviceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "device not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load device")
		}
		if device.WarrantyStatus == enums.WarrantyStatusReplaced {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "device was already replaced")
		}

		var repair *models.Repair
		if input.RepairID != nil {
			repair, err = repairRepo.FindByID(ctx, *input.RepairID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "repair not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load repair")
			}
			if repair.DeviceID != device.ID {
				return pkgerrors.New(pkgerrors.CodeValidation, "repair does not belong to device")
			}
			if input.ActorRole == enums.UserRoleLab && (repair.LabID == nil || *repair.LabID != input.ActorUserID) {
				return pkgerrors.New(pkgerrors.CodeForbidden, "repair does not belong to lab")
			}
			if repair.Status == enums.RepairStatusCompleted || repair.Status == enums.RepairStatusCancelled {
				return pkgerrors.New(pkgerrors.CodeInvalidTransition,
					fmt.Sprintf("cannot request replacement for a %s repair", repair.Status))
			}
		}

		request := &models.ReplacementRequest{
			DeviceID:    device.ID,
			RepairID:    input.RepairID,
			RequesterID: input.ActorUserID,
			Status:      enums.RequestStatusPending,
			Reason:      reason,
		}
		if err := repo.Create(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create replacement request")
		}
		created = request

		// A live repair parks in replacement_requested while admins decide.
		if repair != nil && !repair.Status.IsTerminal() {
			if err := s.parkRepair(ctx, tx, repairRepo, repair, input.ActorUserID, input.ActorRole); err != nil {
				return err
			}
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventReplacementRequested,
			AggregateType: enums.AggregateReplacementRequest,
			AggregateID:   request.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: string(input.ActorRole)},
			Data: payloads.ReplacementRequestedEvent{
				RequestID:   request.ID,
				DeviceID:    request.DeviceID,
				RepairID:    request.RepairID,
				RequesterID: request.RequesterID,
				Reason:      request.Reason,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return FromModel(created), nil
}

func (s *service) Resolve(ctx context.Context, input ResolveInput) (*RequestDTO, error) {
	if input.RequestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ActorRole != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins resolve replacement requests")
	}

	var target enums.RequestStatus
	switch input.Decision {
	case DecisionApprove:
		target = enums.RequestStatusApproved
	case DecisionReject:
		target = enums.RequestStatusRejected
		if input.AdminNotes == nil || strings.TrimSpace(*input.AdminNotes) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeMissingReason, "rejection requires admin notes")
		}
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid decision")
	}

	var resolved *models.ReplacementRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		deviceRepo := s.devices.WithTx(tx)

		request, err := repo.FindByID(ctx, input.RequestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "replacement request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load replacement request")
		}

		now := time.Now().UTC()
		done, err := repo.Resolve(ctx, request.ID, target, input.AdminNotes, input.ActorUserID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve replacement request")
		}
		if !done {
			return pkgerrors.New(pkgerrors.CodeAlreadyResolved, "replacement request was already resolved")
		}

		request.Status = target
		request.AdminNotes = input.AdminNotes
		request.ResolvedBy = &input.ActorUserID
		request.ResolvedAt = &now
		resolved = request

		if target == enums.RequestStatusApproved {
			done, err := deviceRepo.UpdateWarrantyStatus(ctx, request.DeviceID, enums.WarrantyStatusReplaced)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark device replaced")
			}
			if !done {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "device was already replaced")
			}

			// Coverage ends with the swap.
			warrantyRepo := s.warranties.WithTx(tx)
			if warranty, err := warrantyRepo.FindActiveByDevice(ctx, request.DeviceID); err == nil {
				if _, err := warrantyRepo.Deactivate(ctx, warranty.ID, now); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate warranty")
				}
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check warranty")
			}

			// A linked repair still in flight is superseded by the swap.
			if request.RepairID != nil {
				repairRepo := s.repairs.WithTx(tx)
				repair, err := repairRepo.FindByID(ctx, *request.RepairID)
				if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load linked repair")
				}
				if repair != nil && !repair.Status.IsTerminal() {
					if err := s.parkRepair(ctx, tx, repairRepo, repair, input.ActorUserID, input.ActorRole); err != nil {
						return err
					}
				}
			}
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventReplacementResolved,
			AggregateType: enums.AggregateReplacementRequest,
			AggregateID:   request.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: string(input.ActorRole)},
			Data: payloads.ReplacementResolvedEvent{
				RequestID:   request.ID,
				DeviceID:    request.DeviceID,
				RequesterID: request.RequesterID,
				Status:      target,
				AdminNotes:  derefString(input.AdminNotes),
				ResolvedBy:  input.ActorUserID,
				ResolvedAt:  now,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return FromModel(resolved), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*RequestDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "replacement request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load replacement request")
	}
	return FromModel(request), nil
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list replacement requests")
	}

	result := &ListResult{}
	if len(rows) > normalized {
		rows = rows[:normalized]
		last := rows[len(rows)-1]
		next := pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		result.NextCursor = &next
	}
	result.Requests = make([]RequestDTO, 0, len(rows))
	for i := range rows {
		result.Requests = append(result.Requests, *FromModel(&rows[i]))
	}
	return result, nil
}

// parkRepair forces a live repair into replacement_requested with a
// compare-and-set on the loaded status.
func (s *service) parkRepair(ctx context.Context, tx *gorm.DB, repairRepo repairs.Repository, repair *models.Repair, actorID uuid.UUID, role enums.UserRole) error {
	from := repair.Status
	done, err := repairRepo.UpdateStatus(ctx, repair.ID, from, enums.RepairStatusReplacementRequested)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "park repair")
	}
	if !done {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "repair changed concurrently")
	}
	repair.Status = enums.RepairStatusReplacementRequested

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
			ToStatus:   enums.RepairStatusReplacementRequested,
			ChangedBy:  actorID,
		},
	}
	return s.outbox.Emit(ctx, tx, event)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
