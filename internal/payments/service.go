package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

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

type userDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// RecordInput captures one payout to a lab.
type RecordInput struct {
	LabID       uuid.UUID
	Amount      decimal.Decimal
	PaymentDate time.Time
	Reference   *string
	Notes       *string
	ActorUserID uuid.UUID
	ActorRole   enums.UserRole
}

// ListResult is one page of payments plus the continuation cursor.
type ListResult struct {
	Payments   []models.Payment
	NextCursor *string
}

// Service defines the payment operations.
type Service interface {
	Record(ctx context.Context, input RecordInput) (*models.Payment, error)
	ListByLab(ctx context.Context, labID uuid.UUID, limit int, cursor string) (*ListResult, error)
}

type service struct {
	repo   Repository
	users  userDirectory
	tx     txRunner
	outbox outboxPublisher
}

// NewService builds a payments service with the required dependencies.
func NewService(repo Repository, users userDirectory, tx txRunner, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("user directory required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, users: users, tx: tx, outbox: outboxSvc}, nil
}

func (s *service) Record(ctx context.Context, input RecordInput) (*models.Payment, error) {
	if input.LabID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lab id required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ActorRole != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins record payments")
	}

	lab, err := s.users.FindByID(ctx, input.LabID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "lab not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load lab")
	}
	if lab.Role != enums.UserRoleLab {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payee is not a lab")
	}

	paymentDate := input.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = time.Now().UTC()
	}

	var created *models.Payment
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		payment := &models.Payment{
			LabID:       input.LabID,
			Amount:      input.Amount,
			PaymentDate: paymentDate,
			Reference:   input.Reference,
			Notes:       input.Notes,
			CreatedBy:   input.ActorUserID,
		}
		if err := repo.Create(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}
		created = payment

		event := outbox.DomainEvent{
			EventType:     enums.EventPaymentRecorded,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: string(input.ActorRole)},
			Data: payloads.PaymentRecordedEvent{
				PaymentID:   payment.ID,
				LabID:       payment.LabID,
				Amount:      payment.Amount,
				PaymentDate: payment.PaymentDate,
				RecordedBy:  payment.CreatedBy,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) ListByLab(ctx context.Context, labID uuid.UUID, limit int, cursor string) (*ListResult, error) {
	if labID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lab id required")
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
	rows, err := s.repo.ListByLab(ctx, labID, pagination.LimitWithBuffer(limit), parsed)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}

	result := &ListResult{}
	if len(rows) > normalized {
		rows = rows[:normalized]
		last := rows[len(rows)-1]
		next := pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		result.NextCursor = &next
	}
	result.Payments = rows
	return result, nil
}
