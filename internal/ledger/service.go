package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/db/models"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
	pkgerrors "github.com/warrantyflow-sys/warrantyflow-sub001/pkg/errors"
)

type repairLedger interface {
	SumCompletedCostByLab(ctx context.Context, labID uuid.UUID) (decimal.Decimal, error)
	CountCompletedByLab(ctx context.Context, labID uuid.UUID) (int64, error)
}

type paymentLedger interface {
	SumByLab(ctx context.Context, labID uuid.UUID) (decimal.Decimal, error)
	CountByLab(ctx context.Context, labID uuid.UUID) (int64, error)
}

type userDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListByRole(ctx context.Context, role enums.UserRole) ([]models.User, error)
}

// LabBalance is the settlement position for one lab. Balance is what the
// business still owes the lab; a negative value means the lab was overpaid.
type LabBalance struct {
	LabID         uuid.UUID       `json:"lab_id"`
	LabName       string          `json:"lab_name"`
	LabEmail      string          `json:"lab_email"`
	TotalEarned   decimal.Decimal `json:"total_earned"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	Balance       decimal.Decimal `json:"balance"`
	RepairsCount  int64           `json:"repairs_count"`
	PaymentsCount int64           `json:"payments_count"`
	Overpaid      bool            `json:"overpaid"`
}

// Service computes lab balances. Every read recomputes from completed repair
// costs and recorded payments rather than maintaining a running counter.
type Service interface {
	GetLabBalance(ctx context.Context, labID uuid.UUID) (*LabBalance, error)
	GetAllLabBalances(ctx context.Context) ([]LabBalance, error)
}

type service struct {
	repairs  repairLedger
	payments paymentLedger
	users    userDirectory
}

// NewService builds a ledger service over the repair and payment stores.
func NewService(repairs repairLedger, payments paymentLedger, users userDirectory) (Service, error) {
	if repairs == nil {
		return nil, fmt.Errorf("repair ledger required")
	}
	if payments == nil {
		return nil, fmt.Errorf("payment ledger required")
	}
	if users == nil {
		return nil, fmt.Errorf("user directory required")
	}
	return &service{repairs: repairs, payments: payments, users: users}, nil
}

func (s *service) GetLabBalance(ctx context.Context, labID uuid.UUID) (*LabBalance, error) {
	if labID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lab id required")
	}

	lab, err := s.users.FindByID(ctx, labID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "lab not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load lab")
	}
	if lab.Role != enums.UserRoleLab {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user is not a lab")
	}

	return s.balanceFor(ctx, lab)
}

func (s *service) GetAllLabBalances(ctx context.Context) ([]LabBalance, error) {
	labs, err := s.users.ListByRole(ctx, enums.UserRoleLab)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list labs")
	}

	balances := make([]LabBalance, 0, len(labs))
	for i := range labs {
		balance, err := s.balanceFor(ctx, &labs[i])
		if err != nil {
			return nil, err
		}
		balances = append(balances, *balance)
	}

	sort.SliceStable(balances, func(i, j int) bool {
		return balances[i].Balance.GreaterThan(balances[j].Balance)
	})
	return balances, nil
}

// balanceFor runs the repair and payment reads back to back without a shared
// transaction; a write landing between the two is corrected by the next read.
func (s *service) balanceFor(ctx context.Context, lab *models.User) (*LabBalance, error) {
	earned, err := s.repairs.SumCompletedCostByLab(ctx, lab.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum repair costs")
	}
	repairsCount, err := s.repairs.CountCompletedByLab(ctx, lab.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count completed repairs")
	}
	paid, err := s.payments.SumByLab(ctx, lab.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum payments")
	}
	paymentsCount, err := s.payments.CountByLab(ctx, lab.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count payments")
	}

	balance := earned.Sub(paid)
	return &LabBalance{
		LabID:         lab.ID,
		LabName:       lab.FullName,
		LabEmail:      lab.Email,
		TotalEarned:   earned,
		TotalPaid:     paid,
		Balance:       balance,
		RepairsCount:  repairsCount,
		PaymentsCount: paymentsCount,
		Overpaid:      balance.IsNegative(),
	}, nil
}
