package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/db/models"
	pkgerrors "github.com/warrantyflow-sys/warrantyflow-sub001/pkg/errors"
)

type stubPricingStore struct {
	repairType *models.RepairType
	price      *models.LabRepairPrice

	createErr error
	updated   bool
}

func (s *stubPricingStore) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubPricingStore) CreateRepairType(ctx context.Context, rt *models.RepairType) error {
	return nil
}

func (s *stubPricingStore) FindRepairType(ctx context.Context, id uuid.UUID) (*models.RepairType, error) {
	if s.repairType == nil || s.repairType.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.repairType, nil
}

func (s *stubPricingStore) ListRepairTypes(ctx context.Context, includeInactive bool) ([]models.RepairType, error) {
	return nil, nil
}

func (s *stubPricingStore) UpdateRepairType(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	return nil
}

func (s *stubPricingStore) CreateLabPrice(ctx context.Context, price *models.LabRepairPrice) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.price = price
	return nil
}

func (s *stubPricingStore) UpdateLabPriceFrom(ctx context.Context, labID, repairTypeID uuid.UUID, expected, price decimal.Decimal, isActive bool) (bool, error) {
	if s.price == nil || !s.price.Price.Equal(expected) {
		return false, nil
	}
	s.price.Price = price
	s.price.IsActive = isActive
	s.updated = true
	return true, nil
}

func (s *stubPricingStore) FindLabPrice(ctx context.Context, labID, repairTypeID uuid.UUID) (*models.LabRepairPrice, error) {
	if s.price == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.price, nil
}

func (s *stubPricingStore) FindActiveLabPrice(ctx context.Context, labID, repairTypeID uuid.UUID) (*models.LabRepairPrice, error) {
	if s.price == nil || !s.price.IsActive {
		return nil, gorm.ErrRecordNotFound
	}
	return s.price, nil
}

func (s *stubPricingStore) ListLabPrices(ctx context.Context, labID uuid.UUID) ([]models.LabRepairPrice, error) {
	return nil, nil
}

func activeRepairType() *models.RepairType {
	return &models.RepairType{ID: uuid.New(), Name: "Screen Replacement", IsActive: true}
}

func TestSetLabPriceInsertsWhenNoneExpected(t *testing.T) {
	store := &stubPricingStore{repairType: activeRepairType()}
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	price, err := svc.SetLabPrice(context.Background(), SetLabPriceDTO{
		LabID:        uuid.New(),
		RepairTypeID: store.repairType.ID,
		Price:        decimal.RequireFromString("120.00"),
	})
	if err != nil {
		t.Fatalf("SetLabPrice: %v", err)
	}
	if !price.Price.Equal(decimal.RequireFromString("120.00")) {
		t.Fatalf("unexpected stored price %s", price.Price)
	}
	if !price.IsActive {
		t.Fatal("new price should be active")
	}
}

func TestSetLabPriceConflictsOnDuplicateInsert(t *testing.T) {
	store := &stubPricingStore{
		repairType: activeRepairType(),
		createErr:  errors.New(`duplicate key value violates unique constraint "ux_lab_repair_prices_lab_type"`),
	}
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, err = svc.SetLabPrice(context.Background(), SetLabPriceDTO{
		LabID:        uuid.New(),
		RepairTypeID: store.repairType.ID,
		Price:        decimal.RequireFromString("120.00"),
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestSetLabPriceConflictsOnStaleExpectedPrice(t *testing.T) {
	labID := uuid.New()
	rt := activeRepairType()
	store := &stubPricingStore{
		repairType: rt,
		price: &models.LabRepairPrice{
			ID:           uuid.New(),
			LabID:        labID,
			RepairTypeID: rt.ID,
			Price:        decimal.RequireFromString("90.00"),
			IsActive:     true,
		},
	}
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	stale := decimal.RequireFromString("80.00")
	_, err = svc.SetLabPrice(context.Background(), SetLabPriceDTO{
		LabID:         labID,
		RepairTypeID:  rt.ID,
		Price:         decimal.RequireFromString("100.00"),
		ExpectedPrice: &stale,
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if store.updated {
		t.Fatal("stale write must not touch the row")
	}

	current := decimal.RequireFromString("90.00")
	updated, err := svc.SetLabPrice(context.Background(), SetLabPriceDTO{
		LabID:         labID,
		RepairTypeID:  rt.ID,
		Price:         decimal.RequireFromString("100.00"),
		ExpectedPrice: &current,
	})
	if err != nil {
		t.Fatalf("SetLabPrice: %v", err)
	}
	if !updated.Price.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("unexpected price after update %s", updated.Price)
	}
}

func TestResolvePriceRequiresActiveRow(t *testing.T) {
	labID := uuid.New()
	rt := activeRepairType()
	store := &stubPricingStore{
		repairType: rt,
		price: &models.LabRepairPrice{
			ID:           uuid.New(),
			LabID:        labID,
			RepairTypeID: rt.ID,
			Price:        decimal.RequireFromString("55.00"),
			IsActive:     false,
		},
	}
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, err = svc.ResolvePrice(context.Background(), labID, rt.ID)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeMissingPrice {
		t.Fatalf("expected missing price, got %v", err)
	}

	store.price.IsActive = true
	price, err := svc.ResolvePrice(context.Background(), labID, rt.ID)
	if err != nil {
		t.Fatalf("ResolvePrice: %v", err)
	}
	if !price.Price.Equal(decimal.RequireFromString("55.00")) {
		t.Fatalf("unexpected price %s", price.Price)
	}
}
