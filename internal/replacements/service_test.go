package replacements

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
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

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubRequestRepo struct {
	requests map[uuid.UUID]*models.ReplacementRequest
}

func newStubRequestRepo() *stubRequestRepo {
	return &stubRequestRepo{requests: make(map[uuid.UUID]*models.ReplacementRequest)}
}

func (s *stubRequestRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRequestRepo) Create(ctx context.Context, request *models.ReplacementRequest) error {
	request.ID = uuid.New()
	request.CreatedAt = time.Now().UTC()
	s.requests[request.ID] = request
	return nil
}

func (s *stubRequestRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.ReplacementRequest, error) {
	if r, ok := s.requests[id]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRequestRepo) List(ctx context.Context, filter ListFilter, limit int, cursor *pagination.Cursor) ([]models.ReplacementRequest, error) {
	var rows []models.ReplacementRequest
	for _, r := range s.requests {
		rows = append(rows, *r)
	}
	return rows, nil
}

func (s *stubRequestRepo) Resolve(ctx context.Context, id uuid.UUID, status enums.RequestStatus, notes *string, resolvedBy uuid.UUID, at time.Time) (bool, error) {
	r, ok := s.requests[id]
	if !ok || r.Status != enums.RequestStatusPending {
		return false, nil
	}
	r.Status = status
	r.AdminNotes = notes
	r.ResolvedBy = &resolvedBy
	r.ResolvedAt = &at
	return true, nil
}

func (s *stubRequestRepo) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.ReplacementRequest, error) {
	return nil, nil
}

type stubDeviceRepo struct {
	device *models.Device
}

func (s *stubDeviceRepo) WithTx(tx *gorm.DB) devices.Repository { return s }
func (s *stubDeviceRepo) CreateModel(ctx context.Context, model *models.DeviceModel) error {
	return nil
}
func (s *stubDeviceRepo) FindModel(ctx context.Context, id uuid.UUID) (*models.DeviceModel, error) {
	return nil, gorm.ErrRecordNotFound
}
func (s *stubDeviceRepo) ListModels(ctx context.Context, includeInactive bool) ([]models.DeviceModel, error) {
	return nil, nil
}
func (s *stubDeviceRepo) UpdateModel(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	return nil
}
func (s *stubDeviceRepo) CreateDevice(ctx context.Context, device *models.Device) error { return nil }
func (s *stubDeviceRepo) FindDevice(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	if s.device == nil || s.device.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.device, nil
}
func (s *stubDeviceRepo) FindDeviceByIMEI(ctx context.Context, imei string) (*models.Device, error) {
	return nil, gorm.ErrRecordNotFound
}
func (s *stubDeviceRepo) ListDevices(ctx context.Context, limit int, cursor *pagination.Cursor) ([]models.Device, error) {
	return nil, nil
}
func (s *stubDeviceRepo) UpdateWarrantyStatus(ctx context.Context, id uuid.UUID, status enums.WarrantyStatus) (bool, error) {
	if s.device == nil || s.device.ID != id || s.device.WarrantyStatus == enums.WarrantyStatusReplaced {
		return false, nil
	}
	s.device.WarrantyStatus = status
	return true, nil
}

type stubRepairRepo struct {
	repair *models.Repair
}

func (s *stubRepairRepo) WithTx(tx *gorm.DB) repairs.Repository { return s }
func (s *stubRepairRepo) Create(ctx context.Context, repair *models.Repair) error {
	return nil
}
func (s *stubRepairRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Repair, error) {
	if s.repair == nil || s.repair.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.repair, nil
}
func (s *stubRepairRepo) List(ctx context.Context, filter repairs.ListFilter, limit int, cursor *pagination.Cursor) ([]models.Repair, error) {
	return nil, nil
}
func (s *stubRepairRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.RepairStatus) (bool, error) {
	if s.repair == nil || s.repair.ID != id || s.repair.Status != from {
		return false, nil
	}
	s.repair.Status = to
	return true, nil
}
func (s *stubRepairRepo) Claim(ctx context.Context, id, labID uuid.UUID) (bool, error) {
	return false, nil
}
func (s *stubRepairRepo) Complete(ctx context.Context, id uuid.UUID, from enums.RepairStatus, cost decimal.Decimal, at time.Time) (bool, error) {
	return false, nil
}
func (s *stubRepairRepo) SumCompletedCostByLab(ctx context.Context, labID uuid.UUID) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
func (s *stubRepairRepo) CountCompletedByLab(ctx context.Context, labID uuid.UUID) (int64, error) {
	return 0, nil
}
func (s *stubRepairRepo) ListStale(ctx context.Context, status enums.RepairStatus, olderThan time.Time, limit int) ([]models.Repair, error) {
	return nil, nil
}

type stubWarrantyRepo struct {
	active *models.Warranty
}

func (s *stubWarrantyRepo) WithTx(tx *gorm.DB) warranties.Repository { return s }
func (s *stubWarrantyRepo) Create(ctx context.Context, warranty *models.Warranty) error {
	return nil
}
func (s *stubWarrantyRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Warranty, error) {
	return nil, gorm.ErrRecordNotFound
}
func (s *stubWarrantyRepo) FindActiveByDevice(ctx context.Context, deviceID uuid.UUID) (*models.Warranty, error) {
	if s.active != nil && s.active.DeviceID == deviceID && s.active.IsActive {
		return s.active, nil
	}
	return nil, gorm.ErrRecordNotFound
}
func (s *stubWarrantyRepo) Deactivate(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	if s.active == nil || s.active.ID != id || !s.active.IsActive {
		return false, nil
	}
	s.active.IsActive = false
	s.active.DeactivatedAt = &at
	return true, nil
}
func (s *stubWarrantyRepo) ListByStore(ctx context.Context, storeID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Warranty, error) {
	return nil, nil
}
func (s *stubWarrantyRepo) ListExpiredCoverage(ctx context.Context, asOf time.Time, limit int) ([]models.Warranty, error) {
	return nil, nil
}

type testEnv struct {
	svc        Service
	repo       *stubRequestRepo
	device     *models.Device
	repairs    *stubRepairRepo
	warranties *stubWarrantyRepo
	sink       *stubOutbox
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	device := &models.Device{
		ID:             uuid.New(),
		IMEI:           "356938035643809",
		ModelID:        uuid.New(),
		WarrantyStatus: enums.WarrantyStatusActive,
	}
	repo := newStubRequestRepo()
	repairRepo := &stubRepairRepo{}
	warrantyRepo := &stubWarrantyRepo{}
	sink := &stubOutbox{}
	svc, err := NewService(repo, &stubDeviceRepo{device: device}, repairRepo, warrantyRepo, stubTxRunner{}, sink)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return &testEnv{svc: svc, repo: repo, device: device, repairs: repairRepo, warranties: warrantyRepo, sink: sink}
}

func TestCreateRequiresReason(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Create(context.Background(), CreateInput{
		DeviceID:    env.device.ID,
		Reason:      "   ",
		ActorUserID: uuid.New(),
		ActorRole:   enums.UserRoleStore,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeMissingReason {
		t.Fatalf("expected missing reason error, got %v", err)
	}
}

func TestCreateParksInFlightRepair(t *testing.T) {
	env := newTestEnv(t)
	labID := uuid.New()
	repair := &models.Repair{
		ID:       uuid.New(),
		DeviceID: env.device.ID,
		LabID:    &labID,
		Status:   enums.RepairStatusInProgress,
	}
	env.repairs.repair = repair

	dto, err := env.svc.Create(context.Background(), CreateInput{
		DeviceID:    env.device.ID,
		RepairID:    &repair.ID,
		Reason:      "board damage beyond repair",
		ActorUserID: labID,
		ActorRole:   enums.UserRoleLab,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if dto.Status != enums.RequestStatusPending {
		t.Fatalf("expected pending request, got %s", dto.Status)
	}
	if repair.Status != enums.RepairStatusReplacementRequested {
		t.Fatalf("expected repair parked, got %s", repair.Status)
	}

	var kinds []enums.OutboxEventType
	for _, e := range env.sink.events {
		kinds = append(kinds, e.EventType)
	}
	if len(kinds) != 2 || kinds[0] != enums.EventRepairStatusChanged || kinds[1] != enums.EventReplacementRequested {
		t.Fatalf("unexpected event sequence %v", kinds)
	}
}

func TestCreateRejectsForeignRepairForLab(t *testing.T) {
	env := newTestEnv(t)
	owner := uuid.New()
	repair := &models.Repair{
		ID:       uuid.New(),
		DeviceID: env.device.ID,
		LabID:    &owner,
		Status:   enums.RepairStatusInProgress,
	}
	env.repairs.repair = repair

	_, err := env.svc.Create(context.Background(), CreateInput{
		DeviceID:    env.device.ID,
		RepairID:    &repair.ID,
		Reason:      "board damage",
		ActorUserID: uuid.New(),
		ActorRole:   enums.UserRoleLab,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestResolveApproveMarksDeviceReplaced(t *testing.T) {
	env := newTestEnv(t)
	request := &models.ReplacementRequest{
		DeviceID:    env.device.ID,
		RequesterID: uuid.New(),
		Status:      enums.RequestStatusPending,
		Reason:      "unrepairable",
	}
	if err := env.repo.Create(context.Background(), request); err != nil {
		t.Fatalf("seed request: %v", err)
	}

	admin := uuid.New()
	dto, err := env.svc.Resolve(context.Background(), ResolveInput{
		RequestID:   request.ID,
		Decision:    DecisionApprove,
		ActorUserID: admin,
		ActorRole:   enums.UserRoleAdmin,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if dto.Status != enums.RequestStatusApproved {
		t.Fatalf("expected approved, got %s", dto.Status)
	}
	if dto.ResolvedBy == nil || *dto.ResolvedBy != admin || dto.ResolvedAt == nil {
		t.Fatalf("expected resolution stamp, got %+v", dto)
	}
	if env.device.WarrantyStatus != enums.WarrantyStatusReplaced {
		t.Fatalf("expected device replaced, got %s", env.device.WarrantyStatus)
	}

	if len(env.sink.events) != 1 || env.sink.events[0].EventType != enums.EventReplacementResolved {
		t.Fatalf("expected replacement_resolved event, got %+v", env.sink.events)
	}
	payload := env.sink.events[0].Data.(payloads.ReplacementResolvedEvent)
	if payload.Status != enums.RequestStatusApproved {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestResolveRejectRequiresNotes(t *testing.T) {
	env := newTestEnv(t)
	request := &models.ReplacementRequest{
		DeviceID:    env.device.ID,
		RequesterID: uuid.New(),
		Status:      enums.RequestStatusPending,
		Reason:      "unrepairable",
	}
	if err := env.repo.Create(context.Background(), request); err != nil {
		t.Fatalf("seed request: %v", err)
	}

	_, err := env.svc.Resolve(context.Background(), ResolveInput{
		RequestID:   request.ID,
		Decision:    DecisionReject,
		ActorUserID: uuid.New(),
		ActorRole:   enums.UserRoleAdmin,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeMissingReason {
		t.Fatalf("expected missing reason error, got %v", err)
	}
	if env.device.WarrantyStatus != enums.WarrantyStatusActive {
		t.Fatalf("device must be untouched on failed resolve")
	}
}

func TestResolveExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	request := &models.ReplacementRequest{
		DeviceID:    env.device.ID,
		RequesterID: uuid.New(),
		Status:      enums.RequestStatusPending,
		Reason:      "unrepairable",
	}
	if err := env.repo.Create(context.Background(), request); err != nil {
		t.Fatalf("seed request: %v", err)
	}

	if _, err := env.svc.Resolve(context.Background(), ResolveInput{
		RequestID:   request.ID,
		Decision:    DecisionApprove,
		ActorUserID: uuid.New(),
		ActorRole:   enums.UserRoleAdmin,
	}); err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	notes := "already swapped"
	_, err := env.svc.Resolve(context.Background(), ResolveInput{
		RequestID:   request.ID,
		Decision:    DecisionReject,
		AdminNotes:  &notes,
		ActorUserID: uuid.New(),
		ActorRole:   enums.UserRoleAdmin,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeAlreadyResolved {
		t.Fatalf("expected already resolved error, got %v", err)
	}
}

func TestCreateRejectsCompletedRepair(t *testing.T) {
	env := newTestEnv(t)
	labID := uuid.New()
	repair := &models.Repair{
		ID:       uuid.New(),
		DeviceID: env.device.ID,
		LabID:    &labID,
		Status:   enums.RepairStatusCompleted,
	}
	env.repairs.repair = repair

	_, err := env.svc.Create(context.Background(), CreateInput{
		DeviceID:    env.device.ID,
		RepairID:    &repair.ID,
		Reason:      "customer changed their mind",
		ActorUserID: labID,
		ActorRole:   enums.UserRoleLab,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInvalidTransition {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestResolveApproveDeactivatesWarranty(t *testing.T) {
	env := newTestEnv(t)
	env.warranties.active = &models.Warranty{
		ID:       uuid.New(),
		DeviceID: env.device.ID,
		IsActive: true,
	}
	request := &models.ReplacementRequest{
		DeviceID:    env.device.ID,
		RequesterID: uuid.New(),
		Status:      enums.RequestStatusPending,
		Reason:      "unrepairable",
	}
	if err := env.repo.Create(context.Background(), request); err != nil {
		t.Fatalf("seed request: %v", err)
	}

	if _, err := env.svc.Resolve(context.Background(), ResolveInput{
		RequestID:   request.ID,
		Decision:    DecisionApprove,
		ActorUserID: uuid.New(),
		ActorRole:   enums.UserRoleAdmin,
	}); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if env.warranties.active.IsActive {
		t.Fatal("expected warranty deactivated on approval")
	}
	if env.warranties.active.DeactivatedAt == nil {
		t.Fatal("expected deactivation stamp")
	}
}

func TestResolveRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Resolve(context.Background(), ResolveInput{
		RequestID:   uuid.New(),
		Decision:    DecisionApprove,
		ActorUserID: uuid.New(),
		ActorRole:   enums.UserRoleLab,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
