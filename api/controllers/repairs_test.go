package controllers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/repairs"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
	pkgerrors "github.com/warrantyflow-sys/warrantyflow-sub001/pkg/errors"
)

type fakeRepairsService struct {
	createFn     func(ctx context.Context, input repairs.CreateInput) (*repairs.RepairDTO, error)
	claimFn      func(ctx context.Context, input repairs.ClaimInput) (*repairs.RepairDTO, error)
	transitionFn func(ctx context.Context, input repairs.TransitionInput) (*repairs.RepairDTO, error)
	getFn        func(ctx context.Context, id uuid.UUID) (*repairs.RepairDTO, error)
	listFn       func(ctx context.Context, input repairs.ListInput) (*repairs.ListResult, error)
}

func (s *fakeRepairsService) Create(ctx context.Context, input repairs.CreateInput) (*repairs.RepairDTO, error) {
	return s.createFn(ctx, input)
}

func (s *fakeRepairsService) Claim(ctx context.Context, input repairs.ClaimInput) (*repairs.RepairDTO, error) {
	return s.claimFn(ctx, input)
}

func (s *fakeRepairsService) Transition(ctx context.Context, input repairs.TransitionInput) (*repairs.RepairDTO, error) {
	return s.transitionFn(ctx, input)
}

func (s *fakeRepairsService) Get(ctx context.Context, id uuid.UUID) (*repairs.RepairDTO, error) {
	return s.getFn(ctx, id)
}

func (s *fakeRepairsService) List(ctx context.Context, input repairs.ListInput) (*repairs.ListResult, error) {
	return s.listFn(ctx, input)
}

func authedJSONRequest(method, target string, body []byte, userID uuid.UUID, role string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	ctx := middlewareContext(req.Context(), userID, role)
	return req.WithContext(ctx)
}

func TestCreateRepairMapsBodyToInput(t *testing.T) {
	storeID := uuid.New()
	deviceID := uuid.New()
	labID := uuid.New()

	var got repairs.CreateInput
	svc := &fakeRepairsService{
		createFn: func(ctx context.Context, input repairs.CreateInput) (*repairs.RepairDTO, error) {
			got = input
			return &repairs.RepairDTO{ID: uuid.New(), Status: enums.RepairStatusReceived}, nil
		},
	}

	body := []byte(`{
		"device_id": "` + deviceID.String() + `",
		"lab_id": "` + labID.String() + `",
		"fault_type": "screen",
		"customer_name": "Dana",
		"customer_phone": "+995551234567"
	}`)
	req := authedJSONRequest(http.MethodPost, "/api/v1/repairs", body, storeID, "store")
	rec := httptest.NewRecorder()

	CreateRepair(svc, nil)(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if got.DeviceID != deviceID {
		t.Fatalf("device id: got %s", got.DeviceID)
	}
	if got.LabID == nil || *got.LabID != labID {
		t.Fatalf("lab id: got %v", got.LabID)
	}
	if got.FaultType != enums.FaultTypeScreen {
		t.Fatalf("fault type: got %s", got.FaultType)
	}
	if got.ActorUserID != storeID || got.ActorRole != enums.UserRoleStore {
		t.Fatalf("actor: got %s %s", got.ActorUserID, got.ActorRole)
	}
}

func TestCreateRepairRejectsUnknownFaultType(t *testing.T) {
	svc := &fakeRepairsService{
		createFn: func(ctx context.Context, input repairs.CreateInput) (*repairs.RepairDTO, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	}

	body := []byte(`{
		"device_id": "` + uuid.NewString() + `",
		"fault_type": "antenna",
		"customer_name": "Dana",
		"customer_phone": "+995551234567"
	}`)
	req := authedJSONRequest(http.MethodPost, "/api/v1/repairs", body, uuid.New(), "store")
	rec := httptest.NewRecorder()

	CreateRepair(svc, nil)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestClaimRepairPassesActor(t *testing.T) {
	labID := uuid.New()
	repairID := uuid.New()

	var got repairs.ClaimInput
	svc := &fakeRepairsService{
		claimFn: func(ctx context.Context, input repairs.ClaimInput) (*repairs.RepairDTO, error) {
			got = input
			return &repairs.RepairDTO{ID: repairID, Status: enums.RepairStatusReceived}, nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/repairs/"+repairID.String()+"/claim", labID, "lab")
	req = withChiParam(req, "repairId", repairID.String())
	rec := httptest.NewRecorder()

	ClaimRepair(svc, nil)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got.RepairID != repairID || got.ActorUserID != labID || got.ActorRole != enums.UserRoleLab {
		t.Fatalf("unexpected claim input: %+v", got)
	}
}

func TestTransitionRepairParsesCost(t *testing.T) {
	repairID := uuid.New()

	var got repairs.TransitionInput
	svc := &fakeRepairsService{
		transitionFn: func(ctx context.Context, input repairs.TransitionInput) (*repairs.RepairDTO, error) {
			got = input
			return &repairs.RepairDTO{ID: repairID, Status: enums.RepairStatusCompleted}, nil
		},
	}

	body := []byte(`{"to_status": "completed", "cost": "45.50"}`)
	req := authedJSONRequest(http.MethodPost, "/api/v1/repairs/"+repairID.String()+"/transition", body, uuid.New(), "lab")
	req = withChiParam(req, "repairId", repairID.String())
	rec := httptest.NewRecorder()

	TransitionRepair(svc, nil)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got.ToStatus != enums.RepairStatusCompleted {
		t.Fatalf("status: got %s", got.ToStatus)
	}
	if got.Cost == nil || !got.Cost.Equal(decimalFromString(t, "45.50")) {
		t.Fatalf("cost: got %v", got.Cost)
	}
}

func TestTransitionRepairRejectsBadCost(t *testing.T) {
	svc := &fakeRepairsService{
		transitionFn: func(ctx context.Context, input repairs.TransitionInput) (*repairs.RepairDTO, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	}

	repairID := uuid.New()
	body := []byte(`{"to_status": "completed", "cost": "lots"}`)
	req := authedJSONRequest(http.MethodPost, "/api/v1/repairs/"+repairID.String()+"/transition", body, uuid.New(), "lab")
	req = withChiParam(req, "repairId", repairID.String())
	rec := httptest.NewRecorder()

	TransitionRepair(svc, nil)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestTransitionRepairSurfacesStateConflict(t *testing.T) {
	svc := &fakeRepairsService{
		transitionFn: func(ctx context.Context, input repairs.TransitionInput) (*repairs.RepairDTO, error) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "repair already completed")
		},
	}

	repairID := uuid.New()
	body := []byte(`{"to_status": "in_progress"}`)
	req := authedJSONRequest(http.MethodPost, "/api/v1/repairs/"+repairID.String()+"/transition", body, uuid.New(), "lab")
	req = withChiParam(req, "repairId", repairID.String())
	rec := httptest.NewRecorder()

	TransitionRepair(svc, nil)(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestListRepairsBuildsFilter(t *testing.T) {
	labID := uuid.New()

	var got repairs.ListInput
	svc := &fakeRepairsService{
		listFn: func(ctx context.Context, input repairs.ListInput) (*repairs.ListResult, error) {
			got = input
			return &repairs.ListResult{}, nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/v1/repairs?labId="+labID.String()+"&status=in_progress&limit=10", uuid.New(), "admin")
	rec := httptest.NewRecorder()

	ListRepairs(svc, nil)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got.Filter.LabID == nil || *got.Filter.LabID != labID {
		t.Fatalf("lab filter: got %v", got.Filter.LabID)
	}
	if got.Filter.Status == nil || *got.Filter.Status != enums.RepairStatusInProgress {
		t.Fatalf("status filter: got %v", got.Filter.Status)
	}
	if got.Limit != 10 {
		t.Fatalf("limit: got %d", got.Limit)
	}
}

func TestListRepairsRejectsBadStatus(t *testing.T) {
	svc := &fakeRepairsService{
		listFn: func(ctx context.Context, input repairs.ListInput) (*repairs.ListResult, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/v1/repairs?status=broken", uuid.New(), "admin")
	rec := httptest.NewRecorder()

	ListRepairs(svc, nil)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
