package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/auth"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/users"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/enums"
	pkgerrors "github.com/warrantyflow-sys/warrantyflow-sub001/pkg/errors"
)

type stubAuthService struct {
	resp *auth.LoginResponse
	err  error

	gotEmail string
}

func (s *stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	s.gotEmail = req.Email
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

type stubRegisterService struct {
	user *users.UserDTO
	err  error

	gotRole enums.UserRole
}

func (s *stubRegisterService) Register(ctx context.Context, req auth.RegisterRequest) (*users.UserDTO, error) {
	s.gotRole = req.Role
	if s.err != nil {
		return nil, s.err
	}
	return s.user, s.err
}

type stubAdminRegisterService struct {
	user *users.UserDTO
	err  error
}

func (s *stubAdminRegisterService) Register(ctx context.Context, req auth.AdminRegisterRequest) (*users.UserDTO, error) {
	return s.user, s.err
}

func TestAuthLoginSetsTokenHeader(t *testing.T) {
	userID := uuid.New()
	svc := &stubAuthService{resp: &auth.LoginResponse{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		User:         &users.UserDTO{ID: userID, Email: "store@example.com", Role: enums.UserRoleStore},
	}}

	body, _ := json.Marshal(map[string]string{"email": "store@example.com", "password": "hunter2!"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	AuthLogin(svc, nil)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("X-WF-Token"); got != "access-token" {
		t.Fatalf("expected access token header, got %q", got)
	}
	if svc.gotEmail != "store@example.com" {
		t.Fatalf("service saw email %q", svc.gotEmail)
	}

	var envelope struct {
		Data auth.LoginResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if envelope.Data.User == nil || envelope.Data.User.ID != userID {
		t.Fatalf("unexpected user in response: %+v", envelope.Data.User)
	}
}

func TestAuthLoginRejectsMalformedBody(t *testing.T) {
	svc := &stubAuthService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader([]byte(`{"email":"not-an-email"}`)))
	rec := httptest.NewRecorder()

	AuthLogin(svc, nil)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAuthLoginPassesThroughServiceError(t *testing.T) {
	svc := &stubAuthService{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")}
	body, _ := json.Marshal(map[string]string{"email": "store@example.com", "password": "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	AuthLogin(svc, nil)(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRegisterUserCreatesAccount(t *testing.T) {
	svc := &stubRegisterService{user: &users.UserDTO{ID: uuid.New(), Email: "lab@example.com", Role: enums.UserRoleLab}}
	body, _ := json.Marshal(map[string]any{
		"full_name": "North Lab",
		"email":     "lab@example.com",
		"password":  "super-secret",
		"role":      "lab",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/users", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	RegisterUser(svc, nil)(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.gotRole != enums.UserRoleLab {
		t.Fatalf("service saw role %q", svc.gotRole)
	}
}

func TestRegisterUserRejectsShortPassword(t *testing.T) {
	svc := &stubRegisterService{}
	body, _ := json.Marshal(map[string]any{
		"full_name": "North Lab",
		"email":     "lab@example.com",
		"password":  "short",
		"role":      "lab",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/users", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	RegisterUser(svc, nil)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAdminBootstrapRegisterCreatesAdmin(t *testing.T) {
	svc := &stubAdminRegisterService{user: &users.UserDTO{ID: uuid.New(), Email: "admin@example.com", Role: enums.UserRoleAdmin}}
	body, _ := json.Marshal(map[string]string{
		"full_name": "Root Admin",
		"email":     "admin@example.com",
		"password":  "super-secret",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/auth/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	AdminBootstrapRegister(svc, nil)(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data users.UserDTO `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if envelope.Data.Role != enums.UserRoleAdmin {
		t.Fatalf("expected admin role, got %q", envelope.Data.Role)
	}
}

func TestRegisterUserNilServiceFails(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/users", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()

	RegisterUser(nil, nil)(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
