package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/staff-portal/internal/core/domain"
	"github.com/clinicdesk/staff-portal/internal/core/ports"
)

type stubUserService struct {
	createFn   func(ctx context.Context, actor *domain.Principal, in ports.CreateUserInput) (*domain.User, error)
	listFn     func(ctx context.Context, actor *domain.Principal) ([]*domain.User, error)
	renameFn   func(ctx context.Context, actor *domain.Principal, targetID, identity string) error
	deleteFn   func(ctx context.Context, actor *domain.Principal, targetID string) error
	profileFn  func(ctx context.Context, actor *domain.Principal) (*ports.Profile, error)
	passwordFn func(ctx context.Context, actor *domain.Principal, current, next string) error
}

func (s *stubUserService) CreateUser(ctx context.Context, actor *domain.Principal, in ports.CreateUserInput) (*domain.User, error) {
	return s.createFn(ctx, actor, in)
}

func (s *stubUserService) ListUsers(ctx context.Context, actor *domain.Principal) ([]*domain.User, error) {
	return s.listFn(ctx, actor)
}

func (s *stubUserService) UpdateIdentity(ctx context.Context, actor *domain.Principal, targetID, identity string) error {
	return s.renameFn(ctx, actor, targetID, identity)
}

func (s *stubUserService) DeleteUser(ctx context.Context, actor *domain.Principal, targetID string) error {
	return s.deleteFn(ctx, actor, targetID)
}

func (s *stubUserService) GetProfile(ctx context.Context, actor *domain.Principal) (*ports.Profile, error) {
	return s.profileFn(ctx, actor)
}

func (s *stubUserService) ChangeOwnPassword(ctx context.Context, actor *domain.Principal, current, next string) error {
	return s.passwordFn(ctx, actor, current, next)
}

var adminPrincipal = &domain.Principal{SubjectID: "1", Role: domain.RoleAdmin, DisplayName: "root"}

// withPrincipal mimics the Auth middleware.
func withPrincipal(c echo.Context, p *domain.Principal) {
	c.SetRequest(c.Request().WithContext(domain.WithPrincipal(c.Request().Context(), p)))
}

func TestUserHandler_RequiresPrincipal(t *testing.T) {
	e := newEcho()
	h := NewUserHandler(&stubUserService{})

	routes := map[string]echo.HandlerFunc{
		"list":     h.List,
		"create":   h.Create,
		"rename":   h.UpdateIdentity,
		"delete":   h.Delete,
		"profile":  h.Profile,
		"password": h.ChangePassword,
	}
	for name, fn := range routes {
		t.Run(name, func(t *testing.T) {
			c, _ := jsonContext(e, http.MethodGet, "/", "{}")
			if err := fn(c); !errors.Is(err, domain.ErrUnauthenticated) {
				t.Fatalf("expected ErrUnauthenticated, got %v", err)
			}
		})
	}
}

func TestUserHandler_Create_Success(t *testing.T) {
	e := newEcho()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	stub := &stubUserService{
		createFn: func(_ context.Context, actor *domain.Principal, in ports.CreateUserInput) (*domain.User, error) {
			if actor != adminPrincipal {
				t.Fatalf("actor not forwarded")
			}
			if in.Identity != "nurse.joy" || in.Secret != "hunter22" || in.Role != "staff" {
				t.Fatalf("unexpected input: %+v", in)
			}
			return &domain.User{ID: "abc123", Identity: in.Identity, Role: domain.RoleStaff, CreatedAt: created}, nil
		},
	}
	h := NewUserHandler(stub)

	c, rec := jsonContext(e, http.MethodPost, "/v1/users", `{"username":"nurse.joy","password":"hunter22","role":"staff"}`)
	withPrincipal(c, adminPrincipal)

	if err := h.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if loc := rec.Header().Get(echo.HeaderLocation); loc != "/v1/users/abc123" {
		t.Fatalf("unexpected Location %q", loc)
	}

	var resp userResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.ID != "abc123" || resp.Username != "nurse.joy" || resp.Role != "staff" || !resp.CreatedAt.Equal(created) {
		t.Fatalf("unexpected body: %+v", resp)
	}
	var raw map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &raw)
	if _, leaked := raw["password"]; leaked {
		t.Fatalf("password leaked: %v", raw)
	}
}

func TestUserHandler_Create_Validation(t *testing.T) {
	cases := map[string]string{
		"short username": `{"username":"ab","password":"hunter22","role":"staff"}`,
		"short password": `{"username":"nurse","password":"abc","role":"staff"}`,
		"unknown role":   `{"username":"nurse","password":"hunter22","role":"janitor"}`,
		"missing role":   `{"username":"nurse","password":"hunter22"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			e := newEcho()
			stub := &stubUserService{
				createFn: func(context.Context, *domain.Principal, ports.CreateUserInput) (*domain.User, error) {
					t.Fatalf("should not be called")
					return nil, nil
				},
			}
			h := NewUserHandler(stub)

			c, _ := jsonContext(e, http.MethodPost, "/v1/users", body)
			withPrincipal(c, adminPrincipal)
			if err := h.Create(c); !errors.Is(err, domain.ErrBadRequest) {
				t.Fatalf("expected ErrBadRequest, got %v", err)
			}
		})
	}
}

func TestUserHandler_Create_PropagatesServiceError(t *testing.T) {
	e := newEcho()
	stub := &stubUserService{
		createFn: func(context.Context, *domain.Principal, ports.CreateUserInput) (*domain.User, error) {
			return nil, domain.ErrDuplicateIdentity
		},
	}
	h := NewUserHandler(stub)

	c, _ := jsonContext(e, http.MethodPost, "/v1/users", `{"username":"nurse","password":"hunter22","role":"staff"}`)
	withPrincipal(c, adminPrincipal)
	if err := h.Create(c); !errors.Is(err, domain.ErrDuplicateIdentity) {
		t.Fatalf("expected ErrDuplicateIdentity, got %v", err)
	}
}

func TestUserHandler_List(t *testing.T) {
	e := newEcho()
	stub := &stubUserService{
		listFn: func(context.Context, *domain.Principal) ([]*domain.User, error) {
			return []*domain.User{
				{ID: "2", Identity: "bob", Role: domain.RoleDoctor},
				{ID: "1", Identity: "alice", Role: domain.RoleStaff},
			}, nil
		},
	}
	h := NewUserHandler(stub)

	c, rec := jsonContext(e, http.MethodGet, "/v1/users", "")
	withPrincipal(c, adminPrincipal)
	if err := h.List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp listUsersResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Total != 2 || resp.Users[0].Username != "bob" || resp.Users[1].Username != "alice" {
		t.Fatalf("unexpected body: %+v", resp)
	}
}

func TestUserHandler_UpdateIdentity(t *testing.T) {
	e := newEcho()
	stub := &stubUserService{
		renameFn: func(_ context.Context, _ *domain.Principal, targetID, identity string) error {
			if targetID != "7" || identity != "dr.house" {
				t.Fatalf("unexpected args: %s %s", targetID, identity)
			}
			return nil
		},
	}
	h := NewUserHandler(stub)

	c, rec := jsonContext(e, http.MethodPatch, "/v1/users/7/identity", `{"username":"dr.house"}`)
	c.SetParamNames("id")
	c.SetParamValues("7")
	withPrincipal(c, adminPrincipal)

	if err := h.UpdateIdentity(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestUserHandler_Delete(t *testing.T) {
	e := newEcho()
	stub := &stubUserService{
		deleteFn: func(_ context.Context, _ *domain.Principal, targetID string) error {
			if targetID == "1" {
				return domain.ErrForbidden
			}
			return nil
		},
	}
	h := NewUserHandler(stub)

	c, rec := jsonContext(e, http.MethodDelete, "/v1/users/9", "")
	c.SetParamNames("id")
	c.SetParamValues("9")
	withPrincipal(c, adminPrincipal)
	if err := h.Delete(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	c, _ = jsonContext(e, http.MethodDelete, "/v1/users/1", "")
	c.SetParamNames("id")
	c.SetParamValues("1")
	withPrincipal(c, adminPrincipal)
	if err := h.Delete(c); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestUserHandler_Profile(t *testing.T) {
	e := newEcho()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	stub := &stubUserService{
		profileFn: func(_ context.Context, actor *domain.Principal) (*ports.Profile, error) {
			if actor.SubjectID == "doctor" {
				return &ports.Profile{SubjectID: "doctor", Username: "doctor", DisplayName: "Doctor", Role: domain.RoleDoctor, Demo: true}, nil
			}
			return &ports.Profile{SubjectID: "5", Username: "alice", DisplayName: "alice", Role: domain.RoleStaff, CreatedAt: created}, nil
		},
	}
	h := NewUserHandler(stub)

	c, rec := jsonContext(e, http.MethodGet, "/v1/me", "")
	withPrincipal(c, &domain.Principal{SubjectID: "5", Role: domain.RoleStaff})
	if err := h.Profile(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp profileResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Username != "alice" || resp.Demo || resp.CreatedAt == nil || !resp.CreatedAt.Equal(created) {
		t.Fatalf("unexpected persisted profile: %+v", resp)
	}

	c, rec = jsonContext(e, http.MethodGet, "/v1/me", "")
	withPrincipal(c, &domain.Principal{SubjectID: "doctor", Role: domain.RoleDoctor, Demo: true})
	if err := h.Profile(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if raw["demo"] != true {
		t.Fatalf("expected demo profile, got %v", raw)
	}
	if _, ok := raw["created_at"]; ok {
		t.Fatalf("demo profile must omit created_at: %v", raw)
	}
}

func TestUserHandler_ChangePassword(t *testing.T) {
	e := newEcho()
	stub := &stubUserService{
		passwordFn: func(_ context.Context, _ *domain.Principal, current, next string) error {
			if current != "old-pass" || next != "new-pass" {
				t.Fatalf("unexpected args: %s %s", current, next)
			}
			return nil
		},
	}
	h := NewUserHandler(stub)

	c, rec := jsonContext(e, http.MethodPut, "/v1/me/password", `{"current_password":"old-pass","new_password":"new-pass"}`)
	withPrincipal(c, &domain.Principal{SubjectID: "5", Role: domain.RoleStaff})
	if err := h.ChangePassword(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	c, _ = jsonContext(e, http.MethodPut, "/v1/me/password", `{"current_password":"old-pass","new_password":"x"}`)
	withPrincipal(c, &domain.Principal{SubjectID: "5", Role: domain.RoleStaff})
	err := h.ChangePassword(c)
	if !errors.Is(err, domain.ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
	if want := "new_password must be at least 6 characters"; !strings.Contains(err.Error(), want) {
		t.Fatalf("expected %q in %q", want, err.Error())
	}
}
