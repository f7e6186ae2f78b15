package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/staff-portal/internal/core/domain"
	"github.com/clinicdesk/staff-portal/internal/core/ports"
)

type stubAuthService struct {
	loginFn func(ctx context.Context, identity, secret string) (*ports.LoginResult, error)
}

func (s *stubAuthService) Login(ctx context.Context, identity, secret string) (*ports.LoginResult, error) {
	return s.loginFn(ctx, identity, secret)
}

func (s *stubAuthService) Authenticate(context.Context, string) (*domain.Principal, error) {
	return nil, domain.ErrUnauthenticated
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func jsonContext(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestAuthHandler_Login_Success(t *testing.T) {
	e := newEcho()
	expires := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stub := &stubAuthService{
		loginFn: func(_ context.Context, identity, secret string) (*ports.LoginResult, error) {
			if identity != "alice" || secret != "s3cret!" {
				t.Fatalf("unexpected args: %s %s", identity, secret)
			}
			return &ports.LoginResult{
				Token:       "token123",
				ExpiresAt:   expires,
				SubjectID:   "42",
				Role:        domain.RoleDoctor,
				DisplayName: "alice",
			}, nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := jsonContext(e, http.MethodPost, "/v1/auth/login", `{"username":"alice","password":"s3cret!"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Token != "token123" || resp.TokenType != "Bearer" {
		t.Fatalf("unexpected token fields: %+v", resp)
	}
	if resp.SubjectID != "42" || resp.Role != "doctor" || resp.DisplayName != "alice" {
		t.Fatalf("unexpected identity fields: %+v", resp)
	}
	if !resp.ExpiresAt.Equal(expires) {
		t.Fatalf("expected expires_at %v, got %v", expires, resp.ExpiresAt)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		loginFn: func(context.Context, string, string) (*ports.LoginResult, error) {
			return nil, domain.ErrInvalidCredentials
		},
	}
	h := NewAuthHandler(stub)

	c, _ := jsonContext(e, http.MethodPost, "/v1/auth/login", `{"username":"alice","password":"bad"}`)
	if err := h.Login(c); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthHandler_Login_BadRequest(t *testing.T) {
	cases := map[string]string{
		"malformed json":   "{",
		"missing password": `{"username":"alice"}`,
		"missing username": `{"password":"secret"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			e := newEcho()
			stub := &stubAuthService{
				loginFn: func(context.Context, string, string) (*ports.LoginResult, error) {
					t.Fatalf("should not be called")
					return nil, nil
				},
			}
			h := NewAuthHandler(stub)

			c, _ := jsonContext(e, http.MethodPost, "/v1/auth/login", body)
			if err := h.Login(c); !errors.Is(err, domain.ErrBadRequest) {
				t.Fatalf("expected ErrBadRequest, got %v", err)
			}
		})
	}
}

func TestAuthHandler_Policy(t *testing.T) {
	e := newEcho()
	h := NewAuthHandler(&stubAuthService{})

	c, rec := jsonContext(e, http.MethodGet, "/v1/auth/policy", "")
	if err := h.Policy(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp policyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp.Operations) != len(domain.AllOperations()) {
		t.Fatalf("expected %d operations, got %d", len(domain.AllOperations()), len(resp.Operations))
	}

	byOp := make(map[string][]string)
	for _, entry := range resp.Operations {
		byOp[entry.Operation] = entry.Roles
	}
	if roles := byOp[string(domain.OpDeleteUser)]; len(roles) != 1 || roles[0] != "admin" {
		t.Fatalf("unexpected delete-user roles: %v", roles)
	}
	if roles := byOp[string(domain.OpViewOwnProfile)]; len(roles) != 3 {
		t.Fatalf("unexpected view-own-profile roles: %v", roles)
	}
}
