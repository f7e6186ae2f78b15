package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/staff-portal/internal/core/domain"
)

type recordingAudit struct {
	mu     sync.Mutex
	events []domain.AuthEvent
}

func (a *recordingAudit) Enqueue(ev domain.AuthEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
}

func guardContext(p *domain.Principal) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if p != nil {
		c.Set(principalKey, p)
	}
	return c, rec
}

func TestGuard_Allows(t *testing.T) {
	c, rec := guardContext(&domain.Principal{SubjectID: "admin", Role: domain.RoleAdmin})

	called := false
	handler := Guard(domain.OpDeleteUser, nil)(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next handler not called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestGuard_ForbidsAndAudits(t *testing.T) {
	audit := &recordingAudit{}
	c, _ := guardContext(&domain.Principal{SubjectID: "staff", Role: domain.RoleStaff})

	handler := Guard(domain.OpDeleteUser, audit)(func(c echo.Context) error {
		t.Fatalf("next handler must not run")
		return nil
	})

	if err := handler(c); err != domain.ErrForbidden {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if len(audit.events) != 1 {
		t.Fatalf("expected one audit event, got %d", len(audit.events))
	}
	ev := audit.events[0]
	if ev.Kind != domain.EventAuthorization || ev.Operation != domain.OpDeleteUser || ev.SubjectID != "staff" {
		t.Fatalf("unexpected audit event: %+v", ev)
	}
}

func TestGuard_SelfServiceForEveryRole(t *testing.T) {
	for _, role := range domain.AllRoles {
		c, _ := guardContext(&domain.Principal{SubjectID: "x", Role: role})
		handler := Guard(domain.OpViewOwnProfile, nil)(func(c echo.Context) error { return nil })

		if err := handler(c); err != nil {
			t.Fatalf("role %s: expected access, got %v", role, err)
		}
	}
}

func TestGuard_WithoutPrincipalIsUnauthenticated(t *testing.T) {
	c, _ := guardContext(nil)
	handler := Guard(domain.OpViewOwnProfile, nil)(func(c echo.Context) error { return nil })

	if err := handler(c); err != domain.ErrUnauthenticated {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}
