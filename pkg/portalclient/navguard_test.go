package portalclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/staff-portal/internal/core/domain"
)

func guardFor(t *testing.T, role string, expires time.Time) *NavGuard {
	t.Helper()
	store := NewMemoryStore()
	if role != "" {
		s := &Session{Token: "tok", Role: role, Username: "u", ExpiresAt: expires}
		require.NoError(t, store.SetAll(s.values()))
	}
	g := NewNavGuard(store, DefaultRoutes, "/login")
	g.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	return g
}

func TestNavGuard_NoSession(t *testing.T) {
	g := guardFor(t, "", time.Time{})
	assert.Equal(t, Allow, g.Check("/login"))
	assert.Equal(t, RedirectLogin, g.Check("/profile"))
	assert.Equal(t, RedirectLogin, g.Check("/dashboard"))
}

func TestNavGuard_ExpiredOrUnknownRole(t *testing.T) {
	past := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, RedirectLogin, guardFor(t, "admin", past).Check("/users"))
	assert.Equal(t, RedirectLogin, guardFor(t, "janitor", time.Time{}).Check("/profile"))
}

func TestNavGuard_FollowsServerPolicy(t *testing.T) {
	future := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, role := range domain.AllRoles {
		g := guardFor(t, string(role), future)
		for route, op := range DefaultRoutes {
			want := Allow
			if domain.Authorize(role, op) != nil {
				want = RedirectHome
			}
			assert.Equal(t, want, g.Check(route), "%s on %s", role, route)
		}
	}
}

func TestNavGuard_ParamRoutes(t *testing.T) {
	future := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	staff := guardFor(t, "staff", future)
	assert.Equal(t, RedirectHome, staff.Check("/users/42/edit"))
	assert.Equal(t, RedirectHome, staff.Check("/users/42/delete"))
	assert.Equal(t, Allow, staff.Check("/dashboard"))

	admin := guardFor(t, "admin", future)
	assert.Equal(t, Allow, admin.Check("/users/42/edit"))
	assert.Equal(t, Allow, admin.Check("/users/new"))
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "allow", Allow.String())
	assert.Equal(t, "redirect-login", RedirectLogin.String())
	assert.Equal(t, "redirect-home", RedirectHome.String())
}
