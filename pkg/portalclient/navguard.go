package portalclient

import (
	"strings"
	"time"

	"github.com/clinicdesk/staff-portal/internal/core/domain"
)

// Decision is the outcome of a navigation check.
type Decision int

const (
	Allow Decision = iota
	// RedirectLogin means there is no usable session.
	RedirectLogin
	// RedirectHome means the session's role may not open the route.
	RedirectHome
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect-login"
	case RedirectHome:
		return "redirect-home"
	}
	return "unknown"
}

// DefaultRoutes maps the portal's client routes to the operation each one
// performs. Segments starting with ':' match any value.
var DefaultRoutes = map[string]domain.Operation{
	"/users":            domain.OpListUsers,
	"/users/new":        domain.OpCreateUser,
	"/users/:id/edit":   domain.OpUpdateUserIdentity,
	"/users/:id/delete": domain.OpDeleteUser,
	"/profile":          domain.OpViewOwnProfile,
	"/profile/password": domain.OpChangeOwnPassword,
}

// NavGuard gates client navigation with the same role policy the server
// enforces. Its answers are advisory; the server remains authoritative.
type NavGuard struct {
	store  SessionStore
	routes map[string]domain.Operation
	public map[string]bool
	now    func() time.Time
}

// NewNavGuard returns a guard over routes. Paths listed in public never
// require a session. Any other path not in routes requires a session only.
func NewNavGuard(store SessionStore, routes map[string]domain.Operation, public ...string) *NavGuard {
	g := &NavGuard{
		store:  store,
		routes: routes,
		public: make(map[string]bool, len(public)),
		now:    time.Now,
	}
	for _, p := range public {
		g.public[p] = true
	}
	return g
}

// Check decides whether the stored session may open route.
func (g *NavGuard) Check(route string) Decision {
	if g.public[route] {
		return Allow
	}

	s, err := LoadSession(g.store)
	if err != nil || s == nil || s.Expired(g.now()) {
		return RedirectLogin
	}
	role, err := domain.ParseRole(s.Role)
	if err != nil {
		return RedirectLogin
	}

	op, ok := g.match(route)
	if !ok {
		return Allow
	}
	if domain.Authorize(role, op) != nil {
		return RedirectHome
	}
	return Allow
}

func (g *NavGuard) match(route string) (domain.Operation, bool) {
	if op, ok := g.routes[route]; ok {
		return op, true
	}
	got := splitPath(route)
	for pattern, op := range g.routes {
		if segmentsMatch(splitPath(pattern), got) {
			return op, true
		}
	}
	return "", false
}

func splitPath(p string) []string {
	return strings.Split(strings.Trim(p, "/"), "/")
}

func segmentsMatch(pattern, path []string) bool {
	if len(pattern) != len(path) {
		return false
	}
	for i, seg := range pattern {
		if strings.HasPrefix(seg, ":") {
			if path[i] == "" {
				return false
			}
			continue
		}
		if seg != path[i] {
			return false
		}
	}
	return true
}
