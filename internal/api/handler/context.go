package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/staff-portal/internal/core/domain"
)

// ctxPrincipal returns the principal injected by the Auth middleware. Its
// absence means the route was mounted without Auth, which is treated as
// unauthenticated rather than a server fault.
func ctxPrincipal(c echo.Context) (*domain.Principal, error) {
	p, ok := domain.PrincipalFrom(c.Request().Context())
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	return p, nil
}
