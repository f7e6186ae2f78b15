package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/staff-portal/internal/core/domain"
)

const principalKey = "principal"

// Authenticator resolves a raw bearer token into a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, rawToken string) (*domain.Principal, error)
}

// Auth verifies the bearer token and injects the principal into both the echo
// context and the request context. The store is never consulted; the token's
// claims are authoritative for the request.
func Auth(authn Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return domain.ErrUnauthenticated
			}

			p, err := authn.Authenticate(c.Request().Context(), raw)
			if err != nil {
				return domain.ErrUnauthenticated
			}

			c.Set(principalKey, p)
			c.SetRequest(c.Request().WithContext(domain.WithPrincipal(c.Request().Context(), p)))

			return next(c)
		}
	}
}

// PrincipalFrom returns the principal stored by Auth.
func PrincipalFrom(c echo.Context) (*domain.Principal, bool) {
	p, ok := c.Get(principalKey).(*domain.Principal)
	return p, ok && p != nil
}

func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
