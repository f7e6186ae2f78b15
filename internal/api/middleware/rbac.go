package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/staff-portal/internal/core/domain"
	"github.com/clinicdesk/staff-portal/internal/core/ports"
	"github.com/clinicdesk/staff-portal/internal/pkg/metrics"
)

// Guard enforces the role policy for op. It must run after Auth. Denials
// are counted and, when audit is non-nil, recorded.
func Guard(op domain.Operation, audit ports.AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFrom(c)
			if !ok {
				return domain.ErrUnauthenticated
			}

			if err := domain.Authorize(p.Role, op); err != nil {
				metrics.AuthorizationDecisionsTotal.WithLabelValues(string(op), "forbidden").Inc()
				if audit != nil {
					audit.Enqueue(domain.AuthEvent{
						Kind:      domain.EventAuthorization,
						SubjectID: p.SubjectID,
						Role:      p.Role,
						Operation: op,
						Outcome:   "forbidden",
						At:        time.Now().UTC(),
					})
				}
				return err
			}

			metrics.AuthorizationDecisionsTotal.WithLabelValues(string(op), "allowed").Inc()
			return next(c)
		}
	}
}
