package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/staff-portal/internal/api/handler"
	"github.com/clinicdesk/staff-portal/internal/api/middleware"
	"github.com/clinicdesk/staff-portal/internal/core/domain"
	"github.com/clinicdesk/staff-portal/internal/core/ports"
)

// Deps are the collaborators the public API needs. Audit may be nil.
type Deps struct {
	Auth  ports.AuthService
	Users ports.UserService
	Audit ports.AuditRecorder
	Log   zerolog.Logger
	// Registerer receives the HTTP metrics; nil means the default registry.
	Registerer prometheus.Registerer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	reg := deps.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.Tracing())
	e.Use(middleware.RequestLogger(deps.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "portal",
		Registerer: reg,
	}))

	authHandler := handler.NewAuthHandler(deps.Auth)
	userHandler := handler.NewUserHandler(deps.Users)

	v1 := e.Group("/v1")

	// --- Public routes ---
	v1.POST("/auth/login", authHandler.Login)
	v1.GET("/auth/policy", authHandler.Policy)

	// --- Authenticated routes ---
	// Auth is attached per route: a group-level middleware would also wrap
	// the group's catch-all and turn unknown paths into 401s.
	authn := middleware.Auth(deps.Auth)
	guarded := func(op domain.Operation) []echo.MiddlewareFunc {
		return []echo.MiddlewareFunc{authn, middleware.Guard(op, deps.Audit)}
	}

	v1.GET("/users", userHandler.List, guarded(domain.OpListUsers)...)
	v1.POST("/users", userHandler.Create, guarded(domain.OpCreateUser)...)
	v1.PATCH("/users/:id/identity", userHandler.UpdateIdentity, guarded(domain.OpUpdateUserIdentity)...)
	v1.DELETE("/users/:id", userHandler.Delete, guarded(domain.OpDeleteUser)...)

	v1.GET("/me", userHandler.Profile, guarded(domain.OpViewOwnProfile)...)
	v1.PUT("/me/password", userHandler.ChangePassword, guarded(domain.OpChangeOwnPassword)...)

	return e
}
