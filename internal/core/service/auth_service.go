package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/clinicdesk/staff-portal/internal/core/domain"
	"github.com/clinicdesk/staff-portal/internal/core/ports"
	"github.com/clinicdesk/staff-portal/internal/pkg/metrics"
)

var tracer = otel.Tracer("github.com/clinicdesk/staff-portal/internal/core/service")

const (
	branchNone      = "none"
	branchDemo      = "demo"
	branchPersisted = "persisted"

	resultSuccess            = "success"
	resultInvalidCredentials = "invalid_credentials"
	resultBadRequest         = "bad_request"
	resultThrottled          = "throttled"
	resultError              = "error"
)

// AuthOptions tunes the login flow. Throttle and Audit are optional.
type AuthOptions struct {
	TokenTTL time.Duration
	// DisableDemo turns off the built-in admin/staff/doctor identities.
	DisableDemo bool
	Throttle    ports.LoginThrottle
	Audit       ports.AuditRecorder
}

// AuthService implements login and session token verification.
type AuthService struct {
	store    ports.CredentialStore
	hasher   ports.PasswordHasher
	tokens   ports.TokenIssuer
	tokenTTL time.Duration
	demo     bool
	throttle ports.LoginThrottle
	audit    ports.AuditRecorder
	log      zerolog.Logger
	now      func() time.Time
}

func NewAuthService(store ports.CredentialStore, hasher ports.PasswordHasher, tokens ports.TokenIssuer, opts AuthOptions, log zerolog.Logger) *AuthService {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}
	return &AuthService{
		store:    store,
		hasher:   hasher,
		tokens:   tokens,
		tokenTTL: opts.TokenTTL,
		demo:     !opts.DisableDemo,
		throttle: opts.Throttle,
		audit:    opts.Audit,
		log:      log.With().Str("component", "auth").Logger(),
		now:      time.Now,
	}
}

// Login checks the built-in identities first and then the credential store.
// Every failure past input validation and throttling is reported as
// domain.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, identity, secret string) (*ports.LoginResult, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Login")
	defer span.End()

	if identity == "" || secret == "" {
		metrics.LoginAttemptsTotal.WithLabelValues(branchNone, resultBadRequest).Inc()
		return nil, fmt.Errorf("%w: username and password are required", domain.ErrBadRequest)
	}

	if s.blocked(ctx, identity) {
		metrics.LoginAttemptsTotal.WithLabelValues(branchNone, resultThrottled).Inc()
		s.record(domain.AuthEvent{Kind: domain.EventLogin, Outcome: resultThrottled})
		span.SetAttributes(attribute.String("login.result", resultThrottled))
		return nil, domain.ErrTooManyAttempts
	}

	if s.demo {
		if d, ok := domain.LookupDemoIdentity(identity); ok {
			span.SetAttributes(attribute.String("login.branch", branchDemo))
			if !d.Matches(secret) {
				return nil, s.reject(ctx, identity, branchDemo)
			}
			return s.issue(ctx, identity, branchDemo, domain.Principal{
				SubjectID:   d.Username(),
				Role:        d.Role(),
				DisplayName: d.DisplayName(),
				Demo:        true,
			})
		}
	}

	span.SetAttributes(attribute.String("login.branch", branchPersisted))
	user, err := s.store.FindByIdentity(ctx, identity)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			s.log.Error().Err(err).Msg("credential lookup failed")
			span.RecordError(err)
		}
		return nil, s.reject(ctx, identity, branchPersisted)
	}
	if !s.hasher.Verify(secret, user.SecretHash) {
		return nil, s.reject(ctx, identity, branchPersisted)
	}

	return s.issue(ctx, identity, branchPersisted, domain.Principal{
		SubjectID:   user.ID,
		Role:        user.Role,
		DisplayName: user.DisplayName(),
	})
}

// Authenticate verifies a raw bearer token. Any failure, including a missing
// token, is reported as domain.ErrUnauthenticated.
func (s *AuthService) Authenticate(_ context.Context, rawToken string) (*domain.Principal, error) {
	if rawToken == "" {
		metrics.TokenVerificationsTotal.WithLabelValues("missing").Inc()
		return nil, domain.ErrUnauthenticated
	}

	p, err := s.tokens.Verify(rawToken)
	if err != nil {
		result := "invalid"
		if errors.Is(err, domain.ErrTokenExpired) {
			result = "expired"
		}
		metrics.TokenVerificationsTotal.WithLabelValues(result).Inc()
		s.log.Debug().Str("result", result).Msg("session token rejected")
		return nil, domain.ErrUnauthenticated
	}

	metrics.TokenVerificationsTotal.WithLabelValues("valid").Inc()
	return p, nil
}

func (s *AuthService) issue(ctx context.Context, identity, branch string, p domain.Principal) (*ports.LoginResult, error) {
	token, exp, err := s.tokens.Issue(p, s.tokenTTL)
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues(branch, resultError).Inc()
		return nil, fmt.Errorf("issuing session token: %w", err)
	}

	if s.throttle != nil {
		if err := s.throttle.Reset(ctx, identity); err != nil {
			s.log.Warn().Err(err).Msg("clearing login failures failed")
		}
	}

	metrics.LoginAttemptsTotal.WithLabelValues(branch, resultSuccess).Inc()
	s.record(domain.AuthEvent{
		Kind:      domain.EventLogin,
		SubjectID: p.SubjectID,
		Role:      p.Role,
		Outcome:   resultSuccess,
	})
	s.log.Info().Str("subject_id", p.SubjectID).Str("role", p.Role.String()).Str("branch", branch).Msg("login succeeded")

	return &ports.LoginResult{
		Token:       token,
		ExpiresAt:   exp,
		SubjectID:   p.SubjectID,
		Role:        p.Role,
		DisplayName: p.DisplayName,
	}, nil
}

// reject records a failed attempt. The attempted identity is never logged
// or audited.
func (s *AuthService) reject(ctx context.Context, identity, branch string) error {
	if s.throttle != nil {
		if err := s.throttle.RecordFailure(ctx, identity); err != nil {
			s.log.Warn().Err(err).Msg("recording login failure failed")
		}
	}
	metrics.LoginAttemptsTotal.WithLabelValues(branch, resultInvalidCredentials).Inc()
	s.record(domain.AuthEvent{Kind: domain.EventLogin, Outcome: resultInvalidCredentials})
	s.log.Info().Str("branch", branch).Msg("login rejected")

	trace.SpanFromContext(ctx).SetStatus(codes.Error, resultInvalidCredentials)
	return domain.ErrInvalidCredentials
}

func (s *AuthService) blocked(ctx context.Context, identity string) bool {
	if s.throttle == nil {
		return false
	}
	blocked, err := s.throttle.Blocked(ctx, identity)
	if err != nil {
		// Fail open.
		s.log.Warn().Err(err).Msg("login throttle unavailable")
		return false
	}
	return blocked
}

func (s *AuthService) record(ev domain.AuthEvent) {
	if s.audit == nil {
		return
	}
	ev.At = s.now().UTC()
	s.audit.Enqueue(ev)
}
