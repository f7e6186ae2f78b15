package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/clinicdesk/staff-portal/internal/core/domain"
)

// DefaultTokenTTL is the session lifetime when none is configured.
const DefaultTokenTTL = time.Hour

type sessionClaims struct {
	jwt.RegisteredClaims
	Role domain.Role `json:"role"`
	Name string      `json:"name,omitempty"`
	Demo bool        `json:"demo,omitempty"`
}

// TokenService issues and verifies HS256 session tokens. It holds no
// per-session state.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret), now: time.Now}
}

// WithClock replaces the time source used for issuing and verifying.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// Issue signs a token for p that expires ttl from now.
func (s *TokenService) Issue(p domain.Principal, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := s.now()
	exp := now.Add(ttl)

	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.SubjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role: p.Role,
		Name: p.DisplayName,
		Demo: p.Demo,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing session token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature and expiry. Failures wrap domain.ErrTokenExpired
// or domain.ErrTokenInvalid.
func (s *TokenService) Verify(token string) (*domain.Principal, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", domain.ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrTokenInvalid, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", domain.ErrTokenInvalid)
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrTokenInvalid, claims.Role)
	}

	return &domain.Principal{
		SubjectID:   claims.Subject,
		Role:        claims.Role,
		DisplayName: claims.Name,
		Demo:        claims.Demo,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}
