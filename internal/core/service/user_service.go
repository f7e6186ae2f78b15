package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/staff-portal/internal/core/domain"
	"github.com/clinicdesk/staff-portal/internal/core/ports"
	"github.com/clinicdesk/staff-portal/internal/pkg/metrics"
)

// UserService implements account management on top of a CredentialStore.
// Role checks are repeated here so the service is safe to call without the
// HTTP guard in front of it.
type UserService struct {
	store  ports.CredentialStore
	hasher ports.PasswordHasher
	audit  ports.AuditRecorder
	demo   bool
	log    zerolog.Logger
	now    func() time.Time
}

// NewUserService builds the service. audit may be nil. demoEnabled reserves
// the built-in usernames so no stored account can shadow them.
func NewUserService(store ports.CredentialStore, hasher ports.PasswordHasher, audit ports.AuditRecorder, demoEnabled bool, log zerolog.Logger) *UserService {
	return &UserService{
		store:  store,
		hasher: hasher,
		audit:  audit,
		demo:   demoEnabled,
		log:    log.With().Str("component", "users").Logger(),
		now:    time.Now,
	}
}

func (s *UserService) CreateUser(ctx context.Context, actor *domain.Principal, in ports.CreateUserInput) (*domain.User, error) {
	if err := authorize(actor, domain.OpCreateUser); err != nil {
		return nil, err
	}

	role, err := domain.ParseRole(in.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrBadRequest, in.Role)
	}
	if err := s.checkIdentity(in.Identity); err != nil {
		return nil, err
	}
	if err := domain.ValidateSecret(in.Secret); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Secret)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user, err := s.store.Create(ctx, in.Identity, hash, role)
	if err != nil {
		return nil, err
	}

	s.mutated(actor, domain.OpCreateUser, user.ID)
	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context, actor *domain.Principal) ([]*domain.User, error) {
	if err := authorize(actor, domain.OpListUsers); err != nil {
		return nil, err
	}
	return s.store.List(ctx)
}

func (s *UserService) UpdateIdentity(ctx context.Context, actor *domain.Principal, targetID, identity string) error {
	if err := authorize(actor, domain.OpUpdateUserIdentity); err != nil {
		return err
	}
	if targetID == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrBadRequest)
	}
	if err := s.checkIdentity(identity); err != nil {
		return err
	}

	if err := s.store.UpdateIdentity(ctx, targetID, identity); err != nil {
		return err
	}

	s.mutated(actor, domain.OpUpdateUserIdentity, targetID)
	return nil
}

// DeleteUser removes targetID. An administrator cannot remove their own
// record. The target is resolved through the store first because a store may
// accept several spellings of one id ("1" and "01", upper and lower case hex).
func (s *UserService) DeleteUser(ctx context.Context, actor *domain.Principal, targetID string) error {
	if err := authorize(actor, domain.OpDeleteUser); err != nil {
		return err
	}
	if targetID == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrBadRequest)
	}

	target, err := s.store.FindByID(ctx, targetID)
	if err != nil {
		return err
	}
	if target.ID == actor.SubjectID {
		return fmt.Errorf("%w: cannot delete your own account", domain.ErrForbidden)
	}

	if err := s.store.Delete(ctx, target.ID); err != nil {
		return err
	}

	s.mutated(actor, domain.OpDeleteUser, target.ID)
	return nil
}

func (s *UserService) GetProfile(ctx context.Context, actor *domain.Principal) (*ports.Profile, error) {
	if err := authorize(actor, domain.OpViewOwnProfile); err != nil {
		return nil, err
	}

	if actor.Demo {
		d, ok := domain.LookupDemoIdentity(actor.SubjectID)
		if !ok {
			return nil, domain.ErrUserNotFound
		}
		return &ports.Profile{
			SubjectID:   d.Username(),
			Username:    d.Username(),
			DisplayName: d.DisplayName(),
			Role:        d.Role(),
			Demo:        true,
		}, nil
	}

	user, err := s.store.FindByID(ctx, actor.SubjectID)
	if err != nil {
		return nil, err
	}
	return &ports.Profile{
		SubjectID:   user.ID,
		Username:    user.Identity,
		DisplayName: user.DisplayName(),
		Role:        user.Role,
		CreatedAt:   user.CreatedAt,
	}, nil
}

// ChangeOwnPassword replaces the caller's password after checking the
// current one. Built-in identities have fixed passwords.
func (s *UserService) ChangeOwnPassword(ctx context.Context, actor *domain.Principal, current, next string) error {
	if err := authorize(actor, domain.OpChangeOwnPassword); err != nil {
		return err
	}
	if actor.Demo {
		return fmt.Errorf("%w: built-in accounts cannot change their password", domain.ErrForbidden)
	}
	if current == "" {
		return fmt.Errorf("%w: current password is required", domain.ErrBadRequest)
	}
	if err := domain.ValidateSecret(next); err != nil {
		return err
	}

	user, err := s.store.FindByID(ctx, actor.SubjectID)
	if err != nil {
		return err
	}
	// Not ErrInvalidCredentials: the token is valid and clients drop the
	// session on 401.
	if !s.hasher.Verify(current, user.SecretHash) {
		return fmt.Errorf("%w: current password is incorrect", domain.ErrForbidden)
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	if err := s.store.UpdateSecret(ctx, user.ID, hash); err != nil {
		return err
	}

	s.mutated(actor, domain.OpChangeOwnPassword, user.ID)
	return nil
}

func (s *UserService) checkIdentity(identity string) error {
	if err := domain.ValidateIdentity(identity); err != nil {
		return err
	}
	if s.demo {
		if _, reserved := domain.LookupDemoIdentity(identity); reserved {
			return domain.ErrDuplicateIdentity
		}
	}
	return nil
}

func (s *UserService) mutated(actor *domain.Principal, op domain.Operation, targetID string) {
	metrics.UserMutationsTotal.WithLabelValues(string(op)).Inc()
	s.log.Info().
		Str("actor", actor.SubjectID).
		Str("operation", string(op)).
		Str("target_id", targetID).
		Msg("account updated")

	if s.audit == nil {
		return
	}
	s.audit.Enqueue(domain.AuthEvent{
		Kind:      domain.EventUserMutation,
		SubjectID: actor.SubjectID,
		Role:      actor.Role,
		Operation: op,
		TargetID:  targetID,
		Outcome:   resultSuccess,
		At:        s.now().UTC(),
	})
}

func authorize(actor *domain.Principal, op domain.Operation) error {
	if actor == nil {
		return domain.ErrUnauthenticated
	}
	return domain.Authorize(actor.Role, op)
}
