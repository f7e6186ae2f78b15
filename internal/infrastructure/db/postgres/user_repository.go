package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"github.com/clinicdesk/staff-portal/internal/core/domain"
	"github.com/clinicdesk/staff-portal/internal/core/ports"
)

var tracer = otel.Tracer("github.com/clinicdesk/staff-portal/internal/infrastructure/db/postgres")

type userRecord struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	IdentityEnc string    `gorm:"column:identity_enc;uniqueIndex;not null"`
	SecretHash  string    `gorm:"not null"`
	Role        string    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null;index"`
}

func (userRecord) TableName() string { return "portal_users" }

// UserRepository implements ports.CredentialStore with GORM. Usernames are
// stored only as ciphertext.
type UserRepository struct {
	db      *gorm.DB
	cipher  ports.IdentityCipher
	timeout time.Duration
}

// NewUserRepository returns a store bound to db. timeout bounds every
// operation, including the wait for a pooled connection.
func NewUserRepository(db *gorm.DB, cipher ports.IdentityCipher, timeout time.Duration) *UserRepository {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &UserRepository{db: db, cipher: cipher, timeout: timeout}
}

// Migrate creates or updates the portal_users table.
func (r *UserRepository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&userRecord{})
}

func (r *UserRepository) FindByIdentity(ctx context.Context, identity string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "UserRepository.FindByIdentity")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rec, err := r.scan(ctx, identity, 0)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.ErrUserNotFound
	}
	return toUser(rec, identity), nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rec userRecord
	if err := r.db.WithContext(ctx).First(&rec, n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	plain, err := r.cipher.Decrypt(rec.IdentityEnc)
	if err != nil {
		return nil, fmt.Errorf("decrypt identity of %d: %w", rec.ID, err)
	}
	return toUser(&rec, plain), nil
}

func (r *UserRepository) Create(ctx context.Context, identity, secretHash string, role domain.Role) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "UserRepository.Create")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	existing, err := r.scan(ctx, identity, 0)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrDuplicateIdentity
	}

	enc, err := r.cipher.Encrypt(identity)
	if err != nil {
		return nil, fmt.Errorf("encrypt identity: %w", err)
	}
	rec := userRecord{IdentityEnc: enc, SecretHash: secretHash, Role: string(role)}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrDuplicateIdentity
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return toUser(&rec, identity), nil
}

func (r *UserRepository) UpdateIdentity(ctx context.Context, id, identity string) error {
	n, ok := parseID(id)
	if !ok {
		return domain.ErrUserNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	other, err := r.scan(ctx, identity, n)
	if err != nil {
		return err
	}
	if other != nil {
		return domain.ErrDuplicateIdentity
	}

	enc, err := r.cipher.Encrypt(identity)
	if err != nil {
		return fmt.Errorf("encrypt identity: %w", err)
	}
	res := r.db.WithContext(ctx).Model(&userRecord{}).Where("id = ?", n).Update("identity_enc", enc)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicateIdentity
		}
		return fmt.Errorf("update identity: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) UpdateSecret(ctx context.Context, id, secretHash string) error {
	n, ok := parseID(id)
	if !ok {
		return domain.ErrUserNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res := r.db.WithContext(ctx).Model(&userRecord{}).Where("id = ?", n).Update("secret_hash", secretHash)
	if res.Error != nil {
		return fmt.Errorf("update secret: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	n, ok := parseID(id)
	if !ok {
		return domain.ErrUserNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res := r.db.WithContext(ctx).Delete(&userRecord{}, n)
	if res.Error != nil {
		return fmt.Errorf("delete user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// List returns every account, newest first.
func (r *UserRepository) List(ctx context.Context) ([]*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var recs []userRecord
	if err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	users := make([]*domain.User, 0, len(recs))
	for i := range recs {
		plain, err := r.cipher.Decrypt(recs[i].IdentityEnc)
		if err != nil {
			return nil, fmt.Errorf("decrypt identity of %d: %w", recs[i].ID, err)
		}
		users = append(users, toUser(&recs[i], plain))
	}
	return users, nil
}

func (r *UserRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// scan decrypts every stored identity and returns the record whose plaintext
// equals identity, skipping the row with id exclude. A nil record means no
// match.
func (r *UserRepository) scan(ctx context.Context, identity string, exclude uint64) (*userRecord, error) {
	var recs []userRecord
	if err := r.db.WithContext(ctx).Select("id", "identity_enc", "secret_hash", "role", "created_at").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}
	for i := range recs {
		if recs[i].ID == exclude {
			continue
		}
		plain, err := r.cipher.Decrypt(recs[i].IdentityEnc)
		if err != nil {
			continue
		}
		if plain == identity {
			return &recs[i], nil
		}
	}
	return nil, nil
}

func parseID(id string) (uint64, bool) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return n, true
}

func toUser(rec *userRecord, identity string) *domain.User {
	return &domain.User{
		ID:         strconv.FormatUint(rec.ID, 10),
		Identity:   identity,
		SecretHash: rec.SecretHash,
		Role:       domain.Role(rec.Role),
		CreatedAt:  rec.CreatedAt.UTC(),
	}
}
