package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"

	"github.com/clinicdesk/staff-portal/internal/core/domain"
	"github.com/clinicdesk/staff-portal/internal/core/ports"
)

const usersCollection = "portal_users"

var tracer = otel.Tracer("github.com/clinicdesk/staff-portal/internal/infrastructure/db/mongo")

// UserRepository implements ports.CredentialStore on MongoDB. Usernames are
// stored only as ciphertext in identity_enc.
type UserRepository struct {
	col     *mongo.Collection
	cipher  ports.IdentityCipher
	timeout time.Duration
}

// NewUserRepository returns a store bound to db. timeout bounds every
// operation, including the wait for a pooled connection; zero means
// defaultTimeout.
func NewUserRepository(db *mongo.Database, cipher ports.IdentityCipher, timeout time.Duration) *UserRepository {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &UserRepository{col: db.Collection(usersCollection), cipher: cipher, timeout: timeout}
}

type userDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	IdentityEnc string             `bson:"identity_enc"`
	SecretHash  string             `bson:"secret_hash"`
	Role        string             `bson:"role"`
	CreatedAt   time.Time          `bson:"created_at"`
}

func (r *UserRepository) FindByIdentity(ctx context.Context, identity string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "UserRepository.FindByIdentity")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	doc, plain, err := r.scan(ctx, identity, primitive.NilObjectID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrUserNotFound
	}
	return toUser(doc, plain), nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var doc userDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	plain, err := r.cipher.Decrypt(doc.IdentityEnc)
	if err != nil {
		return nil, fmt.Errorf("decrypt identity of %s: %w", id, err)
	}
	return toUser(&doc, plain), nil
}

func (r *UserRepository) Create(ctx context.Context, identity, secretHash string, role domain.Role) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "UserRepository.Create")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	existing, _, err := r.scan(ctx, identity, primitive.NilObjectID)
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
	doc := userDocument{
		IdentityEnc: enc,
		SecretHash:  secretHash,
		Role:        string(role),
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}

	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrDuplicateIdentity
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		doc.ID = oid
	}
	return toUser(&doc, identity), nil
}

func (r *UserRepository) UpdateIdentity(ctx context.Context, id, identity string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrUserNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	other, _, err := r.scan(ctx, identity, oid)
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
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"identity_enc": enc}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateIdentity
		}
		return fmt.Errorf("update identity: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) UpdateSecret(ctx context.Context, id, secretHash string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrUserNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"secret_hash": secretHash}})
	if err != nil {
		return fmt.Errorf("update secret: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrUserNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// List returns every account, newest first.
func (r *UserRepository) List(ctx context.Context) ([]*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer cur.Close(ctx)

	users := make([]*domain.User, 0)
	for cur.Next(ctx) {
		var doc userDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode user: %w", err)
		}
		plain, err := r.cipher.Decrypt(doc.IdentityEnc)
		if err != nil {
			return nil, fmt.Errorf("decrypt identity of %s: %w", doc.ID.Hex(), err)
		}
		users = append(users, toUser(&doc, plain))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *UserRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.col.Database().Client().Ping(ctx, nil)
}

// EnsureIndexes creates the unique ciphertext index and the listing index.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "identity_enc", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

// scan decrypts every stored identity and returns the first record whose
// plaintext equals identity, skipping exclude. A nil document means no match.
func (r *UserRepository) scan(ctx context.Context, identity string, exclude primitive.ObjectID) (*userDocument, string, error) {
	cur, err := r.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, "", fmt.Errorf("scan users: %w", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var doc userDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, "", fmt.Errorf("decode user: %w", err)
		}
		if doc.ID == exclude {
			continue
		}
		plain, err := r.cipher.Decrypt(doc.IdentityEnc)
		if err != nil {
			// Records written under another key can never match.
			continue
		}
		if plain == identity {
			return &doc, plain, nil
		}
	}
	if err := cur.Err(); err != nil {
		return nil, "", fmt.Errorf("scan users: %w", err)
	}
	return nil, "", nil
}

func toUser(doc *userDocument, identity string) *domain.User {
	return &domain.User{
		ID:         doc.ID.Hex(),
		Identity:   identity,
		SecretHash: doc.SecretHash,
		Role:       domain.Role(doc.Role),
		CreatedAt:  doc.CreatedAt.UTC(),
	}
}
