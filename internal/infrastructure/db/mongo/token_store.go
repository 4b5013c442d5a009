package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/medclinic/booking-portal/internal/core/domain"
	"github.com/medclinic/booking-portal/internal/core/ports"
)

const (
	collectionSessions = "portal_sessions"
	opTimeout          = 5 * time.Second
)

// sessionDoc mirrors the two browser-storage entries. User is kept as the
// serialised string, exactly as persisted by every other driver.
type sessionDoc struct {
	Scope     string `bson:"_id"`
	Token     string `bson:"token"`
	User      string `bson:"user"`
	UpdatedAt int64  `bson:"updated_at"`
}

// Backend hands out MongoDB token stores, one document per browser scope.
type Backend struct {
	col *mongo.Collection
}

// NewBackend binds the sessions collection of db.
func NewBackend(db *mongo.Database) *Backend {
	return &Backend{col: db.Collection(collectionSessions)}
}

// Scope returns the store for one browser id.
func (b *Backend) Scope(scope string) ports.TokenStore {
	return &TokenStore{col: b.col, scope: scope}
}

// EnsureIndexes creates the updated_at index used for manual cleanup.
func (b *Backend) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := b.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "updated_at", Value: 1}},
	})
	return err
}

// TokenStore is one browser's session document.
type TokenStore struct {
	col   *mongo.Collection
	scope string
}

// Save upserts the session document.
func (s *TokenStore) Save(ctx context.Context, token string, user domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	raw, err := domain.EncodeUser(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	doc := sessionDoc{
		Scope:     s.scope,
		Token:     token,
		User:      raw,
		UpdatedAt: time.Now().UTC().Unix(),
	}
	_, err = s.col.ReplaceOne(ctx, bson.M{"_id": s.scope}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo token save: %w", err)
	}
	return nil
}

// Clear deletes the session document if present.
func (s *TokenStore) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := s.col.DeleteOne(ctx, bson.M{"_id": s.scope}); err != nil {
		return fmt.Errorf("mongo token clear: %w", err)
	}
	return nil
}

// ClearIf deletes the session document only while it holds token.
func (s *TokenStore) ClearIf(ctx context.Context, token string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.col.DeleteOne(ctx, bson.M{"_id": s.scope, "token": token})
	if err != nil {
		return false, fmt.Errorf("mongo token clear: %w", err)
	}
	return res.DeletedCount > 0, nil
}

// Read loads the session document. A missing document reads as absent.
func (s *TokenStore) Read(ctx context.Context) (string, *domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var doc sessionDoc
	err := s.col.FindOne(ctx, bson.M{"_id": s.scope}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", nil, nil
		}
		return "", nil, fmt.Errorf("mongo token read: %w", err)
	}
	return doc.Token, domain.DecodeUser(doc.User), nil
}
