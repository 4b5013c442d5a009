package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/medclinic/booking-portal/internal/core/domain"
	"github.com/medclinic/booking-portal/internal/core/ports"
)

const defaultPrefix = "portal:session"

// Backend hands out Redis token stores, one per browser scope.
// Key format: <prefix>:<scope>:token and <prefix>:<scope>:user
type Backend struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewBackend wraps client. A zero ttl persists entries until cleared.
func NewBackend(client *redis.Client, prefix string, ttl time.Duration) *Backend {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Backend{client: client, prefix: prefix, ttl: ttl}
}

// Scope returns the store for one browser id.
func (b *Backend) Scope(scope string) ports.TokenStore {
	return &TokenStore{
		client:   b.client,
		tokenKey: fmt.Sprintf("%s:%s:token", b.prefix, scope),
		userKey:  fmt.Sprintf("%s:%s:user", b.prefix, scope),
		ttl:      b.ttl,
	}
}

// TokenStore persists one browser's session as two string keys.
type TokenStore struct {
	client   *redis.Client
	tokenKey string
	userKey  string
	ttl      time.Duration
}

// Save writes both keys in one MULTI/EXEC so readers never see half a pair.
func (s *TokenStore) Save(ctx context.Context, token string, user domain.User) error {
	raw, err := domain.EncodeUser(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.tokenKey, token, s.ttl)
		pipe.Set(ctx, s.userKey, raw, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis token save: %w", err)
	}
	return nil
}

// Clear deletes both keys.
func (s *TokenStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.tokenKey, s.userKey).Err(); err != nil {
		return fmt.Errorf("redis token clear: %w", err)
	}
	return nil
}

// clearIfScript deletes the pair only while KEYS[1] still holds ARGV[1].
var clearIfScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1], KEYS[2])
end
return 0
`)

// ClearIf deletes both keys if the token key still holds token.
func (s *TokenStore) ClearIf(ctx context.Context, token string) (bool, error) {
	n, err := clearIfScript.Run(ctx, s.client, []string{s.tokenKey, s.userKey}, token).Int()
	if err != nil {
		return false, fmt.Errorf("redis token clear: %w", err)
	}
	return n > 0, nil
}

// Read fetches both keys. Missing keys read as absent.
func (s *TokenStore) Read(ctx context.Context) (string, *domain.User, error) {
	vals, err := s.client.MGet(ctx, s.tokenKey, s.userKey).Result()
	if err != nil {
		return "", nil, fmt.Errorf("redis token read: %w", err)
	}
	token, _ := vals[0].(string)
	rawUser, _ := vals[1].(string)
	return token, domain.DecodeUser(rawUser), nil
}
