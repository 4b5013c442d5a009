package memory

import (
	"context"
	"sync"

	"github.com/medclinic/booking-portal/internal/core/domain"
	"github.com/medclinic/booking-portal/internal/core/ports"
)

type entry struct {
	token string
	user  string
}

// Backend is a process-local token store shared by every scope. Nothing
// survives a restart.
type Backend struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New returns an empty Backend.
func New() *Backend {
	return &Backend{entries: make(map[string]entry)}
}

// Scope returns the store for one browser id.
func (b *Backend) Scope(scope string) ports.TokenStore {
	return &TokenStore{backend: b, scope: scope}
}

// Len returns the number of scopes holding a session.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// TokenStore is one scope of a Backend.
type TokenStore struct {
	backend *Backend
	scope   string
}

// Save implements ports.TokenStore.
func (s *TokenStore) Save(_ context.Context, token string, user domain.User) error {
	raw, err := domain.EncodeUser(user)
	if err != nil {
		return err
	}
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	s.backend.entries[s.scope] = entry{token: token, user: raw}
	return nil
}

// Clear implements ports.TokenStore.
func (s *TokenStore) Clear(_ context.Context) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	delete(s.backend.entries, s.scope)
	return nil
}

// ClearIf implements ports.TokenStore.
func (s *TokenStore) ClearIf(_ context.Context, token string) (bool, error) {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	e, ok := s.backend.entries[s.scope]
	if !ok || e.token != token {
		return false, nil
	}
	delete(s.backend.entries, s.scope)
	return true, nil
}

// Read implements ports.TokenStore.
func (s *TokenStore) Read(_ context.Context) (string, *domain.User, error) {
	s.backend.mu.RLock()
	e, ok := s.backend.entries[s.scope]
	s.backend.mu.RUnlock()
	if !ok {
		return "", nil, nil
	}
	return e.token, domain.DecodeUser(e.user), nil
}
