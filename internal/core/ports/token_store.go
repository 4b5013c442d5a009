package ports

import (
	"context"

	"github.com/medclinic/booking-portal/internal/core/domain"
)

// TokenStore is the durable slot holding one browser's session token and
// user descriptor. It performs no validation and no freshness check.
type TokenStore interface {
	// Save writes both entries.
	Save(ctx context.Context, token string, user domain.User) error
	// Clear removes both entries. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
	// ClearIf removes both entries only while the stored token equals token,
	// as one atomic step. It reports whether anything was removed.
	ClearIf(ctx context.Context, token string) (bool, error)
	// Read returns whatever was last written. An absent token is "" and an
	// absent or unreadable user is nil.
	Read(ctx context.Context) (token string, user *domain.User, err error)
}

// TokenStoreFactory returns the store scoped to one browser id.
type TokenStoreFactory func(scope string) TokenStore
