package ports

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/medclinic/booking-portal/internal/core/domain"
)

// IdentityAPI is the who-am-I capability used to revalidate a token.
type IdentityAPI interface {
	Me(ctx context.Context) (domain.User, error)
}

// RegisterInput carries patient self-registration fields.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// BackendAPI is everything the portal views consume from the clinic backend.
// Resource payloads are passed through untouched.
type BackendAPI interface {
	IdentityAPI
	Login(ctx context.Context, email, password string) (domain.LoginResult, error)
	Register(ctx context.Context, in RegisterInput) (domain.LoginResult, error)
	List(ctx context.Context, resource domain.Resource, query url.Values) (json.RawMessage, error)
	Get(ctx context.Context, resource domain.Resource, id string) (json.RawMessage, error)
	Create(ctx context.Context, resource domain.Resource, payload json.RawMessage) (json.RawMessage, error)
	Cancel(ctx context.Context, resource domain.Resource, id string) (json.RawMessage, error)
}
