package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/medclinic/booking-portal/internal/core/domain"
	"github.com/medclinic/booking-portal/internal/core/ports"
)

const (
	defaultBootstrapTimeout = 5 * time.Second
	storeWriteTimeout       = 3 * time.Second
)

// Bootstrap outcomes reported to OutcomeFunc.
const (
	OutcomeNoToken    = "no_token"
	OutcomeConfirmed  = "confirmed"
	OutcomeRejected   = "rejected"
	OutcomeStoreError = "store_error"
	OutcomeSuperseded = "superseded"
)

// OutcomeFunc observes how a bootstrap resolved.
type OutcomeFunc func(outcome string)

// AuthContext is the session state of one browser. It is the only writer of
// its token store apart from the gateway client's 401 handling.
//
// gen is bumped by every explicit transition and a bootstrap only settles if
// gen is unchanged since it started, so a login racing an in-flight bootstrap
// is never undone by the bootstrap's late result. Store writes are serialised
// by writeMu and happen outside mu, so State never waits on store I/O.
type AuthContext struct {
	store    ports.TokenStore
	identity ports.IdentityAPI
	log      zerolog.Logger
	timeout  time.Duration
	outcome  OutcomeFunc

	writeMu sync.Mutex

	mu      sync.RWMutex
	desc    domain.Descriptor
	gen     uint64
	mounted bool

	resolved     chan struct{}
	resolvedOnce sync.Once
}

// AuthOption configures an AuthContext.
type AuthOption func(*AuthContext)

// WithBootstrapTimeout bounds the whole bootstrap (store read plus
// revalidation). Zero or negative keeps the default.
func WithBootstrapTimeout(d time.Duration) AuthOption {
	return func(a *AuthContext) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithOutcome registers a bootstrap outcome observer.
func WithOutcome(fn OutcomeFunc) AuthOption {
	return func(a *AuthContext) { a.outcome = fn }
}

// NewAuthContext returns a context in the bootstrapping phase. Call
// Bootstrap to mount it.
func NewAuthContext(store ports.TokenStore, identity ports.IdentityAPI, log zerolog.Logger, opts ...AuthOption) *AuthContext {
	a := &AuthContext{
		store:    store,
		identity: identity,
		log:      log.With().Str("component", "auth_context").Logger(),
		timeout:  defaultBootstrapTimeout,
		desc:     domain.Unresolved{},
		resolved: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// State returns the current snapshot.
func (a *AuthContext) State() domain.State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return domain.StateOf(a.desc)
}

func (a *AuthContext) current() domain.Descriptor {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.desc
}

// Wait blocks until the bootstrap window is over or ctx is done.
func (a *AuthContext) Wait(ctx context.Context) error {
	select {
	case <-a.resolved:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Bootstrap reads the persisted token and revalidates it against the
// backend. Only the first call does anything. Every failure, whatever its
// cause, clears the store and ends unauthenticated; the cause is kept as
// State().Reason. There is no retry.
func (a *AuthContext) Bootstrap(ctx context.Context) error {
	a.mu.Lock()
	if a.mounted {
		a.mu.Unlock()
		return nil
	}
	a.mounted = true
	gen := a.gen
	a.mu.Unlock()
	defer a.markResolved()

	// The store writes after revalidation must still happen when the
	// revalidation itself ran out of time.
	storeCtx := context.WithoutCancel(ctx)

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	token, _, err := a.store.Read(ctx)
	if err != nil {
		err = fmt.Errorf("read token store: %w", err)
		if a.settle(gen, domain.Rejected{Reason: err}) {
			a.report(OutcomeStoreError)
		}
		a.log.Error().Err(err).Msg("bootstrap failed")
		return err
	}

	if token == "" {
		if a.settle(gen, domain.Rejected{}) {
			a.report(OutcomeNoToken)
		}
		return nil
	}

	if !a.settle(gen, domain.Pending{Token: token}) {
		a.report(OutcomeSuperseded)
		return nil
	}

	user, err := a.identity.Me(ctx)
	if err == nil && !user.Valid() {
		err = fmt.Errorf("%w: who-am-I returned %+v", domain.ErrMalformedResponse, user)
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	if !a.isGen(gen) {
		a.report(OutcomeSuperseded)
		return nil
	}

	writeCtx, cancelWrite := context.WithTimeout(storeCtx, storeWriteTimeout)
	defer cancelWrite()

	if err != nil {
		if _, clearErr := a.store.ClearIf(writeCtx, token); clearErr != nil {
			a.log.Error().Err(clearErr).Msg("failed to clear token store after rejected revalidation")
		}
		if !a.settle(gen, domain.Rejected{Reason: err}) {
			a.report(OutcomeSuperseded)
			return nil
		}
		a.report(OutcomeRejected)
		a.log.Info().Err(err).Msg("persisted session rejected")
		return nil
	}

	if saveErr := a.store.Save(writeCtx, token, user); saveErr != nil {
		a.log.Warn().Err(saveErr).Msg("failed to refresh persisted user")
	}
	if !a.settle(gen, domain.Confirmed{Token: token, User: user}) {
		a.report(OutcomeSuperseded)
		return nil
	}
	a.report(OutcomeConfirmed)
	a.log.Debug().Int64("user_id", user.ID).Str("role", string(user.Role)).Msg("session revalidated")
	return nil
}

// Login installs a token and user straight from a login response. The pair
// is trusted and not revalidated.
func (a *AuthContext) Login(ctx context.Context, token string, user domain.User) error {
	if token == "" || !user.Valid() {
		return domain.ErrInvalidSession
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	if err := a.store.Save(ctx, token, user); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}

	a.mu.Lock()
	a.gen++
	a.mounted = true
	a.desc = domain.Confirmed{Token: token, User: user}
	a.mu.Unlock()

	a.markResolved()
	a.log.Info().Int64("user_id", user.ID).Str("role", string(user.Role)).Msg("logged in")
	return nil
}

// Logout drops the session locally. No backend call is made. The context is
// unauthenticated afterwards even if clearing the store failed.
func (a *AuthContext) Logout(ctx context.Context) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	a.mu.Lock()
	a.gen++
	a.mounted = true
	a.desc = domain.Rejected{}
	a.mu.Unlock()
	a.markResolved()

	if err := a.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear token store: %w", err)
	}
	return nil
}

// Expire drops an authenticated session in memory after the backend
// answered 401 to token. Only a Confirmed session carrying that same token
// is dropped: a pending bootstrap resolves through its own failure path and
// a session installed since the request left is kept. The gateway client has
// already cleared the store.
func (a *AuthContext) Expire(token string, reason error) {
	if reason == nil {
		reason = domain.ErrUnauthorized
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	c, ok := a.desc.(domain.Confirmed)
	if !ok || c.Token != token {
		return
	}
	a.gen++
	a.desc = domain.Rejected{Reason: reason}
	a.log.Info().Err(reason).Msg("session expired by backend")
}

func (a *AuthContext) isGen(gen uint64) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.gen == gen
}

// settle replaces the descriptor if no explicit transition happened since
// gen was taken.
func (a *AuthContext) settle(gen uint64, d domain.Descriptor) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gen != gen {
		return false
	}
	a.desc = d
	return true
}

func (a *AuthContext) markResolved() {
	a.resolvedOnce.Do(func() { close(a.resolved) })
}

func (a *AuthContext) report(outcome string) {
	if a.outcome != nil {
		a.outcome(outcome)
	}
}
