package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medclinic/booking-portal/internal/core/domain"
	redisstore "github.com/medclinic/booking-portal/internal/infrastructure/db/redis"
)

type stubStore struct {
	mu     sync.Mutex
	token  string
	user   *domain.User
	readFn func() error
	clears int
}

func (s *stubStore) Save(_ context.Context, token string, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := user
	s.token, s.user = token, &u
	return nil
}

func (s *stubStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.user = "", nil
	s.clears++
	return nil
}

func (s *stubStore) ClearIf(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" || s.token != token {
		return false, nil
	}
	s.token, s.user = "", nil
	s.clears++
	return true, nil
}

func (s *stubStore) Read(_ context.Context) (string, *domain.User, error) {
	if s.readFn != nil {
		if err := s.readFn(); err != nil {
			return "", nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.user, nil
}

func (s *stubStore) snapshot() (string, *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.user
}

type stubIdentity struct {
	meFn  func(ctx context.Context) (domain.User, error)
	calls int
}

func (s *stubIdentity) Me(ctx context.Context) (domain.User, error) {
	s.calls++
	return s.meFn(ctx)
}

func persisted(token string, u domain.User) *stubStore {
	return &stubStore{token: token, user: &u}
}

func rejectedBy(s domain.State, target error) bool {
	return s.Phase == domain.PhaseUnauthenticated && errors.Is(s.Reason, target)
}

func newTestAuth(store *stubStore, id *stubIdentity, opts ...AuthOption) *AuthContext {
	return NewAuthContext(store, id, zerolog.Nop(), opts...)
}

func TestAuthContext_InitialStateIsBootstrapping(t *testing.T) {
	a := newTestAuth(&stubStore{}, &stubIdentity{})

	st := a.State()
	assert.Equal(t, domain.PhaseBootstrapping, st.Phase)
	assert.True(t, st.IsLoading)
	assert.Nil(t, st.User)
	assert.Empty(t, st.Token)
}

func TestAuthContext_Bootstrap_EmptyStoreSkipsBackend(t *testing.T) {
	id := &stubIdentity{meFn: func(context.Context) (domain.User, error) {
		t.Fatal("who-am-I must not be called without a token")
		return domain.User{}, nil
	}}
	var outcomes []string
	a := newTestAuth(&stubStore{}, id, WithOutcome(func(o string) { outcomes = append(outcomes, o) }))

	require.NoError(t, a.Bootstrap(context.Background()))

	st := a.State()
	assert.Equal(t, domain.PhaseUnauthenticated, st.Phase)
	assert.False(t, st.IsLoading)
	assert.Nil(t, st.Reason)
	assert.Equal(t, []string{OutcomeNoToken}, outcomes)
}

func TestAuthContext_Bootstrap_ConfirmsWithServerUser(t *testing.T) {
	// The persisted role is stale; the server's answer wins.
	store := persisted("tok", domain.User{ID: 7, Role: domain.RoleAdmin})
	id := &stubIdentity{meFn: func(context.Context) (domain.User, error) {
		return domain.User{ID: 7, Role: domain.RolePatient}, nil
	}}
	a := newTestAuth(store, id)

	require.NoError(t, a.Bootstrap(context.Background()))

	st := a.State()
	require.Equal(t, domain.PhaseAuthenticated, st.Phase)
	assert.Equal(t, "tok", st.Token)
	assert.Equal(t, domain.User{ID: 7, Role: domain.RolePatient}, *st.User)

	_, saved := store.snapshot()
	require.NotNil(t, saved)
	assert.Equal(t, domain.RolePatient, saved.Role)
}

func TestAuthContext_PersistedRoleNeverVisibleBeforeConfirmation(t *testing.T) {
	store := persisted("tok", domain.User{ID: 7, Role: domain.RoleAdmin})
	release := make(chan struct{})
	entered := make(chan struct{})
	id := &stubIdentity{meFn: func(context.Context) (domain.User, error) {
		close(entered)
		<-release
		return domain.User{ID: 7, Role: domain.RoleDoctor}, nil
	}}
	a := newTestAuth(store, id)

	done := make(chan error, 1)
	go func() { done <- a.Bootstrap(context.Background()) }()
	<-entered

	st := a.State()
	assert.Equal(t, domain.PhaseBootstrapping, st.Phase)
	assert.Nil(t, st.User)
	assert.IsType(t, domain.Pending{}, a.current())

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, domain.RoleDoctor, a.State().User.Role)
}

func TestAuthContext_Bootstrap_RejectionClearsStore(t *testing.T) {
	cases := map[string]error{
		"unauthorized": domain.ErrUnauthorized,
		"network":      domain.ErrNetwork,
		"malformed":    domain.ErrMalformedResponse,
		"status":       domain.ErrUnexpectedStatus,
	}

	for name, cause := range cases {
		t.Run(name, func(t *testing.T) {
			store := persisted("tok", domain.User{ID: 1, Role: domain.RolePatient})
			id := &stubIdentity{meFn: func(context.Context) (domain.User, error) {
				return domain.User{}, cause
			}}
			a := newTestAuth(store, id)

			require.NoError(t, a.Bootstrap(context.Background()))

			st := a.State()
			assert.Equal(t, domain.PhaseUnauthenticated, st.Phase)
			assert.True(t, rejectedBy(st, cause))
			token, user := store.snapshot()
			assert.Empty(t, token)
			assert.Nil(t, user)
			assert.Equal(t, 1, id.calls, "no retry")
		})
	}
}

func TestAuthContext_Bootstrap_InvalidUserIsMalformed(t *testing.T) {
	store := persisted("tok", domain.User{ID: 1, Role: domain.RolePatient})
	id := &stubIdentity{meFn: func(context.Context) (domain.User, error) {
		return domain.User{ID: 1, Role: "nurse"}, nil
	}}
	a := newTestAuth(store, id)

	require.NoError(t, a.Bootstrap(context.Background()))
	assert.True(t, rejectedBy(a.State(), domain.ErrMalformedResponse))
}

func TestAuthContext_Bootstrap_StoreErrorIsUnauthenticated(t *testing.T) {
	boom := errors.New("disk on fire")
	store := &stubStore{readFn: func() error { return boom }}
	a := newTestAuth(store, &stubIdentity{})

	err := a.Bootstrap(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, domain.PhaseUnauthenticated, a.State().Phase)
	assert.True(t, rejectedBy(a.State(), boom))
}

func TestAuthContext_Bootstrap_TimeoutRejects(t *testing.T) {
	store := persisted("tok", domain.User{ID: 1, Role: domain.RolePatient})
	id := &stubIdentity{meFn: func(ctx context.Context) (domain.User, error) {
		<-ctx.Done()
		return domain.User{}, ctx.Err()
	}}
	a := newTestAuth(store, id, WithBootstrapTimeout(20*time.Millisecond))

	require.NoError(t, a.Bootstrap(context.Background()))
	st := a.State()
	assert.Equal(t, domain.PhaseUnauthenticated, st.Phase)
	assert.ErrorIs(t, st.Reason, context.DeadlineExceeded)
	token, user := store.snapshot()
	assert.Empty(t, token)
	assert.Nil(t, user)
}

func TestAuthContext_Bootstrap_TimeoutClearsRedisStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := redisstore.NewBackend(client, "", 0).Scope("b1")
	require.NoError(t, store.Save(ctx, "abc", domain.User{ID: 5, Role: domain.RolePatient}))

	id := &stubIdentity{meFn: func(ctx context.Context) (domain.User, error) {
		<-ctx.Done()
		return domain.User{}, fmt.Errorf("%w: %w", domain.ErrNetwork, ctx.Err())
	}}
	a := NewAuthContext(store, id, zerolog.Nop(), WithBootstrapTimeout(50*time.Millisecond))

	require.NoError(t, a.Bootstrap(ctx))
	assert.Equal(t, domain.PhaseUnauthenticated, a.State().Phase)

	token, user, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Nil(t, user)
	assert.False(t, mr.Exists("portal:session:b1:token"))
}

func TestAuthContext_StaleUnauthorizedKeepsFreshLogin(t *testing.T) {
	store := persisted("stale", domain.User{ID: 1, Role: domain.RolePatient})
	var a *AuthContext
	release := make(chan struct{})
	entered := make(chan struct{})
	id := &stubIdentity{meFn: func(ctx context.Context) (domain.User, error) {
		close(entered)
		<-release
		// What the gateway client does with a 401 for the token it sent.
		_, _ = store.ClearIf(ctx, "stale")
		a.Expire("stale", domain.ErrUnauthorized)
		return domain.User{}, domain.ErrUnauthorized
	}}
	a = newTestAuth(store, id)

	done := make(chan error, 1)
	go func() { done <- a.Bootstrap(context.Background()) }()
	<-entered

	fresh := domain.User{ID: 2, Role: domain.RoleDoctor}
	require.NoError(t, a.Login(context.Background(), "fresh", fresh))
	close(release)
	require.NoError(t, <-done)

	st := a.State()
	require.Equal(t, domain.PhaseAuthenticated, st.Phase)
	assert.Equal(t, "fresh", st.Token)
	token, _ := store.snapshot()
	assert.Equal(t, "fresh", token)
}

func TestAuthContext_StateDoesNotWaitOnStoreWrites(t *testing.T) {
	store := &blockingStore{stubStore: persisted("tok", domain.User{ID: 1, Role: domain.RolePatient}), saving: make(chan struct{}), unblock: make(chan struct{})}
	id := &stubIdentity{meFn: func(context.Context) (domain.User, error) {
		return domain.User{ID: 1, Role: domain.RolePatient}, nil
	}}
	a := NewAuthContext(store, id, zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- a.Bootstrap(context.Background()) }()
	<-store.saving

	read := make(chan domain.State, 1)
	go func() { read <- a.State() }()
	select {
	case st := <-read:
		assert.Equal(t, domain.PhaseBootstrapping, st.Phase)
	case <-time.After(time.Second):
		t.Fatal("State blocked behind a store write")
	}

	close(store.unblock)
	require.NoError(t, <-done)
	assert.Equal(t, domain.PhaseAuthenticated, a.State().Phase)
}

// blockingStore holds Save until unblock is closed.
type blockingStore struct {
	*stubStore
	saving  chan struct{}
	unblock chan struct{}
}

func (s *blockingStore) Save(ctx context.Context, token string, user domain.User) error {
	close(s.saving)
	<-s.unblock
	return s.stubStore.Save(ctx, token, user)
}

func TestAuthContext_Bootstrap_RunsOnce(t *testing.T) {
	store := persisted("tok", domain.User{ID: 1, Role: domain.RolePatient})
	id := &stubIdentity{meFn: func(context.Context) (domain.User, error) {
		return domain.User{ID: 1, Role: domain.RolePatient}, nil
	}}
	a := newTestAuth(store, id)

	require.NoError(t, a.Bootstrap(context.Background()))
	require.NoError(t, a.Bootstrap(context.Background()))
	assert.Equal(t, 1, id.calls)
}

func TestAuthContext_LoginDuringBootstrapWins(t *testing.T) {
	store := persisted("old", domain.User{ID: 1, Role: domain.RolePatient})
	release := make(chan struct{})
	entered := make(chan struct{})
	id := &stubIdentity{meFn: func(context.Context) (domain.User, error) {
		close(entered)
		<-release
		return domain.User{}, domain.ErrUnauthorized
	}}
	var outcomes []string
	var omu sync.Mutex
	a := newTestAuth(store, id, WithOutcome(func(o string) {
		omu.Lock()
		outcomes = append(outcomes, o)
		omu.Unlock()
	}))

	done := make(chan error, 1)
	go func() { done <- a.Bootstrap(context.Background()) }()
	<-entered

	fresh := domain.User{ID: 2, Role: domain.RoleDoctor}
	require.NoError(t, a.Login(context.Background(), "new", fresh))
	close(release)
	require.NoError(t, <-done)

	st := a.State()
	require.Equal(t, domain.PhaseAuthenticated, st.Phase)
	assert.Equal(t, "new", st.Token)
	assert.Equal(t, fresh, *st.User)

	token, user := store.snapshot()
	assert.Equal(t, "new", token, "late rejection must not clear the fresh login")
	assert.Equal(t, fresh, *user)
	assert.Zero(t, store.clears)

	omu.Lock()
	defer omu.Unlock()
	assert.Equal(t, []string{OutcomeSuperseded}, outcomes)
}

func TestAuthContext_Login(t *testing.T) {
	store := &stubStore{}
	a := newTestAuth(store, &stubIdentity{})

	u := domain.User{ID: 5, Role: domain.RoleAdmin}
	require.NoError(t, a.Login(context.Background(), "tok", u))

	st := a.State()
	assert.Equal(t, domain.PhaseAuthenticated, st.Phase)
	assert.Equal(t, u, *st.User)
	token, saved := store.snapshot()
	assert.Equal(t, "tok", token)
	assert.Equal(t, u, *saved)

	// Wait returns immediately once a login resolved the window.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, a.Wait(ctx))
}

func TestAuthContext_Login_RejectsPartialSession(t *testing.T) {
	store := &stubStore{}
	a := newTestAuth(store, &stubIdentity{})

	assert.ErrorIs(t, a.Login(context.Background(), "", domain.User{ID: 1, Role: domain.RolePatient}), domain.ErrInvalidSession)
	assert.ErrorIs(t, a.Login(context.Background(), "tok", domain.User{}), domain.ErrInvalidSession)

	token, user := store.snapshot()
	assert.Empty(t, token)
	assert.Nil(t, user)
	assert.Equal(t, domain.PhaseBootstrapping, a.State().Phase)
}

func TestAuthContext_LoginThenLogout(t *testing.T) {
	store := &stubStore{}
	a := newTestAuth(store, &stubIdentity{})

	require.NoError(t, a.Login(context.Background(), "tok", domain.User{ID: 5, Role: domain.RoleAdmin}))
	require.NoError(t, a.Logout(context.Background()))

	st := a.State()
	assert.Equal(t, domain.PhaseUnauthenticated, st.Phase)
	assert.Nil(t, st.User)
	assert.Empty(t, st.Token)
	token, user := store.snapshot()
	assert.Empty(t, token)
	assert.Nil(t, user)
}

func TestAuthContext_LogoutIsIdempotent(t *testing.T) {
	a := newTestAuth(&stubStore{}, &stubIdentity{})

	require.NoError(t, a.Logout(context.Background()))
	require.NoError(t, a.Logout(context.Background()))
	assert.Equal(t, domain.PhaseUnauthenticated, a.State().Phase)
}

func TestAuthContext_ExpireOnlyDropsConfirmed(t *testing.T) {
	a := newTestAuth(&stubStore{}, &stubIdentity{})

	a.Expire("tok", domain.ErrUnauthorized)
	assert.Equal(t, domain.PhaseBootstrapping, a.State().Phase, "pending bootstrap is left alone")

	require.NoError(t, a.Login(context.Background(), "tok", domain.User{ID: 5, Role: domain.RoleAdmin}))
	a.Expire("older", domain.ErrUnauthorized)
	assert.Equal(t, domain.PhaseAuthenticated, a.State().Phase, "a 401 for another token keeps the session")

	a.Expire("tok", nil)

	st := a.State()
	assert.Equal(t, domain.PhaseUnauthenticated, st.Phase)
	assert.True(t, rejectedBy(st, domain.ErrUnauthorized))
}

func TestAuthContext_WaitHonoursContext(t *testing.T) {
	a := newTestAuth(&stubStore{}, &stubIdentity{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, a.Wait(ctx), context.DeadlineExceeded)
}
