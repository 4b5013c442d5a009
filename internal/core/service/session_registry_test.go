package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medclinic/booking-portal/internal/core/domain"
	"github.com/medclinic/booking-portal/internal/core/ports"
)

type recordingQueue struct {
	mu   sync.Mutex
	jobs []ports.BootstrapJob
}

func (q *recordingQueue) Enqueue(job ports.BootstrapJob) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
}

type countingObserver struct {
	last int
}

func (o *countingObserver) SessionsActive(n int) { o.last = n }

func testBuilder(stores map[string]*stubStore) SessionBuilder {
	return func(browserID string) *Session {
		s, ok := stores[browserID]
		if !ok {
			s = &stubStore{}
			stores[browserID] = s
		}
		id := &stubIdentity{meFn: func(context.Context) (domain.User, error) {
			return domain.User{ID: 1, Role: domain.RolePatient}, nil
		}}
		return &Session{ID: browserID, Auth: NewAuthContext(s, id, zerolog.Nop())}
	}
}

func TestSessionRegistry_GetCreatesOnceAndEnqueues(t *testing.T) {
	q := &recordingQueue{}
	obs := &countingObserver{}
	reg := NewSessionRegistry(testBuilder(map[string]*stubStore{}), q, zerolog.Nop(), WithObserver(obs))

	first := reg.Get("b1")
	again := reg.Get("b1")
	other := reg.Get("b2")

	assert.Same(t, first, again)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, 2, obs.last)

	require.Len(t, q.jobs, 2)
	assert.Equal(t, "b1", q.jobs[0].BrowserID)
	assert.Same(t, first.Auth, q.jobs[0].Session)
}

func TestSessionRegistry_SweepEvictsIdle(t *testing.T) {
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	obs := &countingObserver{}
	reg := NewSessionRegistry(testBuilder(map[string]*stubStore{}), &recordingQueue{}, zerolog.Nop(),
		WithIdleTTL(10*time.Minute), WithClock(clock), WithObserver(obs))

	reg.Get("idle")
	now = now.Add(6 * time.Minute)
	reg.Get("busy")
	now = now.Add(6 * time.Minute)

	assert.Equal(t, 1, reg.Sweep())
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, 1, obs.last)
	assert.Zero(t, reg.Sweep())
}

func TestSessionRegistry_EvictedSessionRemountsFromStore(t *testing.T) {
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	stores := map[string]*stubStore{}
	q := &recordingQueue{}
	reg := NewSessionRegistry(testBuilder(stores), q, zerolog.Nop(),
		WithIdleTTL(time.Minute), WithClock(func() time.Time { return now }))

	s := reg.Get("b1")
	require.NoError(t, s.Auth.Login(context.Background(), "tok", domain.User{ID: 1, Role: domain.RolePatient}))

	now = now.Add(2 * time.Minute)
	require.Equal(t, 1, reg.Sweep())

	remounted := reg.Get("b1")
	require.NotSame(t, s, remounted)
	assert.Equal(t, domain.PhaseBootstrapping, remounted.Auth.State().Phase)

	require.NoError(t, remounted.Auth.Bootstrap(context.Background()))
	assert.Equal(t, domain.PhaseAuthenticated, remounted.Auth.State().Phase)
	assert.Len(t, q.jobs, 2)
}
