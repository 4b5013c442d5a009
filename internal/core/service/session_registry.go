package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/medclinic/booking-portal/internal/core/ports"
)

const (
	defaultIdleTTL = 30 * time.Minute
	sweepInterval  = time.Minute
)

// Session bundles everything the portal holds for one browser.
type Session struct {
	ID      string
	Auth    *AuthContext
	Backend ports.BackendAPI
}

// SessionBuilder creates the session for a browser id seen for the first
// time. The returned session has not been bootstrapped.
type SessionBuilder func(browserID string) *Session

// Observer receives registry-level signals, typically metrics.
type Observer interface {
	SessionsActive(n int)
}

type registryEntry struct {
	session  *Session
	lastSeen time.Time
}

// SessionRegistry keeps one in-memory session per browser id. Evicting an
// idle session only drops memory; its token store is untouched, so the next
// request mounts it again from what was persisted.
type SessionRegistry struct {
	build    SessionBuilder
	queue    ports.BootstrapQueue
	idleTTL  time.Duration
	observer Observer
	log      zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*registryEntry
}

// RegistryOption configures a SessionRegistry.
type RegistryOption func(*SessionRegistry)

// WithIdleTTL sets how long an unused session stays in memory.
func WithIdleTTL(d time.Duration) RegistryOption {
	return func(r *SessionRegistry) {
		if d > 0 {
			r.idleTTL = d
		}
	}
}

// WithObserver registers an Observer.
func WithObserver(o Observer) RegistryOption {
	return func(r *SessionRegistry) { r.observer = o }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *SessionRegistry) { r.now = now }
}

// NewSessionRegistry returns an empty registry that mounts new sessions
// through queue.
func NewSessionRegistry(build SessionBuilder, queue ports.BootstrapQueue, log zerolog.Logger, opts ...RegistryOption) *SessionRegistry {
	r := &SessionRegistry{
		build:   build,
		queue:   queue,
		idleTTL: defaultIdleTTL,
		log:     log.With().Str("component", "session_registry").Logger(),
		now:     time.Now,
		entries: make(map[string]*registryEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the session for browserID, creating and mounting it on first
// sight.
func (r *SessionRegistry) Get(browserID string) *Session {
	r.mu.Lock()
	if e, ok := r.entries[browserID]; ok {
		e.lastSeen = r.now()
		r.mu.Unlock()
		return e.session
	}

	s := r.build(browserID)
	r.entries[browserID] = &registryEntry{session: s, lastSeen: r.now()}
	n := len(r.entries)
	r.mu.Unlock()

	r.notify(n)
	r.log.Debug().Str("browser_id", browserID).Msg("mounting session")
	r.queue.Enqueue(ports.BootstrapJob{BrowserID: browserID, Session: s.Auth})
	return s
}

// Len returns the number of sessions held in memory.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep evicts sessions idle for longer than the idle TTL and returns how
// many were dropped.
func (r *SessionRegistry) Sweep() int {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	evicted := 0
	for id, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			delete(r.entries, id)
			evicted++
		}
	}
	n := len(r.entries)
	r.mu.Unlock()

	if evicted > 0 {
		r.notify(n)
		r.log.Debug().Int("evicted", evicted).Int("remaining", n).Msg("idle sessions swept")
	}
	return evicted
}

// Run sweeps periodically until ctx is cancelled.
func (r *SessionRegistry) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *SessionRegistry) notify(n int) {
	if r.observer != nil {
		r.observer.SessionsActive(n)
	}
}
