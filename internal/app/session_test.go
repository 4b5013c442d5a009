package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medclinic/booking-portal/internal/core/domain"
	"github.com/medclinic/booking-portal/internal/infrastructure/apiclient"
	"github.com/medclinic/booking-portal/internal/infrastructure/db/memory"
)

func TestSessionBuilder_LoginDuringBootstrapSurvivesStaleUnauthorized(t *testing.T) {
	meCalled := make(chan struct{})
	release := make(chan struct{})
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/users/me" {
			http.NotFound(w, r)
			return
		}
		close(meCalled)
		<-release
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"token expired"}`))
	}))
	t.Cleanup(backend.Close)

	stores := memory.New()
	store := stores.Scope("b1")
	patient := domain.User{ID: 5, Role: domain.RolePatient}
	require.NoError(t, store.Save(context.Background(), "stale", patient))

	sess := NewSessionBuilder(SessionDeps{
		Stores:           stores.Scope,
		Backend:          apiclient.Config{BaseURL: backend.URL},
		BootstrapTimeout: 2 * time.Second,
		Log:              zerolog.Nop(),
	})("b1")

	done := make(chan error, 1)
	go func() { done <- sess.Auth.Bootstrap(context.Background()) }()

	select {
	case <-meCalled:
	case <-time.After(2 * time.Second):
		t.Fatal("bootstrap never reached the backend")
	}

	doctor := domain.User{ID: 7, Role: domain.RoleDoctor}
	require.NoError(t, sess.Auth.Login(context.Background(), "fresh", doctor))
	close(release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("bootstrap did not return")
	}

	st := sess.Auth.State()
	assert.True(t, st.Authenticated())
	assert.Equal(t, "fresh", st.Token)
	require.NotNil(t, st.User)
	assert.Equal(t, doctor, *st.User)

	token, user, err := store.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", token)
	require.NotNil(t, user)
	assert.Equal(t, doctor, *user)
}
