package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medclinic/booking-portal/internal/core/domain"
	"github.com/medclinic/booking-portal/internal/core/service"
	"github.com/medclinic/booking-portal/internal/infrastructure/db/memory"
)

type noIdentity struct{}

func (noIdentity) Me(context.Context) (domain.User, error) {
	return domain.User{}, domain.ErrUnauthorized
}

// sessionIn returns a session in the requested phase. A non-empty role logs
// the session in.
func sessionIn(t *testing.T, phase domain.Phase, role domain.Role) *service.Session {
	t.Helper()
	auth := service.NewAuthContext(memory.New().Scope("b"), noIdentity{}, zerolog.Nop())
	switch phase {
	case domain.PhaseAuthenticated:
		if err := auth.Login(context.Background(), "tok", domain.User{ID: 1, Role: role}); err != nil {
			t.Fatalf("login: %v", err)
		}
	case domain.PhaseUnauthenticated:
		if err := auth.Logout(context.Background()); err != nil {
			t.Fatalf("logout: %v", err)
		}
	}
	return &service.Session{ID: "b", Auth: auth}
}

func runGate(t *testing.T, sess *service.Session, roles ...domain.Role) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if sess != nil {
		c.Set(SessionKey, sess)
	}

	called := false
	handler := Protected(roles...)(func(c echo.Context) error {
		called = true
		if _, ok := c.Get(UserKey).(domain.User); !ok {
			t.Fatalf("user not set for allowed request")
		}
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec, called
}

func TestProtected_BootstrappingShowsLoading(t *testing.T) {
	rec, called := runGate(t, sessionIn(t, domain.PhaseBootstrapping, ""), domain.RoleAdmin)

	if called {
		t.Fatalf("next must not run while bootstrapping")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 loading page, got %d", rec.Code)
	}
	if rec.Header().Get("Location") != "" {
		t.Fatalf("loading page must not redirect")
	}
	if rec.Header().Get("Refresh") == "" {
		t.Fatalf("expected Refresh header")
	}
	if !strings.Contains(rec.Body.String(), "Loading") {
		t.Fatalf("expected loading placeholder, got %q", rec.Body.String())
	}
}

func TestProtected_UnauthenticatedRedirectsToLogin(t *testing.T) {
	rec, called := runGate(t, sessionIn(t, domain.PhaseUnauthenticated, ""))

	if called {
		t.Fatalf("next must not run")
	}
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != LoginPath {
		t.Fatalf("expected 303 to %s, got %d %q", LoginPath, rec.Code, rec.Header().Get("Location"))
	}
}

func TestProtected_MissingSessionRedirectsToLogin(t *testing.T) {
	rec, called := runGate(t, nil)

	if called || rec.Header().Get("Location") != LoginPath {
		t.Fatalf("expected redirect to login, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestProtected_WrongRoleRedirectsHome(t *testing.T) {
	rec, called := runGate(t, sessionIn(t, domain.PhaseAuthenticated, domain.RolePatient), domain.RoleAdmin)

	if called {
		t.Fatalf("next must not run for a disallowed role")
	}
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != HomePath {
		t.Fatalf("expected 303 to %s, got %d %q", HomePath, rec.Code, rec.Header().Get("Location"))
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("role redirect must be silent, got %q", rec.Body.String())
	}
}

func TestProtected_AllowedRole(t *testing.T) {
	rec, called := runGate(t, sessionIn(t, domain.PhaseAuthenticated, domain.RoleAdmin), domain.RoleAdmin, domain.RoleDoctor)

	if !called || rec.Code != http.StatusOK {
		t.Fatalf("expected next to run, got %d", rec.Code)
	}
}

func TestProtected_NoRolesAllowsAnyAuthenticated(t *testing.T) {
	for _, role := range domain.Roles {
		rec, called := runGate(t, sessionIn(t, domain.PhaseAuthenticated, role))
		if !called || rec.Code != http.StatusOK {
			t.Fatalf("role %s: expected pass, got %d", role, rec.Code)
		}
	}
}
