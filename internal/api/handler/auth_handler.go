package handler

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medclinic/booking-portal/internal/api/middleware"
	"github.com/medclinic/booking-portal/internal/core/domain"
	"github.com/medclinic/booking-portal/internal/core/ports"
)

var loginTmpl = template.Must(template.New("login").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>Sign in</title></head>
<body>
{{if .Toast}}<div class="toast" role="alert">{{.Toast}}</div>{{end}}
<form method="post" action="/login">
  <input type="email" name="email" placeholder="Email" required>
  <input type="password" name="password" placeholder="Password" required>
  <button type="submit">Sign in</button>
</form>
<form method="post" action="/register">
  <input type="text" name="full_name" placeholder="Full name" required>
  <input type="email" name="email" placeholder="Email" required>
  <input type="password" name="password" placeholder="Password" required>
  <button type="submit">Create account</button>
</form>
</body></html>`))

// AuthHandler serves the login, registration and logout flows.
type AuthHandler struct {
	log zerolog.Logger
}

func NewAuthHandler(log zerolog.Logger) *AuthHandler {
	return &AuthHandler{log: log.With().Str("component", "auth_handler").Logger()}
}

type loginForm struct {
	Email    string `form:"email"    validate:"required,email"`
	Password string `form:"password" validate:"required,min=6"`
}

type registerForm struct {
	FullName string `form:"full_name" validate:"required,max=120"`
	Email    string `form:"email"     validate:"required,email"`
	Password string `form:"password"  validate:"required,min=6"`
}

type sessionResponse struct {
	Phase     domain.Phase `json:"phase"`
	IsLoading bool         `json:"is_loading"`
	User      *domain.User `json:"user,omitempty"`
	Reason    string       `json:"reason,omitempty"`
}

// LoginPage handles GET /login. An authenticated browser goes home.
func (h *AuthHandler) LoginPage(c echo.Context) error {
	sess, err := ctxSession(c)
	if err != nil {
		return err
	}
	if sess.Auth.State().Authenticated() {
		return c.Redirect(http.StatusSeeOther, middleware.HomePath)
	}

	var buf bytes.Buffer
	if err := loginTmpl.Execute(&buf, struct{ Toast string }{Toast: popToast(c)}); err != nil {
		return err
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

// Login handles POST /login.
func (h *AuthHandler) Login(c echo.Context) error {
	sess, err := ctxSession(c)
	if err != nil {
		return err
	}

	var form loginForm
	if err := c.Bind(&form); err != nil {
		return h.back(c, "Invalid form submission")
	}
	if err := c.Validate(&form); err != nil {
		return h.back(c, err.Error())
	}

	ctx := c.Request().Context()
	res, err := sess.Backend.Login(ctx, form.Email, form.Password)
	if err != nil {
		return h.back(c, toastFor(err))
	}
	if err := sess.Auth.Login(ctx, res.Token, res.User()); err != nil {
		return h.back(c, toastFor(err))
	}

	return c.Redirect(http.StatusSeeOther, middleware.HomePath)
}

// Register handles POST /register: patient self sign-up followed by an
// immediate login with the returned token.
func (h *AuthHandler) Register(c echo.Context) error {
	sess, err := ctxSession(c)
	if err != nil {
		return err
	}

	var form registerForm
	if err := c.Bind(&form); err != nil {
		return h.back(c, "Invalid form submission")
	}
	if err := c.Validate(&form); err != nil {
		return h.back(c, err.Error())
	}

	ctx := c.Request().Context()
	res, err := sess.Backend.Register(ctx, ports.RegisterInput{
		Email:    form.Email,
		Password: form.Password,
		FullName: form.FullName,
	})
	if err != nil {
		return h.back(c, toastFor(err))
	}
	if err := sess.Auth.Login(ctx, res.Token, res.User()); err != nil {
		return h.back(c, toastFor(err))
	}

	return c.Redirect(http.StatusSeeOther, middleware.HomePath)
}

// Logout handles POST /logout. It is purely local; the backend is not told.
func (h *AuthHandler) Logout(c echo.Context) error {
	sess, err := ctxSession(c)
	if err != nil {
		return err
	}
	if err := sess.Auth.Logout(c.Request().Context()); err != nil {
		h.log.Warn().Err(err).Str("browser_id", sess.ID).Msg("logout left the token store dirty")
	}
	return c.Redirect(http.StatusSeeOther, middleware.LoginPath)
}

// Session handles GET /api/session: the browser's auth snapshot, never the token.
func (h *AuthHandler) Session(c echo.Context) error {
	sess, err := ctxSession(c)
	if err != nil {
		return err
	}
	st := sess.Auth.State()
	resp := sessionResponse{Phase: st.Phase, IsLoading: st.IsLoading, User: st.User}
	if st.Reason != nil {
		resp.Reason = reasonCode(st.Reason)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) back(c echo.Context, msg string) error {
	setToast(c, msg)
	return c.Redirect(http.StatusSeeOther, middleware.LoginPath)
}

// toastFor turns a login failure into the message shown to the user.
func toastFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "Invalid email or password"
	case errors.Is(err, domain.ErrUserExists):
		return "An account with this email already exists"
	case errors.Is(err, domain.ErrNetwork):
		return "The clinic service is unreachable, please try again"
	case errors.Is(err, domain.ErrInvalidSession), errors.Is(err, domain.ErrMalformedResponse):
		return "The clinic service sent an unexpected response"
	default:
		return "Sign in failed, please try again"
	}
}

// reasonCode names why a session ended unauthenticated.
func reasonCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrNetwork):
		return "network"
	case errors.Is(err, domain.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, domain.ErrUnexpectedStatus):
		return "unexpected_status"
	default:
		return "error"
	}
}
