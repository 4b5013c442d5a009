package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medclinic/booking-portal/internal/api/metrics"
	"github.com/medclinic/booking-portal/internal/core/domain"
	"github.com/medclinic/booking-portal/internal/core/service"
)

const loadingPage = `<!doctype html>
<html><head><meta charset="utf-8"><title>Loading</title></head>
<body><p>Loading&hellip;</p></body></html>`

// Protected guards a route on the browser's auth state:
//   - bootstrapping: neutral loading page that refreshes itself, no redirect;
//   - unauthenticated: 303 to the login page;
//   - authenticated with a role outside allowedRoles: silent 303 home;
//   - otherwise the user is set under UserKey and next runs.
//
// A redirect response never becomes a history entry, so the guarded URL can
// not be reached with the back button.
func Protected(allowedRoles ...domain.Role) echo.MiddlewareFunc {
	allowed := make(map[domain.Role]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess, _ := c.Get(SessionKey).(*service.Session)
			if sess == nil {
				metrics.GateDecisionsTotal.WithLabelValues("login_redirect").Inc()
				return c.Redirect(http.StatusSeeOther, LoginPath)
			}

			st := sess.Auth.State()
			switch st.Phase {
			case domain.PhaseBootstrapping:
				metrics.GateDecisionsTotal.WithLabelValues("loading").Inc()
				h := c.Response().Header()
				h.Set("Refresh", "1")
				h.Set(echo.HeaderCacheControl, "no-store")
				return c.HTML(http.StatusOK, loadingPage)
			case domain.PhaseUnauthenticated:
				metrics.GateDecisionsTotal.WithLabelValues("login_redirect").Inc()
				return c.Redirect(http.StatusSeeOther, LoginPath)
			}

			if len(allowed) > 0 {
				if _, ok := allowed[st.User.Role]; !ok {
					metrics.GateDecisionsTotal.WithLabelValues("home_redirect").Inc()
					return c.Redirect(http.StatusSeeOther, HomePath)
				}
			}

			metrics.GateDecisionsTotal.WithLabelValues("allow").Inc()
			c.Set(UserKey, *st.User)
			return next(c)
		}
	}
}
