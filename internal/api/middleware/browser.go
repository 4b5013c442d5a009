package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medclinic/booking-portal/internal/core/service"
)

// BrowserCookie holds the opaque browser id.
const BrowserCookie = "bid"

const browserCookieMaxAge = 365 * 24 * time.Hour

// SessionSource resolves the session of a browser id.
type SessionSource interface {
	Get(browserID string) *service.Session
}

// Browser identifies the calling browser by its cookie, issuing a fresh id
// when the cookie is missing or not a UUID, and attaches its session.
func Browser(sessions SessionSource, secure bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := ""
			if ck, err := c.Cookie(BrowserCookie); err == nil {
				if parsed, err := uuid.Parse(ck.Value); err == nil {
					id = parsed.String()
				}
			}
			if id == "" {
				id = uuid.NewString()
				c.SetCookie(&http.Cookie{
					Name:     BrowserCookie,
					Value:    id,
					Path:     "/",
					MaxAge:   int(browserCookieMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			c.Set(SessionKey, sessions.Get(id))
			return next(c)
		}
	}
}
