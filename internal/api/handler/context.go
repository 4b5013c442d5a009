package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medclinic/booking-portal/internal/api/middleware"
	"github.com/medclinic/booking-portal/internal/core/domain"
	"github.com/medclinic/booking-portal/internal/core/service"
)

// ctxSession returns the browser session attached by the Browser middleware.
func ctxSession(c echo.Context) (*service.Session, error) {
	sess, _ := c.Get(middleware.SessionKey).(*service.Session)
	if sess == nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "browser session missing")
	}
	return sess, nil
}

// ctxUser returns the user the Protected gate confirmed. Its presence proves
// the gate ran.
func ctxUser(c echo.Context) (domain.User, error) {
	u, ok := c.Get(middleware.UserKey).(domain.User)
	if !ok {
		return domain.User{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication")
	}
	return u, nil
}
