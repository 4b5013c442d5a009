package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medclinic/booking-portal/internal/api/middleware"
	"github.com/medclinic/booking-portal/internal/core/domain"
	"github.com/medclinic/booking-portal/internal/infrastructure/apiclient"
)

// errorResponse is the canonical error envelope for all portal errors.
type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - sends the browser to the login page when the backend rejected its token;
//   - maps other known errors to their HTTP status codes;
//   - logs unexpected errors without leaking details to the client.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		if errors.Is(err, domain.ErrUnauthorized) {
			_ = c.Redirect(http.StatusSeeOther, middleware.LoginPath)
			return
		}

		code, msg := resolveError(err, log, c)
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	switch {
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "access forbidden"
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUnknownResource):
		return http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrNetwork):
		return http.StatusBadGateway, "clinic service unreachable"
	case errors.Is(err, domain.ErrMalformedResponse):
		return http.StatusBadGateway, "clinic service sent an unreadable response"
	case errors.Is(err, domain.ErrUnexpectedStatus):
		var apiErr *apiclient.Error
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 && apiErr.Message != "" {
			return apiErr.Status, apiErr.Message
		}
		return http.StatusBadGateway, "clinic service error"
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}
