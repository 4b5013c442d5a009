package apiclient

import (
	"fmt"
	"net/http"

	"github.com/medclinic/booking-portal/internal/core/domain"
)

// Kind classifies a failed backend call.
type Kind string

const (
	KindNetwork      Kind = "network"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindMalformed    Kind = "malformed"
	KindStatus       Kind = "status"
)

// Error is returned for every failed backend call. errors.Is matches both the
// domain sentinel for its Kind and the underlying cause.
type Error struct {
	Kind   Kind
	Method string
	Path   string
	Status int
	// Message is the backend's own error text, when it sent one.
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the kind sentinel and the cause.
func (e *Error) Unwrap() []error {
	errs := []error{e.sentinel()}
	if e.Status == http.StatusNotFound {
		errs = append(errs, domain.ErrNotFound)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindNetwork:
		return domain.ErrNetwork
	case KindUnauthorized:
		return domain.ErrUnauthorized
	case KindForbidden:
		return domain.ErrForbidden
	case KindMalformed:
		return domain.ErrMalformedResponse
	default:
		return domain.ErrUnexpectedStatus
	}
}
