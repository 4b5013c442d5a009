package domain

import "errors"

// Backend call failures, one per taxonomy kind.
var (
	ErrNetwork            = errors.New("backend unreachable")
	ErrUnauthorized       = errors.New("not authenticated")
	ErrForbidden          = errors.New("access forbidden")
	ErrMalformedResponse  = errors.New("malformed backend response")
	ErrUnexpectedStatus   = errors.New("unexpected backend status")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrNotFound           = errors.New("resource not found")
)

// Session failures.
var (
	ErrInvalidSession  = errors.New("token and user must both be present")
	ErrUnknownResource = errors.New("unknown resource")
)
