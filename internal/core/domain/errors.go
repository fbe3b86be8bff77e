package domain

import (
	"errors"
	"fmt"
)

// Error kinds surfaced to callers of the auth services.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidatedRefreshToken marks a refresh token that no longer matches the live session.
	ErrInvalidatedRefreshToken = fmt.Errorf("%w: refresh token invalidated", ErrUnauthorized)
)

// AuthError pairs an error kind with the message shown to the client.
type AuthError struct {
	Kind    error
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *AuthError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func Unauthorized(msg string) error { return &AuthError{Kind: ErrUnauthorized, Message: msg} }

func Forbidden(msg string) error { return &AuthError{Kind: ErrForbidden, Message: msg} }

func Conflict(msg string) error { return &AuthError{Kind: ErrConflict, Message: msg} }

func NotFound(msg string) error { return &AuthError{Kind: ErrNotFound, Message: msg} }

func InvalidInput(msg string) error { return &AuthError{Kind: ErrInvalidInput, Message: msg} }

// AccessDenied is the client-facing form of ErrInvalidatedRefreshToken.
func AccessDenied(cause error) error {
	return &AuthError{Kind: ErrInvalidatedRefreshToken, Message: "Access Denied", Err: cause}
}

// PublicMessage returns the client-facing message of err, or fallback when err carries none.
func PublicMessage(err error, fallback string) string {
	var ae *AuthError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return fallback
}
