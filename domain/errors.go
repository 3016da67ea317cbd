package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeInvalid           ErrorCode = "INVALID"
	ErrCodeConflict          ErrorCode = "CONFLICT"
	ErrCodeForbidden         ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeCredentialExpired ErrorCode = "CREDENTIAL_EXPIRED"
	ErrCodeUpstream          ErrorCode = "UPSTREAM"
	ErrCodeInternal          ErrorCode = "INTERNAL"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code and message, so wrapped
// copies of a sentinel still match it.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// Wrap returns a copy of the sentinel carrying cause.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Err: cause}
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain errors.
var (
	ErrUserNotFound    = NewError(ErrCodeNotFound, "user not found")
	ErrTaskNotFound    = NewError(ErrCodeNotFound, "task not found")
	ErrSessionNotFound = NewError(ErrCodeNotFound, "session not found")
	ErrUnauthorized    = NewError(ErrCodeUnauthorized, "unauthorized")
	ErrInvalidPayload  = NewError(ErrCodeInvalid, "invalid payload")

	ErrEmptyTaskText   = NewError(ErrCodeInvalid, "task text must not be empty")
	ErrInvalidDateTime = NewError(ErrCodeInvalid, "Invalid date/time. Use the picker.")

	ErrInvalidEmail       = NewError(ErrCodeInvalid, "invalid email address")
	ErrWeakPassword       = NewError(ErrCodeInvalid, "password should be at least 6 characters")
	ErrInvalidCredentials = NewError(ErrCodeUnauthorized, "invalid email or password")
	ErrEmailInUse         = NewError(ErrCodeConflict, "email already in use")
	ErrAccountExists      = NewError(ErrCodeConflict, "an account already exists with this email; sign in with your password and link Google")
	ErrCredentialInUse    = NewError(ErrCodeConflict, "this Google account is already linked to another user")
	ErrProviderLinked     = NewError(ErrCodeConflict, "Google is already linked to this account")
	ErrFederatedSignIn    = NewError(ErrCodeUnauthorized, "Google sign-in failed")
	ErrFederatedDisabled  = NewError(ErrCodeForbidden, "Google sign-in is not configured")

	ErrCalendarTokenMissing  = NewError(ErrCodeUnauthorized, "You must sign in with Google (or link Google) to add events to Calendar.")
	ErrCalendarAccessExpired = NewError(ErrCodeCredentialExpired, "Google access expired. Please sign in with Google again.")
	ErrCalendarUnreachable   = NewError(ErrCodeUpstream, "Network error creating calendar event")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// MessageOf returns the user-facing message of a domain error, or fallback.
func MessageOf(err error, fallback string) string {
	var dErr *Error
	if errors.As(err, &dErr) && dErr.Message != "" {
		return dErr.Message
	}
	return fallback
}
