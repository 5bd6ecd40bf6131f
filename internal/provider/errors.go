package provider

import (
	"errors"
	"fmt"
	"time"
)

// Code classifies adapter failures so callers can decide between surfacing,
// re-auth prompts, and retry with backoff.
type Code string

const (
	CodeInvalidConfig Code = "invalid_config"
	CodeAuthRejected  Code = "auth_rejected"
	CodeAuthExpired   Code = "auth_expired"
	CodeUnavailable   Code = "provider_unavailable"
	CodeRateLimited   Code = "rate_limited"
)

// Error is the typed failure returned by provider adapters.
type Error struct {
	Code       Code
	Provider   Type
	Op         string
	Msg        string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s %s: %s: %s", e.Provider, e.Op, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a typed adapter error.
func NewError(provider Type, op string, code Code, msg string) *Error {
	return &Error{Code: code, Provider: provider, Op: op, Msg: msg}
}

// WrapError wraps err with a typed adapter error.
func WrapError(provider Type, op string, code Code, err error) *Error {
	return &Error{Code: code, Provider: provider, Op: op, Err: err}
}

// ErrCode extracts the failure code from err, or "" when err is not an adapter error.
func ErrCode(err error) Code {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsCode reports whether err carries the given failure code.
func IsCode(err error, code Code) bool {
	return ErrCode(err) == code
}

// Transient reports whether err should be retried with backoff rather than
// surfaced as a permanent failure.
func Transient(err error) bool {
	switch ErrCode(err) {
	case CodeUnavailable, CodeRateLimited:
		return true
	}
	return false
}
