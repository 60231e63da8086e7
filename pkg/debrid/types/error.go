package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies provider failures so the caller can decide between
// re-auth prompts, cooldowns and plain error surfaces.
type ErrorKind string

const (
	ErrAuth      ErrorKind = "auth"
	ErrRateLimit ErrorKind = "rate_limit"
	ErrProvider  ErrorKind = "provider"
	ErrTransport ErrorKind = "transport"
)

// Error is the typed error every adapter normalizes upstream failures into
// before they cross the adapter boundary.
type Error struct {
	Provider   string        `json:"provider"`
	Kind       ErrorKind     `json:"kind"`
	Code       string        `json:"code,omitempty"`
	Message    string        `json:"message"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s): %s", e.Provider, e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
}

func NewAuthError(provider, message string) *Error {
	return &Error{Provider: provider, Kind: ErrAuth, Message: message}
}

func NewRateLimitError(provider, message string, retryAfter time.Duration) *Error {
	return &Error{Provider: provider, Kind: ErrRateLimit, Message: message, RetryAfter: retryAfter}
}

func NewProviderError(provider, code, message string) *Error {
	return &Error{Provider: provider, Kind: ErrProvider, Code: code, Message: message}
}

// NewTransportError wraps non-JSON bodies and unexpected statuses; the
// original status text travels in the message.
func NewTransportError(provider, message string) *Error {
	return &Error{Provider: provider, Kind: ErrTransport, Message: message}
}

// AsError extracts a typed *Error from any error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func IsAuthError(err error) bool {
	e, ok := AsError(err)
	return ok && e.Kind == ErrAuth
}

func IsRateLimitError(err error) bool {
	e, ok := AsError(err)
	return ok && e.Kind == ErrRateLimit
}
