package generation

import (
	"errors"
	"fmt"
)

// Common errors returned by the generation package and its adapters.
var (
	// ErrMissingCredential is returned before any network call when the
	// selected provider lacks its API key or endpoint.
	ErrMissingCredential = errors.New("provider credential is not configured")

	// ErrProviderError is returned when the upstream rejects a request or
	// answers with a payload that cannot be interpreted.
	ErrProviderError = errors.New("provider request failed")

	// ErrEmptyResult is returned when the upstream answers well-formed but
	// without any text.
	ErrEmptyResult = errors.New("provider returned empty content")

	// ErrContentBlocked is returned when the upstream refuses the prompt
	// because of safety filters. It wraps ErrProviderError.
	ErrContentBlocked = fmt.Errorf("%w: content blocked by safety filters", ErrProviderError)

	// ErrUnknownProvider is returned when a provider name has no registered factory.
	ErrUnknownProvider = errors.New("unknown provider")
)

// ProviderError carries the upstream detail of a failed provider call.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", ErrProviderError, e.Provider, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s: %s", ErrProviderError, e.Provider, msg)
}

// Unwrap lets errors.Is match both ErrProviderError and the cause.
func (e *ProviderError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrProviderError, e.Err}
	}
	return []error{ErrProviderError}
}

// NewProviderError builds a ProviderError.
func NewProviderError(provider string, status int, message string, err error) *ProviderError {
	return &ProviderError{Provider: provider, StatusCode: status, Message: message, Err: err}
}

// MissingCredential reports which credential a provider lacks.
func MissingCredential(provider, what string) error {
	return fmt.Errorf("%w: %s %s", ErrMissingCredential, provider, what)
}
