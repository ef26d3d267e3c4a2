package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for the provider and validation boundaries. Callers branch
// with errors.Is; user-facing messages travel alongside via ValidationError
// or the wrapping error's text.
var (
	// ErrProviderUnavailable means no wallet capability is reachable at all.
	// The consumer should direct the user to install or configure one.
	ErrProviderUnavailable = errors.New("wallet provider unavailable")
	// ErrUserRejected means the user declined a provider prompt.
	ErrUserRejected = errors.New("user rejected the request")
	// ErrRpcRejected means the provider or contract rejected the call,
	// e.g. a reverted transfer. The provider message is wrapped verbatim.
	ErrRpcRejected = errors.New("rpc call rejected")
	// ErrNetwork is a transient transport failure; retries are manual.
	ErrNetwork = errors.New("network error")
	// ErrNotConnected means an operation needs a connected session.
	ErrNotConnected = errors.New("wallet not connected")
)

// ValidationError reports bad user input with a message safe to render inline.
// No provider call is ever made for a request that fails validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// WrapRpcRejected attaches the provider's own message to ErrRpcRejected so it
// can be surfaced verbatim.
func WrapRpcRejected(err error) error {
	return fmt.Errorf("%w: %s", ErrRpcRejected, err.Error())
}
