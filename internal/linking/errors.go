package linking

import (
	"errors"

	"github.com/osse101/adlink/internal/domain"
)

// ErrorKind classifies a session failure
type ErrorKind string

// Session error kinds
const (
	ErrorKindMissingContext  ErrorKind = "missing_context"
	ErrorKindProviderError   ErrorKind = "provider_error"
	ErrorKindExchangeFailure ErrorKind = "exchange_failure"
	ErrorKindTimeout         ErrorKind = "timeout"
)

// SessionError is a failure surfaced to the user on the dialog
type SessionError struct {
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	cause     error
}

func newSessionError(kind ErrorKind, message string, cause error) *SessionError {
	return &SessionError{Kind: kind, Message: message, Retryable: true, cause: cause}
}

func (e *SessionError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Unwrap exposes the domain sentinel for the kind and the underlying cause
func (e *SessionError) Unwrap() []error {
	errs := []error{kindSentinel(e.Kind)}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

// AsSessionError converts err into a SessionError, classifying unknown errors
// as exchange failures.
func AsSessionError(err error) *SessionError {
	if err == nil {
		return nil
	}
	var se *SessionError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, domain.ErrMissingContext) {
		return newSessionError(ErrorKindMissingContext, MsgMissingContext, err)
	}
	return newSessionError(ErrorKindExchangeFailure, err.Error(), err)
}

func kindSentinel(kind ErrorKind) error {
	switch kind {
	case ErrorKindMissingContext:
		return domain.ErrMissingContext
	case ErrorKindProviderError:
		return domain.ErrProviderError
	case ErrorKindTimeout:
		return domain.ErrTimeout
	default:
		return domain.ErrExchangeFailure
	}
}
