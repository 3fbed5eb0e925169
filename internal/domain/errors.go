package domain

import "errors"

// Error message string constants - single source of truth for error messages
// Use these in assert.Contains() checks when testing error messages
const (
	// Launch errors
	ErrMsgMissingContext = "missing tenant context"

	// Channel-level errors (recovered locally, never surfaced)
	ErrMsgUntrustedOrigin = "message from untrusted origin"
	ErrMsgStaleDelivery   = "stale authorization code"

	// Session-level errors (always surfaced with a retry affordance)
	ErrMsgProviderError   = "provider reported an error"
	ErrMsgExchangeFailure = "authorization code exchange failed"
	ErrMsgTimeout         = "authorization timed out"

	// Lookup errors
	ErrMsgUnknownProvider     = "unknown provider"
	ErrMsgDialogNotFound      = "dialog not found"
	ErrMsgIntegrationNotFound = "integration not found"
	ErrMsgInvalidTransition   = "invalid wizard transition"
	ErrMsgManualNotSupported  = "manual setup is not supported for this provider"
	ErrMsgTargetNotOffered    = "target account was not offered"
	ErrMsgInvalidState        = "invalid state parameter"
	ErrMsgDatabaseError       = "database error"
	ErrMsgBackendUnavailable  = "backend unavailable"
)

// Common domain errors
// Wrap these errors with fmt.Errorf("%w: %s", domain.ErrXxx, details) for additional context.
var (
	ErrMissingContext = errors.New(ErrMsgMissingContext)

	ErrUntrustedOrigin = errors.New(ErrMsgUntrustedOrigin)
	ErrStaleDelivery   = errors.New(ErrMsgStaleDelivery)

	ErrProviderError   = errors.New(ErrMsgProviderError)
	ErrExchangeFailure = errors.New(ErrMsgExchangeFailure)
	ErrTimeout         = errors.New(ErrMsgTimeout)

	ErrUnknownProvider           = errors.New(ErrMsgUnknownProvider)
	ErrDialogNotFound            = errors.New(ErrMsgDialogNotFound)
	ErrIntegrationNotFound       = errors.New(ErrMsgIntegrationNotFound)
	ErrInvalidTransition         = errors.New(ErrMsgInvalidTransition)
	ErrManualFallbackUnsupported = errors.New(ErrMsgManualNotSupported)
	ErrTargetNotOffered          = errors.New(ErrMsgTargetNotOffered)
	ErrInvalidState              = errors.New(ErrMsgInvalidState)

	ErrDatabaseError      = errors.New(ErrMsgDatabaseError)
	ErrBackendUnavailable = errors.New(ErrMsgBackendUnavailable)
)
