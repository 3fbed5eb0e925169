package linking

import "time"

// ============================================================================
// Timing Defaults
// ============================================================================

const (
	// DefaultTimeout bounds how long a session may wait for the provider
	DefaultTimeout = 5 * time.Minute

	// DefaultPollInterval is how often the shared store is checked for a code
	DefaultPollInterval = time.Second

	// DefaultPopupPollInterval is how often the popup handle is checked for closure
	DefaultPopupPollInterval = 500 * time.Millisecond

	// DefaultPopupClosedGrace is how long a late delivery may still win after the popup closes
	DefaultPopupClosedGrace = 2 * time.Second

	// DefaultDialogRetention is how long an idle dialog is kept before the reaper closes it
	DefaultDialogRetention = 30 * time.Minute
)

// ============================================================================
// Shared Store
// ============================================================================

const (
	// StoreKeyCodeFormat is the key holding the authorization code for a session
	StoreKeyCodeFormat = "%s_oauth_code:%s"

	// StoreKeyTimestampFormat is the key holding the millisecond write time for a session
	StoreKeyTimestampFormat = "%s_oauth_timestamp:%s"

	// DefaultStoreSize caps the number of entries held by the LRU store
	DefaultStoreSize = 10000
)

// ============================================================================
// Popup Window
// ============================================================================

const (
	DefaultPopupWidth  = 600
	DefaultPopupHeight = 700

	// Fallback screen used when the browser reports none
	DefaultScreenWidth  = 1280
	DefaultScreenHeight = 800
)

// ============================================================================
// Manual Fallback
// ============================================================================

// ProvidersSchemaName identifies the embedded registry schema in validation errors
const ProvidersSchemaName = "providers.schema.json"

// Placeholders accepted by a provider's webhook URL template
const (
	WebhookPlaceholderTenant = "{tenant_id}"
	WebhookPlaceholderKey    = "{webhook_key}"
)

// ============================================================================
// User-Facing Messages
// ============================================================================

const (
	MsgMissingContext      = "Your workspace is still loading. Please try again in a moment."
	MsgTimeout             = "The connection timed out. Please try again."
	MsgPopupClosed         = "The authorization window was closed before the connection completed."
	MsgProviderDenied      = "Authorization was cancelled or denied by %s."
	MsgExchangeFailed      = "We could not complete the connection with %s."
	MsgNoAccountsDefault   = "No linkable accounts were found for this %s login."
	MsgFinalizeFailed      = "We could not save the selected account. Please try again."
	MsgManualSaveFailed    = "We could not save the manual setup. Please try again."
	MsgDisconnectFailed    = "We could not disconnect the integration. Please try again."
	MsgIntegrationNotFound = "This integration no longer exists."
)

// Error details
const (
	ErrMsgSelectionInProgress = "a selected account is already being saved"
)

// ============================================================================
// Log Messages
// ============================================================================

const (
	LogMsgDialogOpened        = "Connect dialog opened"
	LogMsgDialogClosed        = "Connect dialog closed"
	LogMsgDialogsReaped       = "Idle dialogs reaped"
	LogMsgSessionStarted      = "Link session started"
	LogMsgSessionFinished     = "Link session finished"
	LogMsgLaunchFailed        = "Failed to launch authorization popup"
	LogMsgDeliveryAccepted    = "Callback delivery accepted"
	LogMsgDeliveryDuplicate   = "Duplicate callback delivery ignored"
	LogMsgUntrustedOrigin     = "Callback message from untrusted origin dropped"
	LogMsgUnexpectedMessage   = "Message without expected callback marker ignored"
	LogMsgEmptyCallback       = "Callback message without code or error ignored"
	LogMsgStaleDelivery       = "Stale polled delivery dropped"
	LogMsgMalformedTimestamp  = "Polled delivery with malformed timestamp dropped"
	LogMsgPopupClosed         = "Authorization popup closed without delivery"
	LogMsgProbeStarted        = "Re-validating integration after popup closed"
	LogMsgExchangeFailed      = "Authorization code exchange failed"
	LogMsgExchangeSucceeded   = "Authorization code exchanged"
	LogMsgResultDiscarded     = "Exchange result discarded for disposed session"
	LogMsgSessionTimedOut     = "Link session timed out"
	LogMsgIntegrationLinked   = "Integration linked"
	LogMsgIntegrationLookup   = "Failed to load stored integration"
	LogMsgManualSaved         = "Manual integration saved"
	LogMsgIntegrationDeleted  = "Integration disconnected"
	LogMsgPublishDialogFailed = "Failed to publish dialog update"
	LogMsgOutOfStepOutcome    = "Session outcome arrived outside the expected wizard step"
	LogMsgFinalizeFailed      = "Failed to persist selected target"
	LogMsgManualSaveFailed    = "Failed to persist manual setup"
	LogMsgDisconnectFailed    = "Failed to delete integration"
)
