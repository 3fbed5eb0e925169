package handler

// Generic HTTP error messages for client responses.
// These messages do not expose internal error details.
// Both handlers and tests should reference these constants to maintain consistency.
const (
	// HTTP status messages
	ErrMsgMethodNotAllowed      = "Method not allowed"
	ErrMsgInvalidRequest        = "Invalid request body"
	ErrMsgInvalidRequestSummary = "Invalid request"
	ErrMsgRequestTooLarge       = "Request body too large"

	// Path parameter error messages
	ErrMsgMissingPathParam = "Missing %s path parameter"

	// Dialog operation error messages
	ErrMsgOpenDialogFailed    = "Failed to open connect dialog"
	ErrMsgGetDialogFailed     = "Failed to load connect dialog"
	ErrMsgConnectFailed       = "Failed to start authorization"
	ErrMsgPopupClosedFailed   = "Failed to record popup closure"
	ErrMsgDeliverFailed       = "Failed to deliver callback message"
	ErrMsgSelectTargetFailed  = "Failed to select account"
	ErrMsgManualFailed        = "Failed to update manual setup"
	ErrMsgDisconnectFailed    = "Failed to disconnect integration"
	ErrMsgCloseDialogFailed   = "Failed to close connect dialog"
	ErrMsgStreamDialogFailed  = "Failed to stream dialog updates"
	ErrMsgMissingMessageField = "Callback message requires a type"
)

// Success messages for API responses
const (
	MsgPopupClosedRecorded = "Popup closure recorded"
	MsgMessageDelivered    = "Message delivered"
	MsgDialogClosed        = "Dialog closed"
)

// Log messages
const (
	LogMsgRequestFailed   = "Request failed"
	LogMsgReadinessFailed = "Readiness check failed"
	LogMsgEncodeFailed    = "Failed to encode JSON response"
	LogMsgWriteFailed     = "Failed to write response buffer"
	LogMsgPopupLaunched   = "Authorization popup launched"
)

// Path parameters and headers
const (
	PathParamDialogID = "id"
	HeaderOrigin      = "Origin"
)

// Health status values
const (
	HealthStatusOK          = "ok"
	HealthStatusUnavailable = "unavailable"
	HealthMsgDatabaseDown   = "database connection failed"
)
