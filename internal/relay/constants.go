package relay

// Query parameters sent by the provider on redirect
const (
	ParamCode             = "code"
	ParamState            = "state"
	ParamError            = "error"
	ParamErrorDescription = "error_description"
)

// Page copy
const (
	TitleConnected      = "Connection received"
	TitleDenied         = "Authorization not completed"
	TitleInvalid        = "Invalid authorization response"
	MsgCloseWindow      = "You can close this window and return to the app."
	MsgDeniedClose      = "The provider did not grant access. You can close this window and try again."
	MsgInvalidLink      = "This authorization link is invalid or has expired. Close this window and start again."
	MsgMissingParameter = "The provider did not return an authorization code."
)

// Log messages
const (
	LogMsgCallbackRelayed  = "OAuth callback relayed"
	LogMsgCallbackRejected = "OAuth callback rejected"
	LogMsgPublishFailed    = "Failed to publish OAuth callback"
	LogMsgRenderFailed     = "Failed to render relay page"
)
