package backend

import "time"

// API paths
const (
	PathExchange = "/api/v1/oauth/exchange"
	PathAccounts = "/api/v1/integrations/%s/accounts"
)

// Client defaults
const (
	DefaultTimeout    = 15 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 500 * time.Millisecond
)

// Header names
const (
	HeaderAPIKey      = "X-API-Key"
	HeaderContentType = "Content-Type"
	ContentTypeJSON   = "application/json"
)

// Log messages
const (
	LogMsgRetrying      = "Retrying backend request"
	LogMsgRequestFailed = "Backend request failed"
	LogMsgServerError   = "Backend server error"
)

// Error messages
const (
	ErrMsgMarshalBody      = "failed to marshal body"
	ErrMsgCreateRequest    = "failed to create request"
	ErrMsgDecodeResponse   = "failed to decode response"
	ErrMsgMaxRetries       = "max retries exceeded"
	ErrMsgServerError      = "server error"
	ErrMsgUnexpectedStatus = "backend returned status"
)
