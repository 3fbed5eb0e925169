package sse

import "time"

// Buffer sizes
const (
	// BroadcastBufferSize is the buffer size for the broadcast channel
	BroadcastBufferSize = 100

	// ClientEventBuffer is the buffer size for each client's event channel
	ClientEventBuffer = 50
)

// SSE connection settings
const (
	// KeepaliveInterval is how often to send keepalive pings
	KeepaliveInterval = 30 * time.Second
)

// Event types for SSE
const (
	// EventTypeConnected is the first event on every stream
	EventTypeConnected = "connected"

	// EventTypeDialogSnapshot carries the dialog view at subscription time
	EventTypeDialogSnapshot = "dialog.snapshot"

	// EventTypeDialogUpdated is sent whenever a connect dialog changes
	EventTypeDialogUpdated = "dialog.updated"

	// EventTypeKeepalive is the keepalive ping event type
	EventTypeKeepalive = "keepalive"
)

// QueryParamTopics filters a generic stream to a comma separated topic list
const QueryParamTopics = "topics"

// Log messages
const (
	LogMsgClientConnected    = "SSE client connected"
	LogMsgClientDisconnected = "SSE client disconnected"
	LogMsgEventBroadcast     = "Broadcasting SSE event"
	LogMsgEventDropped       = "SSE broadcast buffer full, event dropped"
	LogMsgWriteError         = "Failed to write SSE event"
	LogMsgSubscriberReady    = "SSE subscriber registered for event types"
)

// ErrMsgStreamingUnsupported is returned when the response writer cannot flush
const ErrMsgStreamingUnsupported = "SSE not supported"
