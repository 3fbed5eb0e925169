package metrics

// ============================================================================
// Metric Names
// ============================================================================

// HTTP metric names
const (
	MetricNameHTTPRequestsTotal    = "http_requests_total"
	MetricNameHTTPRequestDuration  = "http_request_duration_seconds"
	MetricNameHTTPRequestsInFlight = "http_requests_in_flight"
)

// Event metric names
const (
	MetricNameEventsPublished    = "events_published_total"
	MetricNameEventHandlerErrors = "event_handler_errors_total"
)

// Linking metric names
const (
	MetricNameSessionsStarted  = "adlink_sessions_started_total"
	MetricNameSessionsFinished = "adlink_sessions_finished_total"
	MetricNameDeliveries       = "adlink_deliveries_total"
	MetricNameExchangeDuration = "adlink_exchange_duration_seconds"
	MetricNameDialogsOpen      = "adlink_dialogs_open"
	MetricNameDialogsReaped    = "adlink_dialogs_reaped_total"
	MetricNameRelayCallbacks   = "adlink_relay_callbacks_total"
)

// ============================================================================
// Metric Help Text
// ============================================================================

// HTTP metric help text
const (
	HelpTextHTTPRequestsTotal    = "Total number of HTTP requests"
	HelpTextHTTPRequestDuration  = "HTTP request latency in seconds"
	HelpTextHTTPRequestsInFlight = "Current number of HTTP requests being served"
)

// Event metric help text
const (
	HelpTextEventsPublished    = "Total number of events published"
	HelpTextEventHandlerErrors = "Total number of event handler errors"
)

// Linking metric help text
const (
	HelpTextSessionsStarted  = "Total number of link sessions that opened an authorization popup"
	HelpTextSessionsFinished = "Total number of link sessions that reached a terminal status"
	HelpTextDeliveries       = "Total number of callback deliveries seen by listeners, by channel and outcome"
	HelpTextExchangeDuration = "Latency of authorization code exchanges and account probes in seconds"
	HelpTextDialogsOpen      = "Current number of open connect dialogs"
	HelpTextDialogsReaped    = "Total number of idle dialogs closed by the reaper"
	HelpTextRelayCallbacks   = "Total number of provider redirects handled by the callback relay"
)

// ============================================================================
// Metric Label Names
// ============================================================================

// Common label names used across metrics
const (
	LabelMethod   = "method"
	LabelPath     = "path"
	LabelStatus   = "status"
	LabelType     = "type"
	LabelProvider = "provider"
	LabelChannel  = "channel"
	LabelOutcome  = "outcome"
	LabelResult   = "result"
)

// ============================================================================
// Label Values
// ============================================================================

// Delivery outcomes
const (
	OutcomeAccepted  = "accepted"
	OutcomeDuplicate = "duplicate"
	OutcomeUntrusted = "untrusted"
	OutcomeStale     = "stale"
	OutcomeMalformed = "malformed"
	OutcomeIgnored   = "ignored"
	OutcomeRejected  = "rejected"
)

// Exchange results
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// PathUnmatched labels requests that did not match a route
const PathUnmatched = "unmatched"

// ============================================================================
// Histogram Buckets
// ============================================================================

// HTTPLatencyBuckets defines the histogram buckets for HTTP request duration
// in seconds, from 1ms to 10s.
var HTTPLatencyBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// ExchangeLatencyBuckets covers upstream token exchanges, which are slower than local requests
var ExchangeLatencyBuckets = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// ============================================================================
// Log Messages
// ============================================================================

// Debug log messages
const (
	LogMsgMetricsRecorded = "Metrics recorded for event"
)
