package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameHTTPRequestsTotal,
			Help: HelpTextHTTPRequestsTotal,
		},
		[]string{LabelMethod, LabelPath, LabelStatus},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    MetricNameHTTPRequestDuration,
			Help:    HelpTextHTTPRequestDuration,
			Buckets: HTTPLatencyBuckets,
		},
		[]string{LabelMethod, LabelPath},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: MetricNameHTTPRequestsInFlight,
			Help: HelpTextHTTPRequestsInFlight,
		},
	)
)

// Event Metrics
var (
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameEventsPublished,
			Help: HelpTextEventsPublished,
		},
		[]string{LabelType},
	)

	EventHandlerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameEventHandlerErrors,
			Help: HelpTextEventHandlerErrors,
		},
		[]string{LabelType},
	)
)

// Linking Metrics
var (
	SessionsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameSessionsStarted,
			Help: HelpTextSessionsStarted,
		},
		[]string{LabelProvider},
	)

	SessionsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameSessionsFinished,
			Help: HelpTextSessionsFinished,
		},
		[]string{LabelProvider, LabelStatus},
	)

	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameDeliveries,
			Help: HelpTextDeliveries,
		},
		[]string{LabelProvider, LabelChannel, LabelOutcome},
	)

	ExchangeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    MetricNameExchangeDuration,
			Help:    HelpTextExchangeDuration,
			Buckets: ExchangeLatencyBuckets,
		},
		[]string{LabelProvider, LabelResult},
	)

	DialogsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: MetricNameDialogsOpen,
			Help: HelpTextDialogsOpen,
		},
	)

	DialogsReaped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameDialogsReaped,
			Help: HelpTextDialogsReaped,
		},
	)

	RelayCallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameRelayCallbacks,
			Help: HelpTextRelayCallbacks,
		},
		[]string{LabelProvider, LabelOutcome},
	)
)
