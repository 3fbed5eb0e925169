package bootstrap

import (
	"log/slog"

	"github.com/osse101/adlink/internal/event"
	"github.com/osse101/adlink/internal/metrics"
	"github.com/osse101/adlink/internal/sse"
)

// EventHandlerDependencies holds the dependencies needed for event handler registration.
type EventHandlerDependencies struct {
	EventBus event.Bus
	Hub      *sse.Hub
}

// RegisterEventHandlers sets up all event handlers and subscribers.
// This includes:
// - Metrics collector (counts relay callbacks and dialog updates)
// - SSE subscriber (forwards dialog updates to connected browsers)
//
// The returned subscriber must be closed on shutdown.
func RegisterEventHandlers(deps EventHandlerDependencies) *sse.Subscriber {
	metrics.NewEventMetricsCollector().Register(deps.EventBus)
	slog.Info(LogMsgMetricsCollectorRegistered)

	subscriber := sse.NewSubscriber(deps.Hub, deps.EventBus)
	subscriber.Subscribe()
	slog.Info(LogMsgSSESubscriberAttached)
	return subscriber
}
