package metrics

import (
	"context"

	"github.com/osse101/adlink/internal/event"
	"github.com/osse101/adlink/internal/logger"
)

// EventMetricsCollector subscribes to events and records metrics
type EventMetricsCollector struct{}

// NewEventMetricsCollector creates a new event metrics collector
func NewEventMetricsCollector() *EventMetricsCollector {
	return &EventMetricsCollector{}
}

// Register subscribes to all event types we care about
func (e *EventMetricsCollector) Register(bus event.Bus) {
	for _, eventType := range []event.Type{event.OAuthCallback, event.DialogUpdated} {
		bus.Subscribe(eventType, e.HandleEvent)
	}
}

// HandleEvent counts the event by type
func (e *EventMetricsCollector) HandleEvent(ctx context.Context, evt event.Event) error {
	EventsPublished.WithLabelValues(string(evt.Type)).Inc()
	logger.FromContext(ctx).Debug(LogMsgMetricsRecorded, "type", evt.Type, "topic", evt.Topic)
	return nil
}
