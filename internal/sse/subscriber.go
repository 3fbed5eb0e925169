package sse

import (
	"context"
	"log/slog"

	"github.com/osse101/adlink/internal/event"
)

// Subscriber bridges the internal event bus to the SSE hub
type Subscriber struct {
	hub         *Hub
	bus         event.Bus
	unsubscribe []func()
}

// NewSubscriber creates a new SSE subscriber
func NewSubscriber(hub *Hub, bus event.Bus) *Subscriber {
	return &Subscriber{
		hub: hub,
		bus: bus,
	}
}

// Subscribe registers handlers for all relevant event types
func (s *Subscriber) Subscribe() {
	s.unsubscribe = append(s.unsubscribe, s.bus.Subscribe(event.DialogUpdated, s.handleDialogUpdated))

	slog.Info(LogMsgSubscriberReady, "types", []string{string(event.DialogUpdated)})
}

// Close removes the subscriber's bus handlers
func (s *Subscriber) Close() {
	for _, unsubscribe := range s.unsubscribe {
		unsubscribe()
	}
	s.unsubscribe = nil
}

// handleDialogUpdated forwards a dialog view to clients watching that dialog
func (s *Subscriber) handleDialogUpdated(_ context.Context, evt event.Event) error {
	s.hub.Broadcast(evt.Topic, EventTypeDialogUpdated, evt.Payload)

	slog.Debug(LogMsgEventBroadcast,
		"event_type", EventTypeDialogUpdated,
		"topic", evt.Topic)
	return nil
}
