package event

import (
	"context"
	"fmt"
	"sync"
)

// Type represents the type of an event
type Type string

// Event represents a message travelling through the bus.
// Topic scopes delivery to one link session or dialog. Origin is the
// sender's origin as observed by the transport that accepted the event.
type Event struct {
	Version string      `json:"version"`
	Type    Type        `json:"type"`
	Topic   string      `json:"topic"`
	Origin  string      `json:"-"`
	Payload interface{} `json:"payload"`
}

// Event types
const (
	// OAuthCallback carries a provider callback result to the listener of one session
	OAuthCallback Type = "oauth.callback"

	// DialogUpdated is published whenever the visible state of a dialog changes
	DialogUpdated Type = "dialog.updated"
)

// CallbackPayloadV1 is the message posted by the relay page or the opener
// on behalf of the authorization popup.
type CallbackPayloadV1 struct {
	Type  string `json:"type"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// NewCallbackEvent creates an OAuth callback event addressed to one session
func NewCallbackEvent(sessionID, origin string, payload CallbackPayloadV1) Event {
	return Event{
		Version: EventSchemaVersion,
		Type:    OAuthCallback,
		Topic:   sessionID,
		Origin:  origin,
		Payload: payload,
	}
}

// NewDialogUpdatedEvent creates a dialog update event
func NewDialogUpdatedEvent(dialogID string, view interface{}) Event {
	return Event{
		Version: EventSchemaVersion,
		Type:    DialogUpdated,
		Topic:   dialogID,
		Payload: view,
	}
}

// Handler is a function that handles an event
type Handler func(ctx context.Context, event Event) error

// Bus defines the interface for an event bus
type Bus interface {
	Publish(ctx context.Context, event Event) error
	// Subscribe registers handler for eventType and returns a func that removes it.
	Subscribe(eventType Type, handler Handler) (unsubscribe func())
}

type subscription struct {
	id      uint64
	handler Handler
}

// MemoryBus is an in-memory implementation of the Event Bus
type MemoryBus struct {
	handlers map[Type][]subscription
	nextID   uint64
	mu       sync.RWMutex
}

// NewMemoryBus creates a new MemoryBus
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		handlers: make(map[Type][]subscription),
	}
}

// Publish publishes an event to all subscribers.
// Handlers run synchronously against a snapshot of the subscriber list, so a
// handler may unsubscribe itself without deadlocking the bus.
func (b *MemoryBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	subs := make([]subscription, len(b.handlers[event.Type]))
	copy(subs, b.handlers[event.Type])
	b.mu.RUnlock()

	if len(subs) == 0 {
		return nil
	}

	var errs []error
	for _, sub := range subs {
		if err := sub.handler(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf(LogMsgHandlerErrorFormat, len(errs), event.Type, errs)
	}

	return nil
}

// Subscribe subscribes a handler to an event type
func (b *MemoryBus) Subscribe(eventType Type, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[eventType] = append(b.handlers[eventType], subscription{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(eventType, id) })
	}
}

func (b *MemoryBus) remove(eventType Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[eventType]
	for i, sub := range subs {
		if sub.id == id {
			b.handlers[eventType] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.handlers[eventType]) == 0 {
		delete(b.handlers, eventType)
	}
}

// SubscriberCount returns the number of handlers registered for eventType
func (b *MemoryBus) SubscriberCount(eventType Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}
