package sse

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Hub manages SSE client connections and event broadcasting
type Hub struct {
	clients   map[string]*Client
	broadcast chan Event
	mu        sync.RWMutex
	shutdown  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewHub creates a new SSE Hub
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[string]*Client),
		broadcast: make(chan Event, BroadcastBufferSize),
		shutdown:  make(chan struct{}),
	}
}

// Start starts the hub's broadcast loop
func (h *Hub) Start() {
	h.wg.Add(1)
	go h.run()
}

// Stop shuts down the hub and closes every client channel
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.shutdown)
		h.wg.Wait()

		h.mu.Lock()
		for _, client := range h.clients {
			close(client.EventChannel)
		}
		h.clients = make(map[string]*Client)
		h.mu.Unlock()
	})
}

func (h *Hub) run() {
	defer h.wg.Done()

	for {
		select {
		case event := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				if !client.wants(event.Topic) {
					continue
				}
				// Slow clients miss events rather than stall the hub
				select {
				case client.EventChannel <- event:
				default:
				}
			}
			h.mu.RUnlock()

		case <-h.shutdown:
			return
		}
	}
}

// Register adds a client interested in topics; no topics means all of them
func (h *Hub) Register(topics []string) *Client {
	client := &Client{
		ID:           uuid.New().String(),
		EventChannel: make(chan Event, ClientEventBuffer),
	}
	if len(topics) > 0 {
		client.TopicFilter = make(map[string]bool, len(topics))
		for _, t := range topics {
			client.TopicFilter[t] = true
		}
	}

	h.mu.Lock()
	select {
	case <-h.shutdown:
		close(client.EventChannel)
	default:
		h.clients[client.ID] = client
	}
	h.mu.Unlock()
	return client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.EventChannel)
		delete(h.clients, clientID)
	}
}

// Broadcast sends an event to every client interested in topic
func (h *Hub) Broadcast(topic, eventType string, payload interface{}) {
	event := NewEvent(topic, eventType, payload)

	select {
	case h.broadcast <- event:
	default:
		slog.Default().Warn(LogMsgEventDropped, "event_type", eventType, "topic", topic)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// NewEvent stamps an SSE event with an id and the current time
func NewEvent(topic, eventType string, payload interface{}) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Topic:     topic,
		Timestamp: time.Now().Unix(),
		Payload:   payload,
	}
}

// FormatSSEMessage formats an SSE event for transmission
func FormatSSEMessage(event Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	// SSE format: "id: <id>\nevent: <type>\ndata: <json>\n\n"
	msg := "id: " + event.ID + "\n"
	msg += "event: " + event.Type + "\n"
	msg += "data: " + string(data) + "\n\n"

	return []byte(msg), nil
}
