package sse

import (
	"net/http"
	"strings"
	"time"

	"github.com/osse101/adlink/internal/logger"
)

// Handler returns an HTTP handler streaming every topic, or the topics
// listed in the ?topics= query parameter
func Handler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var topics []string
		if filter := r.URL.Query().Get(QueryParamTopics); filter != "" {
			topics = strings.Split(filter, ",")
		}
		Stream(w, r, hub, topics)
	}
}

// Stream registers a client for topics and writes its events to w until the
// request ends or the hub stops. Initial events are written right after the
// connected event.
func Stream(w http.ResponseWriter, r *http.Request, hub *Hub, topics []string, initial ...Event) {
	log := logger.FromContext(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, ErrMsgStreamingUnsupported, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := hub.Register(topics)
	log.Info(LogMsgClientConnected,
		"client_id", client.ID,
		"topics", topics,
		"total_clients", hub.ClientCount())

	defer func() {
		hub.Unregister(client.ID)
		log.Info(LogMsgClientDisconnected,
			"client_id", client.ID,
			"total_clients", hub.ClientCount())
	}()

	write := func(event Event) bool {
		msg, err := FormatSSEMessage(event)
		if err != nil {
			log.Error(LogMsgWriteError, "error", err)
			return true
		}
		if _, err := w.Write(msg); err != nil {
			log.Warn(LogMsgWriteError, "error", err)
			return false
		}
		flusher.Flush()
		return true
	}

	connected := NewEvent("", EventTypeConnected, ConnectedPayload{ClientID: client.ID, Topics: topics})
	connected.ID = client.ID
	if !write(connected) {
		return
	}
	for _, event := range initial {
		if !write(event) {
			return
		}
	}

	ticker := time.NewTicker(KeepaliveInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-client.EventChannel:
			if !ok {
				// Hub is shutting down
				return
			}
			if !write(event) {
				return
			}

		case <-ticker.C:
			keepalive := Event{Type: EventTypeKeepalive, Timestamp: time.Now().Unix()}
			if !write(keepalive) {
				return
			}
		}
	}
}
