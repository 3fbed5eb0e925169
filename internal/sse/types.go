package sse

// Event represents an event sent over SSE
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Topic     string      `json:"topic,omitempty"`
	Timestamp int64       `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// Client represents a connected SSE client
type Client struct {
	ID           string
	EventChannel chan Event
	// TopicFilter is nil for clients that receive every topic
	TopicFilter map[string]bool
}

// ConnectedPayload is sent as the first event on a stream
type ConnectedPayload struct {
	ClientID string   `json:"client_id"`
	Topics   []string `json:"topics,omitempty"`
}

func (c *Client) wants(topic string) bool {
	return c.TopicFilter == nil || c.TopicFilter[topic]
}
