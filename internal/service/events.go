package service

import "sync"

// EventType defines the type of event
type EventType string

const (
	EventDiscoveryStarted  EventType = "discovery_started"
	EventBatchComplete     EventType = "batch_complete"
	EventDiscoveryComplete EventType = "discovery_complete"
	EventDiscoveryFailed   EventType = "discovery_failed"
)

// Event represents a discovery progress notification
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// OrgID returns the organization the event belongs to, or "" when the payload names none
func (e Event) OrgID() string {
	switch p := e.Payload.(type) {
	case RunEvent:
		return p.OrgID
	case *RunEvent:
		return p.OrgID
	case BatchEvent:
		return p.OrgID
	case *BatchEvent:
		return p.OrgID
	}
	return ""
}

// BatchEvent is the payload of EventBatchComplete
type BatchEvent struct {
	OrgID     string `json:"org_id"`
	Batch     string `json:"batch"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// RunEvent is the payload of the discovery lifecycle events
type RunEvent struct {
	OrgID    string `json:"org_id"`
	Devices  int    `json:"devices,omitempty"`
	Edges    int    `json:"edges,omitempty"`
	Failures int    `json:"failures,omitempty"`
	Error    string `json:"error,omitempty"`
}

// EventBus allows publishing and subscribing to events
type EventBus struct {
	mu          sync.RWMutex
	subscribers []chan<- Event
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make([]chan<- Event, 0),
	}
}

// Subscribe adds a subscriber to receive events
func (eb *EventBus) Subscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers = append(eb.subscribers, ch)
}

// Unsubscribe removes a subscriber
func (eb *EventBus) Unsubscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for i, sub := range eb.subscribers {
		if sub == ch {
			eb.subscribers = append(eb.subscribers[:i], eb.subscribers[i+1:]...)
			return
		}
	}
}

// Publish sends an event to all subscribers. A nil bus drops the event.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}
