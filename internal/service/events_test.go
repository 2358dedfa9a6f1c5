package service

import "testing"

func TestEventBus(t *testing.T) {
	t.Run("delivers to subscribers", func(t *testing.T) {
		bus := NewEventBus()
		a := make(chan Event, 1)
		b := make(chan Event, 1)
		bus.Subscribe(a)
		bus.Subscribe(b)

		bus.Publish(Event{Type: EventDiscoveryStarted})

		for _, ch := range []chan Event{a, b} {
			if e := <-ch; e.Type != EventDiscoveryStarted {
				t.Errorf("expected %s, got %s", EventDiscoveryStarted, e.Type)
			}
		}
	})

	t.Run("slow subscriber is skipped", func(t *testing.T) {
		bus := NewEventBus()
		full := make(chan Event)
		bus.Subscribe(full)

		bus.Publish(Event{Type: EventBatchComplete})
	})

	t.Run("unsubscribe", func(t *testing.T) {
		bus := NewEventBus()
		ch := make(chan Event, 1)
		bus.Subscribe(ch)
		bus.Unsubscribe(ch)

		bus.Publish(Event{Type: EventDiscoveryComplete})
		if len(ch) != 0 {
			t.Error("unsubscribed channel received an event")
		}
	})

	t.Run("nil bus", func(t *testing.T) {
		var bus *EventBus
		bus.Publish(Event{Type: EventDiscoveryFailed})
	})
}

func TestEventOrgID(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{"run", Event{Payload: RunEvent{OrgID: "1"}}, "1"},
		{"run pointer", Event{Payload: &RunEvent{OrgID: "2"}}, "2"},
		{"batch", Event{Payload: BatchEvent{OrgID: "3"}}, "3"},
		{"batch pointer", Event{Payload: &BatchEvent{OrgID: "4"}}, "4"},
		{"other payload", Event{Payload: "x"}, ""},
		{"no payload", Event{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.OrgID(); got != tt.want {
				t.Errorf("OrgID() = %q, want %q", got, tt.want)
			}
		})
	}
}
