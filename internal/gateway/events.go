package gateway

// Event names published by the gateway.
const (
	EventChatStart    = "chat_start"
	EventFallback     = "fallback"
	EventStripped     = "hallucination_stripped"
	EventChatEnd      = "chat_end"
	EventChatFailed   = "chat_failed"
	EventStateChanged = "state_changed"
)

// Event represents a gateway lifecycle event.
// Minimal and stable: name plus optional fields via key/values.
type Event struct {
	Name   string
	Mode   string
	Fields map[string]any
}

// EventPublisher receives events from the gateway. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
