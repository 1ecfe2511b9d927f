// Package events carries lifecycle notifications out of the conversation core
// without the core depending on who listens. Subscribers are registered during
// startup wiring over an owned slice; there is no ambient global bus.
package events

import "time"

// Event types emitted by the conversation engine.
const (
	ConversationStarted = "conversation.started"
	MessageExchanged    = "conversation.message"
	ConversationEnded   = "conversation.ended"
)

// Event describes one lifecycle notification.
type Event struct {
	Type           string
	UserID         string
	ConversationID string
	PersonaID      string
	Fallback       bool
	At             time.Time
}

// Bus delivers events synchronously to every subscriber in registration order.
// Subscribe must only be called during startup, before Publish is reachable
// from request handlers; Publish is then safe for concurrent use.
type Bus struct {
	subs []func(Event)
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe adds a listener. Listeners must be fast and must not call back
// into the engine.
func (b *Bus) Subscribe(fn func(Event)) {
	b.subs = append(b.subs, fn)
}

// Publish delivers the event to all subscribers.
func (b *Bus) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	for _, fn := range b.subs {
		fn(evt)
	}
}
