package realtime

import (
	"sync"

	"github.com/Sakeeb91/claim-mapper-sub003/domain/events"
)

// AnyEvent registers a handler for every event type
const AnyEvent = "*"

// Bus routes events to handlers by type
type Bus struct {
	handlers map[string][]events.Handler
	mu       sync.RWMutex
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string][]events.Handler),
	}
}

// Register adds a handler for an event type
func (b *Bus) Register(eventType string, h events.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], h)
}

// Dispatch calls the handlers for env.Type, then the AnyEvent handlers,
// each in registration order. It reports whether any handler ran.
func (b *Bus) Dispatch(env events.Envelope) bool {
	b.mu.RLock()
	specific := b.handlers[env.Type]
	wildcard := b.handlers[AnyEvent]
	b.mu.RUnlock()

	for _, h := range specific {
		h(env)
	}
	for _, h := range wildcard {
		h(env)
	}
	return len(specific)+len(wildcard) > 0
}

// Clear removes all handlers for one event type
func (b *Bus) Clear(eventType string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.handlers, eventType)
}

// ClearAll removes every handler
func (b *Bus) ClearAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers = make(map[string][]events.Handler)
}
