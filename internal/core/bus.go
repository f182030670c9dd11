package core

import "sync"

type Handler func(Event)

// Bus dispatches events to subscribers keyed by event type.
// Handlers run synchronously on the publishing goroutine and must not block.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]Handler
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string][]Handler)}
}

func (b *Bus) Subscribe(typ string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[typ] = append(b.subs[typ], h)
}

func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	hs := b.subs[ev.Type]
	b.mu.RUnlock()
	for _, h := range hs {
		h(ev)
	}
}

// Internal topics. They are published on the bus and never sent to clients.
const (
	TopicConnectionOpened = "connection.opened"
	TopicConnectionClosed = "connection.closed"
	TopicDeliveryDropped  = "delivery.dropped"
)
