package bus

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/zz9tf/publications-view/internal/wire"
)

// Handler consumes the raw payload of one published event. The payload is
// shared across handlers and must be treated as read-only.
type Handler func(data json.RawMessage)

type subscription struct {
	id uint64
	fn Handler
}

// Bus fans inbound worker events out to in-process subscribers. Publish is
// synchronous: handlers run on the publisher's goroutine, in registration
// order, so events for one connection are observed in arrival order.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[wire.Event][]subscription
}

func New() *Bus {
	return &Bus{subs: make(map[wire.Event][]subscription)}
}

// Subscribe registers fn for event and returns a cancel func that removes
// exactly this registration. Cancel is safe to call more than once; calls
// after the first are no-ops.
func (b *Bus) Subscribe(event wire.Event, fn Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[event] = append(b.subs[event], subscription{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[event]
		for i, s := range list {
			if s.id == id {
				b.subs[event] = append(list[:i], list[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers data to every handler currently registered for event.
// The handler list is snapshotted first, so a handler that unsubscribes
// others mid-delivery neither skips nor double-invokes anyone this round.
// A panicking handler is logged and the rest still run.
func (b *Bus) Publish(event wire.Event, data json.RawMessage) {
	b.mu.Lock()
	list := b.subs[event]
	snap := make([]subscription, len(list))
	copy(snap, list)
	b.mu.Unlock()

	for _, s := range snap {
		invoke(event, s.fn, data)
	}
}

func invoke(event wire.Event, fn Handler, data json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("bus: %s handler panic: %v", event, r)
		}
	}()
	fn(data)
}
