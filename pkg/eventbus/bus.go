package eventbus

import (
	"fmt"
	"sync"

	"github.com/bft-labs/walletmesh/pkg/log"
)

// Event is a single message on the bus.
type Event struct {
	// Type is the discriminator handlers subscribe to.
	Type string

	// Payload is the serialized message body.
	Payload []byte
}

// Handler processes an event.
type Handler func(Event)

// Publisher emits events.
type Publisher interface {
	Publish(event Event)
}

// Subscriber registers handlers. The returned function removes the handler
// and is safe to call more than once.
type Subscriber interface {
	Subscribe(eventType string, handler Handler) func()
}

// PubSub is the union of Publisher and Subscriber.
type PubSub interface {
	Publisher
	Subscriber
}

type handlerEntry struct {
	id      uint64
	handler Handler
}

// Bus is the default PubSub implementation.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]handlerEntry
	nextID   uint64
	logger   log.Logger
}

// New creates an empty bus. A nil logger discards output.
func New(logger log.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]handlerEntry),
		logger:   log.OrNoop(logger),
	}
}

// Subscribe registers handler for events of eventType.
func (b *Bus) Subscribe(eventType string, handler Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[eventType] = append(b.handlers[eventType], handlerEntry{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(eventType, id) })
	}
}

func (b *Bus) remove(eventType string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.handlers[eventType]
	for i, e := range entries {
		if e.id == id {
			next := make([]handlerEntry, 0, len(entries)-1)
			next = append(next, entries[:i]...)
			next = append(next, entries[i+1:]...)
			if len(next) == 0 {
				delete(b.handlers, eventType)
			} else {
				b.handlers[eventType] = next
			}
			return
		}
	}
}

// Publish delivers event to every current subscriber of its type.
// A panicking handler is logged and does not prevent delivery to the rest.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	entries := b.handlers[event.Type]
	b.mu.RUnlock()

	for _, e := range entries {
		b.dispatch(e.handler, event)
	}
}

func (b *Bus) dispatch(h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				log.String("type", event.Type),
				log.Err(fmt.Errorf("%v", r)),
			)
		}
	}()
	h(event)
}

// SubscriberCount returns the number of handlers registered for eventType.
func (b *Bus) SubscriberCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}
