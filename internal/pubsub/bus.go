// Package pubsub provides a small synchronous fan-out primitive for
// in-process observers.
//
// It is independent of the plugin coordinator: there is no queue and no
// re-entrancy protection. Publish calls every registered handler, in
// subscription order, before returning. Use it for fine-grained
// notifications such as UI-local state changes; use the coordinator for
// plugin-to-plugin messaging.
package pubsub

import (
	"errors"
	"fmt"
	"sync"
)

// ErrHandlerNotFound is returned by Unsubscribe for an unknown or already
// removed handler id.
var ErrHandlerNotFound = errors.New("handler not found")

// HandlerID identifies a subscription. IDs start at 0 and are never reused.
type HandlerID uint64

// Handler receives the owner context and the published message.
type Handler[O, M any] func(owner O, msg M)

type entry[O, M any] struct {
	id      HandlerID
	handler Handler[O, M]
}

// Bus is a subscription list of handlers for messages of type M published
// on behalf of an owner of type O. The zero value is ready to use.
type Bus[O, M any] struct {
	mu       sync.Mutex
	nextID   HandlerID
	handlers []entry[O, M]
}

// Subscribe registers handler and returns its id.
func (b *Bus[O, M]) Subscribe(handler Handler[O, M]) HandlerID {
	if handler == nil {
		panic("pubsub: nil handler")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers = append(b.handlers, entry[O, M]{id: id, handler: handler})
	return id
}

// Unsubscribe removes exactly the handler with the given id.
func (b *Bus[O, M]) Unsubscribe(id HandlerID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, e := range b.handlers {
		if e.id == id {
			b.handlers = append(b.handlers[:i:i], b.handlers[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("unsubscribe %d: %w", id, ErrHandlerNotFound)
}

// Publish invokes every handler registered at the time of the call, in
// subscription order. Handlers added or removed by a handler take effect
// on the next Publish.
func (b *Bus[O, M]) Publish(owner O, msg M) {
	b.mu.Lock()
	snapshot := make([]entry[O, M], len(b.handlers))
	copy(snapshot, b.handlers)
	b.mu.Unlock()

	for _, e := range snapshot {
		e.handler(owner, msg)
	}
}

// Len returns the number of registered handlers.
func (b *Bus[O, M]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers)
}
