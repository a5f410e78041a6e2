// Package bus provides a typed in-process publish/subscribe hub for
// decoupled notifications between components. Each Topic carries exactly
// one payload type, so subscribers are checked at compile time.
//
// Delivery is synchronous, in registration order, with no persistence:
// a subscriber registered after a Publish never sees that value.
package bus

import "sync"

// Handler consumes a published value.
type Handler[T any] func(T)

type entry[T any] struct {
	id int
	fn Handler[T]
}

// Topic is a single typed channel of notifications.
type Topic[T any] struct {
	mu       sync.RWMutex
	handlers []entry[T]
	nextID   int
}

// NewTopic creates an empty topic.
func NewTopic[T any]() *Topic[T] {
	return &Topic[T]{}
}

// Subscribe registers a handler and returns its unsubscribe function.
// Unsubscribing twice is harmless.
func (t *Topic[T]) Subscribe(fn Handler[T]) (unsubscribe func()) {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.handlers = append(t.handlers, entry[T]{id: id, fn: fn})
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		for i, e := range t.handlers {
			if e.id == id {
				t.handlers = append(t.handlers[:i], t.handlers[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers v to every current subscriber in registration order.
// Handlers run on the caller's goroutine; a handler must not block.
func (t *Topic[T]) Publish(v T) {
	t.mu.RLock()
	snapshot := make([]entry[T], len(t.handlers))
	copy(snapshot, t.handlers)
	t.mu.RUnlock()

	for _, e := range snapshot {
		e.fn(v)
	}
}

// SubscriberCount returns the number of registered handlers.
func (t *Topic[T]) SubscriberCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.handlers)
}
