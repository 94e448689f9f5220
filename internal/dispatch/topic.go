package dispatch

import (
	"log"
	"runtime/debug"
	"sync"
)

// Subscription identifies one registered callback. Go funcs are not
// comparable, so removal goes through this handle.
type Subscription struct {
	id    uint64
	topic string
}

// Topic is an insertion-ordered set of callbacks for one event category
type Topic[T any] struct {
	name      string
	mu        sync.RWMutex
	nextID    uint64
	callbacks []entry[T]
}

type entry[T any] struct {
	id uint64
	fn func(T)
}

// NewTopic creates an empty topic
func NewTopic[T any](name string) *Topic[T] {
	return &Topic[T]{name: name}
}

// Subscribe appends fn and returns its handle
func (t *Topic[T]) Subscribe(fn func(T)) Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	t.callbacks = append(t.callbacks, entry[T]{id: t.nextID, fn: fn})
	return Subscription{id: t.nextID, topic: t.name}
}

// Unsubscribe removes the callback registered under sub. Unknown or
// already-removed handles are ignored.
func (t *Topic[T]) Unsubscribe(sub Subscription) bool {
	if sub.topic != t.name {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, e := range t.callbacks {
		if e.id == sub.id {
			// New slice so an in-flight Publish keeps iterating its snapshot
			next := make([]entry[T], 0, len(t.callbacks)-1)
			next = append(next, t.callbacks[:i]...)
			next = append(next, t.callbacks[i+1:]...)
			t.callbacks = next
			return true
		}
	}
	return false
}

// Len returns the number of registered callbacks
func (t *Topic[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.callbacks)
}

// Publish invokes every callback registered at call time, in subscription
// order. A panicking callback is logged and skipped.
func (t *Topic[T]) Publish(value T) {
	t.mu.RLock()
	snapshot := t.callbacks
	t.mu.RUnlock()

	for _, e := range snapshot {
		t.invoke(e, value)
	}
}

func (t *Topic[T]) invoke(e entry[T], value T) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("dispatch: %s subscriber %d panicked: %v\n%s", t.name, e.id, r, debug.Stack())
		}
	}()
	e.fn(value)
}
