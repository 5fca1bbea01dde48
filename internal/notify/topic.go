// Package notify fans out state changes (current show, song history) to
// subscribers.
package notify

import (
	"sync"

	"github.com/google/uuid"
)

// Subscription is the handle returned by Topic.Subscribe.
type Subscription struct {
	ID    string
	unsub func()
	once  *sync.Once
}

// Unsubscribe detaches the listener. It is safe to call more than once.
func (s Subscription) Unsubscribe() {
	if s.once == nil {
		return
	}
	s.once.Do(s.unsub)
}

// Topic holds the latest value of T and the listeners interested in it.
type Topic[T any] struct {
	mu        sync.RWMutex
	value     T
	listeners map[string]func(T)
	order     []string
}

// NewTopic creates a Topic whose current value starts as initial.
func NewTopic[T any](initial T) *Topic[T] {
	return &Topic[T]{value: initial, listeners: make(map[string]func(T))}
}

// Subscribe registers fn and immediately calls it with the current value.
func (t *Topic[T]) Subscribe(fn func(T)) Subscription {
	id := uuid.NewString()
	t.mu.Lock()
	t.listeners[id] = fn
	t.order = append(t.order, id)
	current := t.value
	t.mu.Unlock()

	fn(current)
	return Subscription{ID: id, unsub: func() { t.remove(id) }, once: &sync.Once{}}
}

// Publish stores v and calls every listener with it, in subscription order.
// Listeners run outside the lock and may unsubscribe themselves.
func (t *Topic[T]) Publish(v T) {
	t.mu.Lock()
	t.value = v
	fns := make([]func(T), 0, len(t.order))
	for _, id := range t.order {
		fns = append(fns, t.listeners[id])
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Current returns the most recently published value.
func (t *Topic[T]) Current() T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.value
}

// Len reports the number of live subscriptions.
func (t *Topic[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}

func (t *Topic[T]) remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.listeners, id)
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			return
		}
	}
}
