// Package notify provides a small fan-out hub used to publish state changes
// to any number of observers without blocking the publisher.
package notify

import "sync"

// DefaultBuffer is the channel buffer used when Subscribe is given a
// non-positive size.
const DefaultBuffer = 16

// Hub broadcasts values of type T to subscribers.
//
// Publish never blocks: a subscriber whose buffer is full misses that value.
// Observers that need every value must drain their channel promptly.
type Hub[T any] struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan T
}

// NewHub returns an empty hub.
func NewHub[T any]() *Hub[T] {
	return &Hub[T]{subs: make(map[int]chan T)}
}

// Subscribe registers a new observer. The returned cancel func unregisters
// it and closes the channel; calling it more than once is safe.
func (h *Hub[T]) Subscribe(buffer int) (<-chan T, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan T, buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers v to every subscriber with room in its buffer.
func (h *Hub[T]) Publish(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

// Len reports the number of active subscribers.
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
