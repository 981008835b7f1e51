// Package util holds the notification primitives used to hand events from
// interrupt context and HTTP handlers over to the firmware main loop.
package util

import (
	"sync"
)

// AtomicEvent keeps only the most recent event and a single pending
// notification. Send never blocks, so it is safe to call from a data-ready
// handler.
type AtomicEvent[T any] struct {
	mu     sync.Mutex
	value  T
	notify chan struct{}
}

// NewAtomicEvent creates an event with no notification pending.
func NewAtomicEvent[T any]() *AtomicEvent[T] {
	return &AtomicEvent[T]{
		notify: make(chan struct{}, 1),
	}
}

// Send stores event and raises the notification if none is pending.
func (ae *AtomicEvent[T]) Send(event T) {
	ae.mu.Lock()
	ae.value = event
	ae.mu.Unlock()

	select {
	case ae.notify <- struct{}{}:
	default:
		// already pending
	}
}

// Channel is readable while a notification is pending. Receiving from it
// consumes the notification.
func (ae *AtomicEvent[T]) Channel() <-chan struct{} {
	return ae.notify
}

// Value returns the latest event.
func (ae *AtomicEvent[T]) Value() T {
	ae.mu.Lock()
	defer ae.mu.Unlock()
	return ae.value
}

// AtomicMapEvent collects the latest value per key until the consumer
// takes them all with ConsumeValues.
type AtomicMapEvent[K comparable, T any] struct {
	mu     sync.Mutex
	value  map[K]T
	notify chan struct{}
}

// NewAtomicMapEvent creates an empty map event.
func NewAtomicMapEvent[K comparable, T any]() *AtomicMapEvent[K, T] {
	return &AtomicMapEvent[K, T]{
		notify: make(chan struct{}, 1),
		value:  make(map[K]T),
	}
}

// Send records event for key, overwriting an unconsumed value.
func (ae *AtomicMapEvent[K, T]) Send(key K, event T) {
	ae.mu.Lock()
	ae.value[key] = event
	ae.mu.Unlock()

	select {
	case ae.notify <- struct{}{}:
	default:
	}
}

func (ae *AtomicMapEvent[K, T]) Channel() <-chan struct{} {
	return ae.notify
}

// ConsumeValues returns every value sent since the last call and clears
// both the map and a pending notification.
func (ae *AtomicMapEvent[K, T]) ConsumeValues() map[K]T {
	ae.mu.Lock()
	defer ae.mu.Unlock()
	ret := ae.value
	ae.value = make(map[K]T, len(ret))
	select {
	case <-ae.notify:
	default:
	}
	return ret
}
