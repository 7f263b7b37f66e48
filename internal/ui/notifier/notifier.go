// Package notifier broadcasts dashboard events to SSE listeners.
package notifier

import "sync"

// Notifier broadcasts values to all subscribed listeners. Each listener
// holds at most one pending value; a newer broadcast replaces an unread one
// so slow listeners always see the latest state.
type Notifier[T any] struct {
	mu        sync.Mutex
	listeners map[chan T]struct{}
}

// New creates a new Notifier instance.
func New[T any]() *Notifier[T] {
	return &Notifier[T]{
		listeners: make(map[chan T]struct{}),
	}
}

// Subscribe returns a channel that receives broadcast values.
// The caller must call Unsubscribe when done to prevent goroutine leaks.
func (n *Notifier[T]) Subscribe() chan T {
	ch := make(chan T, 1)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier[T]) Unsubscribe(ch chan T) {
	n.mu.Lock()
	if _, ok := n.listeners[ch]; ok {
		delete(n.listeners, ch)
		close(ch)
	}
	n.mu.Unlock()
}

// Len returns the number of listeners.
func (n *Notifier[T]) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.listeners)
}

// Broadcast sends v to all listeners without blocking.
func (n *Notifier[T]) Broadcast(v T) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for ch := range n.listeners {
		select {
		case ch <- v:
			continue
		default:
		}
		// Drop the stale value and deliver the new one.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}
