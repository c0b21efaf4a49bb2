// Package fanout distributes overlay update events to open SSE and websocket
// connections.
package fanout

import (
	"errors"
	"sync"
	"sync/atomic"
)

var ErrClosed = errors.New("fanout hub closed")

// Publisher is what mutation handlers need from a hub or relay.
type Publisher interface {
	Publish(Event) (int, error)
}

// Hub is an in-process pub/sub. Every subscription owns a bounded buffer;
// a full buffer drops the new event and counts it as missed.
type Hub struct {
	mu       sync.RWMutex
	subs     map[*Subscription]struct{}
	capacity int
	closed   bool
}

func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 32
	}
	return &Hub{
		subs:     make(map[*Subscription]struct{}),
		capacity: capacity,
	}
}

// Subscribe registers a subscriber that sees events published from now on.
// After Close the returned subscription's channel is already closed.
func (h *Hub) Subscribe(f Filter) *Subscription {
	s := &Subscription{hub: h, filter: f, ch: make(chan Event, h.capacity)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(s.ch)
		return s
	}
	h.subs[s] = struct{}{}
	return s
}

// Publish enqueues e for every matching subscriber without blocking and
// returns how many accepted it. No subscribers is not an error.
func (h *Hub) Publish(e Event) (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return 0, ErrClosed
	}

	delivered := 0
	for s := range h.subs {
		if !s.filter.Matches(e) {
			continue
		}
		select {
		case s.ch <- e:
			delivered++
		default:
			s.missed.Add(1)
		}
	}
	return delivered, nil
}

// Subscribers reports the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription. Later publishes fail with ErrClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		close(s.ch)
		delete(h.subs, s)
	}
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.ch)
	}
}

type Subscription struct {
	hub    *Hub
	filter Filter
	ch     chan Event
	missed atomic.Uint64
}

// Events is closed when the subscription or its hub is closed.
func (s *Subscription) Events() <-chan Event { return s.ch }

func (s *Subscription) Filter() Filter { return s.filter }

// TakeMissed returns the number of events dropped since the last call and
// resets the counter. A non-zero value means the subscriber's view is stale.
func (s *Subscription) TakeMissed() uint64 { return s.missed.Swap(0) }

func (s *Subscription) Close() { s.hub.remove(s) }
