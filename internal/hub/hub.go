// Package hub fans the manager's single event stream out to several
// caller-side adapters (terminal UI, WebSocket clients, pipe output).
package hub

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"sppchat/internal/link"
)

const subscriberBuffer = 256

// subscriber holds a buffered channel for one adapter.
type subscriber struct {
	name string
	ch   chan link.Event
	wait time.Duration // how long Publish waits on a full buffer; 0 drops at once
}

// Hub delivers each event to every subscriber in order. A subscriber whose
// buffer is full misses that event rather than stalling the others, unless
// it was registered with SubscribeWait.
type Hub struct {
	log *zap.Logger

	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool
}

// New constructs an empty Hub.
func New(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{log: log, subs: make(map[*subscriber]struct{})}
}

// Subscribe registers an adapter. The returned function unregisters it and
// closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(name string) (<-chan link.Event, func()) {
	return h.subscribe(name, 0)
}

// SubscribeWait is Subscribe for a consumer that must not miss messages:
// when its buffer is full, Publish waits up to wait for room before
// dropping the event.
func (h *Hub) SubscribeWait(name string, wait time.Duration) (<-chan link.Event, func()) {
	return h.subscribe(name, wait)
}

func (h *Hub) subscribe(name string, wait time.Duration) (<-chan link.Event, func()) {
	s := &subscriber{name: name, ch: make(chan link.Event, subscriberBuffer), wait: wait}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	}
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[s]; ok {
				delete(h.subs, s)
				close(s.ch)
			}
		})
	}
}

// Publish sends e to all current subscribers.
func (h *Hub) Publish(e link.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if !deliver(s, e) {
			h.log.Warn("hub: subscriber full, dropping event",
				zap.String("subscriber", s.name),
				zap.Stringer("kind", e.Kind),
			)
		}
	}
}

func deliver(s *subscriber, e link.Event) bool {
	select {
	case s.ch <- e:
		return true
	default:
	}
	if s.wait <= 0 {
		return false
	}
	t := time.NewTimer(s.wait)
	defer t.Stop()
	select {
	case s.ch <- e:
		return true
	case <-t.C:
		return false
	}
}

// Run publishes everything from events until it is closed, then closes all
// subscriber channels.
func (h *Hub) Run(events <-chan link.Event) {
	for e := range events {
		h.Publish(e)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.subs {
		delete(h.subs, s)
		close(s.ch)
	}
}

// Len returns the current subscriber count.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
