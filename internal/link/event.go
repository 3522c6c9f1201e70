package link

import (
	"fmt"
	"sync"
)

// State is the connection state of a Manager.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Disconnecting
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnecting:
		return "disconnecting"
	default:
		return "disconnected"
	}
}

// EventKind identifies an Event variant.
type EventKind int

const (
	EventConnected EventKind = iota + 1
	EventConnectFailed
	EventMessage
	EventConnectionLost
	EventDisconnected
	EventSendFailed
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventConnectFailed:
		return "connect_failed"
	case EventMessage:
		return "message"
	case EventConnectionLost:
		return "connection_lost"
	case EventDisconnected:
		return "disconnected"
	case EventSendFailed:
		return "send_failed"
	default:
		return "unknown"
	}
}

// Event is delivered on Manager.Events in the order it occurred.
// Peer is set for Connected, Text for Message, Err for the failure kinds.
type Event struct {
	Kind EventKind
	Peer string
	Text string
	Err  error
}

// String renders the notification shown to the user for e.
func (e Event) String() string {
	switch e.Kind {
	case EventConnected:
		return fmt.Sprintf("Connected to %s", e.Peer)
	case EventMessage:
		return e.Text
	case EventDisconnected:
		return "Disconnected from device"
	default:
		return Describe(e.Err)
	}
}

// eventQueue is an unbounded FIFO drained into a channel by one goroutine,
// so pushing never blocks and never drops.
type eventQueue struct {
	mu      sync.Mutex
	pending []Event
	closed  bool
	wake    chan struct{}
	out     chan Event
}

func newEventQueue() *eventQueue {
	q := &eventQueue{
		wake: make(chan struct{}, 1),
		out:  make(chan Event),
	}
	go q.pump()
	return q
}

func (q *eventQueue) push(e Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.pending = append(q.pending, e)
	q.mu.Unlock()
	q.signal()
}

// close stops accepting events. Queued events are still delivered, then
// out is closed.
func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *eventQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *eventQueue) pump() {
	defer close(q.out)
	for {
		q.mu.Lock()
		batch := q.pending
		q.pending = nil
		closed := q.closed
		q.mu.Unlock()

		for _, e := range batch {
			q.out <- e
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-q.wake
	}
}
