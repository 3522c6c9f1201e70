// Package link is the connection core of sppchat: it drives one RFCOMM-style
// stream connection through Disconnected, Connecting, Connected and
// Disconnecting, frames the inbound byte stream into newline-terminated
// messages, and reports everything that happens as an ordered Event stream.
//
// Connect, Send, Disconnect, State and OnRadioDisabled are safe for
// concurrent use. I/O failures are never returned from background work;
// they arrive on Events.
package link

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// DefaultReadBufferSize is the largest single read performed by the receive loop.
const DefaultReadBufferSize = 1024

// Options configures a Manager.
type Options struct {
	// Factory creates sockets for Connect. Required.
	Factory SocketFactory
	// ReadBufferSize defaults to DefaultReadBufferSize.
	ReadBufferSize int
	Log            *zap.Logger
}

// Manager owns the state machine and at most one connection.
type Manager struct {
	factory SocketFactory
	bufSize int
	log     *zap.Logger
	events  *eventQueue

	mu     sync.Mutex
	state  State
	sess   *session
	closed bool
}

// session is one Connect attempt and, if it succeeds, the connection.
type session struct {
	peer   string
	ctx    context.Context
	cancel context.CancelFunc
	tr     Transport // guarded by Manager.mu; nil until connected
	wmu    sync.Mutex
	done   chan struct{} // closed when the worker goroutine returns
}

// New returns a Disconnected manager.
func New(opts Options) *Manager {
	if opts.ReadBufferSize <= 0 {
		opts.ReadBufferSize = DefaultReadBufferSize
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	return &Manager{
		factory: opts.Factory,
		bufSize: opts.ReadBufferSize,
		log:     opts.Log,
		events:  newEventQueue(),
	}
}

// Events returns the ordered event stream. It is closed by Close after the
// remaining events have been delivered. The caller must keep draining it.
func (m *Manager) Events() <-chan Event { return m.events.out }

// State returns a snapshot of the connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Peer returns the peer of the current connection attempt, or "".
func (m *Manager) Peer() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return ""
	}
	return m.sess.peer
}

// Connect starts connecting to peer and returns without waiting for the
// handshake. The outcome is reported as EventConnected or EventConnectFailed.
func (m *Manager) Connect(peer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.state != Disconnected {
		return ErrAlreadyConnected
	}
	p, err := ParsePeer(peer)
	if err != nil {
		return err
	}
	if m.factory == nil {
		return fmt.Errorf("%w: no socket factory", ErrSocketCreationFailed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		peer:   p,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.sess = s
	m.state = Connecting
	m.log.Info("link: connecting", zap.String("peer", p))
	go m.run(s)
	return nil
}

// Send writes text followed by the delimiter. A delimiter inside text is
// not escaped and splits the message on the receiving side.
func (m *Manager) Send(text string) error {
	m.mu.Lock()
	s := m.sess
	if m.state != Connected || s == nil || s.tr == nil {
		m.mu.Unlock()
		return ErrNotConnected
	}
	tr := s.tr
	m.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	frame := make([]byte, 0, len(text)+1)
	frame = append(frame, text...)
	frame = append(frame, Delimiter)

	s.wmu.Lock()
	_, err := tr.Write(frame)
	s.wmu.Unlock()
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrSendFailed, err)
		m.log.Warn("link: send failed", zap.String("peer", s.peer), zap.Error(err))
		m.teardown(s, true, Event{Kind: EventSendFailed, Peer: s.peer, Err: err})
		return err
	}
	return nil
}

// Disconnect closes the current connection or abandons a connection attempt.
// It is a no-op when there is nothing to disconnect.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	s := m.sess
	st := m.state
	m.mu.Unlock()
	if s == nil || st == Disconnected || st == Disconnecting {
		return nil
	}
	m.teardown(s, true, Event{Kind: EventDisconnected, Peer: s.peer})
	return nil
}

// OnRadioDisabled handles the local adapter being powered off.
func (m *Manager) OnRadioDisabled() {
	m.log.Info("link: radio disabled")
	_ = m.Disconnect()
}

// Close disconnects and ends the event stream. Further Connect calls fail
// with ErrClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	err := m.Disconnect()
	m.events.close()
	return err
}

func (m *Manager) run(s *session) {
	defer close(s.done)

	tr, err := m.dial(s)
	if err != nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		if s.ctx.Err() != nil || m.sess != s {
			// Disconnect got here first and owns the teardown.
			return
		}
		s.cancel()
		m.state = Disconnected
		m.sess = nil
		m.log.Warn("link: connect failed", zap.String("peer", s.peer), zap.Error(err))
		m.events.push(Event{Kind: EventConnectFailed, Peer: s.peer, Err: err})
		return
	}

	m.mu.Lock()
	if s.ctx.Err() != nil || m.sess != s {
		m.mu.Unlock()
		m.closeTransport(s.peer, tr)
		return
	}
	s.tr = tr
	m.state = Connected
	m.log.Info("link: connected", zap.String("peer", s.peer))
	m.events.push(Event{Kind: EventConnected, Peer: s.peer})
	m.mu.Unlock()

	m.receive(s, tr)
}

func (m *Manager) dial(s *session) (Transport, error) {
	sock, err := m.factory.Acquire(s.ctx, s.peer)
	if err != nil {
		if !errors.Is(err, ErrSocketCreationFailed) {
			err = fmt.Errorf("%w: %w", ErrSocketCreationFailed, err)
		}
		return nil, err
	}
	tr, err := sock.Connect(s.ctx)
	if err != nil {
		if cerr := sock.Close(); cerr != nil {
			m.log.Warn("link: release socket",
				zap.String("peer", s.peer),
				zap.Error(fmt.Errorf("%w: %w", ErrCloseFailed, cerr)),
			)
		}
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	return NewTransport(tr), nil
}

// receive drains tr into a FrameBuffer until the read fails.
func (m *Manager) receive(s *session, tr Transport) {
	var fb FrameBuffer
	defer fb.Reset()

	buf := make([]byte, m.bufSize)
	for {
		n, err := tr.Read(buf)
		if n > 0 {
			fb.Write(buf[:n])
			for {
				msg, ok := fb.Next()
				if !ok {
					break
				}
				m.events.push(Event{Kind: EventMessage, Peer: s.peer, Text: msg})
			}
		}
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			if fb.Len() > 0 {
				m.log.Debug("link: dropping partial message", zap.Int("bytes", fb.Len()))
			}
			err = fmt.Errorf("%w: %w", ErrConnectionLost, err)
			m.log.Warn("link: connection lost", zap.String("peer", s.peer), zap.Error(err))
			m.teardown(s, false, Event{Kind: EventConnectionLost, Peer: s.peer, Err: err})
			return
		}
	}
}

// teardown is the single path that ends a session: cancel, close the
// transport, optionally wait for the worker, return to Disconnected and
// push final. It does nothing if s is no longer current or is already
// being torn down. wait must be false when called from the worker itself.
func (m *Manager) teardown(s *session, wait bool, final Event) {
	m.mu.Lock()
	if m.sess != s || m.state == Disconnecting || s.ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	m.state = Disconnecting
	s.cancel()
	tr := s.tr
	m.mu.Unlock()

	if tr != nil {
		m.closeTransport(s.peer, tr)
		if wait {
			<-s.done
		}
	}

	m.mu.Lock()
	s.tr = nil
	m.state = Disconnected
	m.sess = nil
	m.log.Info("link: disconnected", zap.String("peer", s.peer), zap.Stringer("reason", final.Kind))
	m.events.push(final)
	m.mu.Unlock()
}

func (m *Manager) closeTransport(peer string, tr Transport) {
	if err := tr.Close(); err != nil {
		m.log.Warn("link: close transport",
			zap.String("peer", peer),
			zap.Error(fmt.Errorf("%w: %w", ErrCloseFailed, err)),
		)
	}
}
