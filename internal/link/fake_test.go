package link

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const testPeer = "00:11:22:AA:BB:CC"

// pipeStrategy hands out net.Pipe backed sockets and keeps the remote ends.
type pipeStrategy struct {
	name       string
	createErr  error
	connectErr error
	block      chan struct{} // when set, Connect waits for it or ctx

	created atomic.Int32
	mu      sync.Mutex
	sockets []*pipeSocket
	remotes chan net.Conn
	locals  chan *trackedConn
}

func newPipeStrategy(name string) *pipeStrategy {
	return &pipeStrategy{
		name:    name,
		remotes: make(chan net.Conn, 8),
		locals:  make(chan *trackedConn, 8),
	}
}

func (p *pipeStrategy) Name() string { return p.name }

func (p *pipeStrategy) Create(ctx context.Context, peer string) (Socket, error) {
	p.created.Add(1)
	if p.createErr != nil {
		return nil, p.createErr
	}
	s := &pipeSocket{p: p}
	p.mu.Lock()
	p.sockets = append(p.sockets, s)
	p.mu.Unlock()
	return s, nil
}

type pipeSocket struct {
	p      *pipeStrategy
	closed atomic.Bool
}

func (s *pipeSocket) Connect(ctx context.Context) (Transport, error) {
	if s.p.block != nil {
		select {
		case <-s.p.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.p.connectErr != nil {
		return nil, s.p.connectErr
	}
	local, remote := net.Pipe()
	tc := &trackedConn{Conn: local}
	s.p.remotes <- remote
	s.p.locals <- tc
	return tc, nil
}

func (s *pipeSocket) Close() error {
	s.closed.Store(true)
	return nil
}

// trackedConn records Close and can be told to fail writes.
type trackedConn struct {
	net.Conn
	closed   atomic.Bool
	writeErr atomic.Value // error
}

func (c *trackedConn) Write(p []byte) (int, error) {
	if err, ok := c.writeErr.Load().(error); ok && err != nil {
		return 0, err
	}
	return c.Conn.Write(p)
}

func (c *trackedConn) Close() error {
	c.closed.Store(true)
	return c.Conn.Close()
}

func newTestManager(t *testing.T, strategies ...Strategy) *Manager {
	t.Helper()
	m := New(Options{Factory: NewFallback(nil, strategies...)})
	t.Cleanup(func() { m.Close() })
	return m
}

func nextEvent(t *testing.T, m *Manager) Event {
	t.Helper()
	select {
	case e, ok := <-m.Events():
		if !ok {
			t.Fatal("event stream closed")
		}
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func expectNoEvent(t *testing.T, m *Manager) {
	t.Helper()
	select {
	case e := <-m.Events():
		t.Fatalf("unexpected event %v: %q", e.Kind, e.String())
	case <-time.After(100 * time.Millisecond):
	}
}

// connect brings m to Connected through s and returns the remote end and
// the local transport.
func connect(t *testing.T, m *Manager, s *pipeStrategy) (net.Conn, *trackedConn) {
	t.Helper()
	if err := m.Connect(testPeer); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	e := nextEvent(t, m)
	if e.Kind != EventConnected {
		t.Fatalf("got %v (%v), want connected", e.Kind, e.Err)
	}
	if e.Peer != testPeer {
		t.Fatalf("peer = %q", e.Peer)
	}
	remote := <-s.remotes
	t.Cleanup(func() { remote.Close() })
	return remote, <-s.locals
}
