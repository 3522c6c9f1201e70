package link

import (
	"context"
	"io"
	"sync"
)

// Transport is the duplex byte stream of one live connection.
//
// Close is idempotent and may be called from any goroutine; a Read blocked
// in another goroutine must return an error once Close has been called.
type Transport interface {
	io.ReadWriteCloser
}

// Socket is a created but not yet connected endpoint. Connect performs the
// handshake and hands ownership of the stream to the returned Transport.
// Close releases the socket when Connect was never called or failed.
//
// Connect must return promptly once ctx is done. Disconnect during
// Connecting does not wait for it, and the socket is only released when
// Connect returns.
type Socket interface {
	Connect(ctx context.Context) (Transport, error)
	Close() error
}

// NewTransport wraps rwc so that Close runs at most once. Later calls
// return the first call's error.
func NewTransport(rwc io.ReadWriteCloser) Transport {
	if t, ok := rwc.(*onceTransport); ok {
		return t
	}
	return &onceTransport{rwc: rwc}
}

type onceTransport struct {
	rwc  io.ReadWriteCloser
	once sync.Once
	err  error
}

func (t *onceTransport) Read(p []byte) (int, error)  { return t.rwc.Read(p) }
func (t *onceTransport) Write(p []byte) (int, error) { return t.rwc.Write(p) }

func (t *onceTransport) Close() error {
	t.once.Do(func() { t.err = t.rwc.Close() })
	return t.err
}
