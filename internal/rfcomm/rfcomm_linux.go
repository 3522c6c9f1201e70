//go:build linux

package rfcomm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"sppchat/internal/link"
)

// Strategy creates raw RFCOMM sockets aimed at a fixed channel.
type Strategy struct {
	channel uint8
	log     *zap.Logger
}

// New returns a Strategy for channel (0 means DefaultChannel).
func New(channel uint8, log *zap.Logger) *Strategy {
	if channel == 0 {
		channel = DefaultChannel
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Strategy{channel: channel, log: log}
}

func (s *Strategy) Name() string { return "rfcomm" }

func (s *Strategy) Create(_ context.Context, peer string) (link.Socket, error) {
	addr, err := ParseAddr(peer)
	if err != nil {
		return nil, err
	}
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.BTPROTO_RFCOMM)
	if err != nil {
		return nil, fmt.Errorf("rfcomm: socket: %w", err)
	}
	s.log.Debug("rfcomm: socket created", zap.String("peer", peer), zap.Uint8("channel", s.channel))
	return &socket{
		f:    os.NewFile(uintptr(fd), "rfcomm"),
		sa:   &unix.SockaddrRFCOMM{Addr: addr, Channel: s.channel},
		peer: peer,
	}, nil
}

type socket struct {
	f    *os.File
	sa   *unix.SockaddrRFCOMM
	peer string

	once sync.Once
	err  error
}

// Connect runs a non-blocking connect and waits for the socket to become
// writable. Cancelling ctx interrupts the wait.
func (s *socket) Connect(ctx context.Context) (link.Transport, error) {
	rc, err := s.f.SyscallConn()
	if err != nil {
		return nil, fmt.Errorf("rfcomm: raw conn: %w", err)
	}
	var connErr error
	if err := rc.Control(func(fd uintptr) {
		connErr = unix.Connect(int(fd), s.sa)
	}); err != nil {
		return nil, fmt.Errorf("rfcomm: connect: %w", err)
	}
	switch {
	case connErr == nil:
		return link.NewTransport(s.f), nil
	case errors.Is(connErr, unix.EINPROGRESS), errors.Is(connErr, unix.EALREADY), errors.Is(connErr, unix.EINTR):
	default:
		return nil, fmt.Errorf("rfcomm: connect %s channel %d: %w", s.peer, s.sa.Channel, connErr)
	}

	stop := context.AfterFunc(ctx, func() {
		// Wakes the poller below.
		_ = s.f.SetWriteDeadline(time.Unix(1, 0))
	})
	defer stop()

	var soErr int
	var getErr error
	waited := false
	werr := rc.Write(func(fd uintptr) bool {
		if !waited {
			waited = true
			return false
		}
		soErr, getErr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_ERROR)
		return true
	})
	if werr != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("rfcomm: connect canceled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("rfcomm: wait for connect: %w", werr)
	}
	if getErr != nil {
		return nil, fmt.Errorf("rfcomm: SO_ERROR: %w", getErr)
	}
	if soErr != 0 {
		return nil, fmt.Errorf("rfcomm: connect %s channel %d: %w", s.peer, s.sa.Channel, unix.Errno(soErr))
	}
	if !stop() {
		return nil, fmt.Errorf("rfcomm: connect canceled: %w", ctx.Err())
	}
	_ = s.f.SetWriteDeadline(time.Time{})
	return link.NewTransport(s.f), nil
}

func (s *socket) Close() error {
	s.once.Do(func() { s.err = s.f.Close() })
	return s.err
}
