//go:build linux

package link

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// NewFDTransport takes ownership of a connected stream socket. The FD is
// switched to non-blocking mode so the runtime poller serves reads and
// Close unblocks a pending Read.
func NewFDTransport(fd int, name string) (Transport, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("link: set nonblock on %s: %w", name, err)
	}
	return NewTransport(os.NewFile(uintptr(fd), name)), nil
}
