package link

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestFallbackUsesPrimaryFirst(t *testing.T) {
	a := newPipeStrategy("primary")
	b := newPipeStrategy("fallback")
	f := NewFallback(nil, a, b)

	sock, err := f.Acquire(context.Background(), testPeer)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := sock.(*pipeSocket); !ok || sock.(*pipeSocket).p != a {
		t.Fatal("expected socket from primary strategy")
	}
	if b.created.Load() != 0 {
		t.Fatal("fallback should not be tried when primary succeeds")
	}
}

func TestFallbackAfterPrimaryFails(t *testing.T) {
	a := newPipeStrategy("primary")
	a.createErr = errors.New("profile rejected")
	b := newPipeStrategy("fallback")
	f := NewFallback(nil, a, b)

	sock, err := f.Acquire(context.Background(), testPeer)
	if err != nil {
		t.Fatal(err)
	}
	if sock.(*pipeSocket).p != b {
		t.Fatal("expected socket from fallback strategy")
	}
	if a.created.Load() != 1 || b.created.Load() != 1 {
		t.Fatalf("attempts: primary=%d fallback=%d", a.created.Load(), b.created.Load())
	}
}

func TestFallbackAllFail(t *testing.T) {
	a := newPipeStrategy("primary")
	a.createErr = errors.New("profile rejected")
	b := newPipeStrategy("fallback")
	b.createErr = errors.New("protocol not supported")

	_, err := NewFallback(nil, a, b).Acquire(context.Background(), testPeer)
	if !errors.Is(err, ErrSocketCreationFailed) {
		t.Fatalf("err = %v, want ErrSocketCreationFailed", err)
	}
	for _, part := range []string{"primary: profile rejected", "fallback: protocol not supported"} {
		if !strings.Contains(err.Error(), part) {
			t.Errorf("error %q missing %q", err, part)
		}
	}
}

func TestFallbackEmpty(t *testing.T) {
	_, err := NewFallback(nil).Acquire(context.Background(), testPeer)
	if !errors.Is(err, ErrSocketCreationFailed) {
		t.Fatalf("err = %v", err)
	}
}

func TestFallbackCanceled(t *testing.T) {
	a := newPipeStrategy("primary")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFallback(nil, a).Acquire(ctx, testPeer)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if a.created.Load() != 0 {
		t.Fatal("no strategy should run after cancellation")
	}
}

type countingCloser struct {
	io.ReadWriter
	n int
}

func (c *countingCloser) Close() error {
	c.n++
	return errors.New("already closed")
}

func TestTransportCloseOnce(t *testing.T) {
	c := &countingCloser{}
	tr := NewTransport(c)
	for i := 0; i < 3; i++ {
		if err := tr.Close(); err == nil {
			t.Fatal("expected the first close error to be returned")
		}
	}
	if c.n != 1 {
		t.Fatalf("underlying Close called %d times", c.n)
	}
	if NewTransport(tr) != tr {
		t.Fatal("wrapping twice should return the same transport")
	}
}

func TestDescribeCoversEveryClass(t *testing.T) {
	classes := []error{
		ErrInvalidPeer, ErrAlreadyConnected, ErrSocketCreationFailed, ErrConnectFailed,
		ErrNotConnected, ErrEmptyMessage, ErrSendFailed, ErrConnectionLost, ErrCloseFailed,
	}
	seen := map[string]bool{}
	for _, err := range classes {
		msg := Describe(err)
		if msg == "" || msg == err.Error() {
			t.Errorf("%v has no notification text", err)
		}
		if seen[msg] {
			t.Errorf("notification %q used twice", msg)
		}
		seen[msg] = true
	}
}
