package hub

import (
	"testing"
	"time"

	"sppchat/internal/link"
)

func recv(t *testing.T, ch <-chan link.Event) link.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
	return link.Event{}
}

func TestFanOutPreservesOrder(t *testing.T) {
	h := New(nil)
	a, unsubA := h.Subscribe("a")
	b, unsubB := h.Subscribe("b")
	defer unsubA()
	defer unsubB()

	src := make(chan link.Event, 3)
	src <- link.Event{Kind: link.EventConnected, Peer: "00:11:22:AA:BB:CC"}
	src <- link.Event{Kind: link.EventMessage, Text: "hi"}
	src <- link.Event{Kind: link.EventDisconnected}
	close(src)
	go h.Run(src)

	for _, ch := range []<-chan link.Event{a, b} {
		for _, want := range []link.EventKind{link.EventConnected, link.EventMessage, link.EventDisconnected} {
			if got := recv(t, ch).Kind; got != want {
				t.Fatalf("got %v, want %v", got, want)
			}
		}
		select {
		case _, ok := <-ch:
			if ok {
				t.Fatal("unexpected extra event")
			}
		case <-time.After(time.Second):
			t.Fatal("channel not closed after source ended")
		}
	}
}

func TestUnsubscribe(t *testing.T) {
	h := New(nil)
	ch, unsub := h.Subscribe("a")
	if h.Len() != 1 {
		t.Fatalf("Len = %d", h.Len())
	}
	unsub()
	unsub()
	if h.Len() != 0 {
		t.Fatalf("Len = %d", h.Len())
	}
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}
	h.Publish(link.Event{Kind: link.EventMessage})
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	h := New(nil)
	_, unsubSlow := h.Subscribe("slow")
	defer unsubSlow()
	fast, unsubFast := h.Subscribe("fast")
	defer unsubFast()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			h.Publish(link.Event{Kind: link.EventMessage})
			<-fast
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestSubscribeAfterClose(t *testing.T) {
	h := New(nil)
	src := make(chan link.Event)
	close(src)
	h.Run(src)
	ch, unsub := h.Subscribe("late")
	defer unsub()
	if _, ok := <-ch; ok {
		t.Fatal("late subscriber should get a closed channel")
	}
}

func TestWaitingSubscriberGetsBurst(t *testing.T) {
	h := New(nil)
	ch, unsub := h.SubscribeWait("pipe", 2*time.Second)
	defer unsub()

	total := subscriberBuffer + 10
	done := make(chan struct{})
	go func() {
		for i := 0; i < total; i++ {
			h.Publish(link.Event{Kind: link.EventMessage})
		}
		close(done)
	}()

	// Let the buffer fill before draining.
	time.Sleep(50 * time.Millisecond)
	for i := 0; i < total; i++ {
		recv(t, ch)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher still blocked after the subscriber drained")
	}
}

func TestWaitingSubscriberTimesOut(t *testing.T) {
	h := New(nil)
	_, unsub := h.SubscribeWait("stuck", 20*time.Millisecond)
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer+2; i++ {
			h.Publish(link.Event{Kind: link.EventMessage})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish waited past the subscriber's limit")
	}
}
