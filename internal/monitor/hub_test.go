package monitor

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sadewadee/maboo-spoa/internal/spoe/spop"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestObserveFrameNoopsWithoutClients(t *testing.T) {
	h := New(discardLogger(), func() int64 { return 42 })
	// Should not panic or block when there are no registered clients.
	h.ObserveFrame(1, 1, "in", &spop.Frame{Kind: spop.KindNotify})
	if h.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", h.ClientCount())
	}
}

func TestObserveFrameFansOutToClients(t *testing.T) {
	h := New(discardLogger(), func() int64 { return 42 })
	c := &client{send: make(chan Event, 4)}
	h.register(c)

	h.ObserveFrame(7, 3, "in", &spop.Frame{
		Kind:     spop.KindNotify,
		Messages: []spop.Message{{Name: "check-client-ip"}},
	})

	select {
	case evt := <-c.send:
		if evt.StreamID != 7 || evt.FrameID != 3 || evt.Kind != "NOTIFY" || evt.Timestamp != 42 {
			t.Errorf("unexpected event: %+v", evt)
		}
		if len(evt.Messages) != 1 || evt.Messages[0] != "check-client-ip" {
			t.Errorf("unexpected message names: %+v", evt.Messages)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestUnregisterClosesSendChannel(t *testing.T) {
	h := New(discardLogger(), nil)
	c := &client{send: make(chan Event, 1)}
	h.register(c)
	if h.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", h.ClientCount())
	}

	h.unregister(c)
	if h.ClientCount() != 0 {
		t.Errorf("expected 0 clients after unregister, got %d", h.ClientCount())
	}
	if _, ok := <-c.send; ok {
		t.Error("expected send channel to be closed")
	}
}

func TestSlowClientDoesNotBlockBroadcast(t *testing.T) {
	h := New(discardLogger(), nil)
	c := &client{send: make(chan Event)} // unbuffered, nobody reading
	h.register(c)

	done := make(chan struct{})
	go func() {
		h.ObserveFrame(1, 1, "in", &spop.Frame{Kind: spop.KindNotify})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ObserveFrame blocked on a slow client")
	}
}
