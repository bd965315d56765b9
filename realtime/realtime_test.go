package realtime

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

const timeoutShort = 2 * time.Second

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func TestOpenAndPublish(t *testing.T) {
	transport := NewDummyTransport()
	mgr := NewManager(transport, nopLogger{})
	ctx := context.Background()

	var events int32
	handle, err := mgr.Open(ctx, "conversation:42", func(topic string) {
		if topic != "conversation:42" {
			t.Errorf("handler got topic %q", topic)
		}
		atomic.AddInt32(&events, 1)
	})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	_ = mgr.Publish(ctx, "conversation:42")
	_ = mgr.Publish(ctx, "conversation:7") // unrelated topic

	if got := atomic.LoadInt32(&events); got != 1 {
		t.Errorf("events = %d, want 1", got)
	}

	if err := mgr.Close(handle); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	_ = mgr.Publish(ctx, "conversation:42")
	if got := atomic.LoadInt32(&events); got != 1 {
		t.Errorf("event delivered after close: %d", got)
	}
}

func TestOpenEmptyTopic(t *testing.T) {
	mgr := NewManager(NewDummyTransport(), nopLogger{})
	if _, err := mgr.Open(context.Background(), "", func(string) {}); err == nil {
		t.Fatal("Open(\"\") succeeded, want error")
	}
}

// Opening a topic twice must not leak: the second Open replaces the first
// subscription outright.
func TestDuplicateOpenReplaces(t *testing.T) {
	transport := NewDummyTransport()
	mgr := NewManager(transport, nopLogger{})
	ctx := context.Background()

	var first, second int32
	h1, err := mgr.Open(ctx, "conversation:42", func(string) { atomic.AddInt32(&first, 1) })
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	h2, err := mgr.Open(ctx, "conversation:42", func(string) { atomic.AddInt32(&second, 1) })
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}

	if n := transport.SubscriberCount("conversation:42"); n != 1 {
		t.Fatalf("transport subscriptions = %d, want 1 (no leak)", n)
	}
	if mgr.OpenCount() != 1 {
		t.Fatalf("OpenCount() = %d, want 1", mgr.OpenCount())
	}

	_ = mgr.Publish(ctx, "conversation:42")
	if atomic.LoadInt32(&first) != 0 || atomic.LoadInt32(&second) != 1 {
		t.Errorf("events = (%d, %d), want replaced handler only", first, second)
	}

	// closing the stale handle is a harmless no-op
	if err := mgr.Close(h1); err != nil {
		t.Errorf("Close(stale) = %v", err)
	}
	if mgr.OpenCount() != 1 {
		t.Errorf("stale close removed the live handle")
	}
	_ = mgr.Close(h2)
}

func TestCloseAll(t *testing.T) {
	transport := NewDummyTransport()
	mgr := NewManager(transport, nopLogger{})
	ctx := context.Background()

	for _, topic := range []string{"conversation:1", "conversation:2", "conversation:3"} {
		if _, err := mgr.Open(ctx, topic, func(string) {}); err != nil {
			t.Fatalf("Open(%q) failed: %v", topic, err)
		}
	}

	mgr.CloseAll()

	if mgr.OpenCount() != 0 {
		t.Errorf("OpenCount() = %d after CloseAll", mgr.OpenCount())
	}
	for _, topic := range []string{"conversation:1", "conversation:2", "conversation:3"} {
		if n := transport.SubscriberCount(topic); n != 0 {
			t.Errorf("transport still holds %d subscription(s) on %q", n, topic)
		}
	}
}

func TestNilHandleClose(t *testing.T) {
	mgr := NewManager(NewDummyTransport(), nopLogger{})
	if err := mgr.Close(nil); err != nil {
		t.Errorf("Close(nil) = %v", err)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
