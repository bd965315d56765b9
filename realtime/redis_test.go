package realtime

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func setupRedisTransport(t *testing.T) *RedisTransport {
	t.Helper()
	s := miniredis.RunT(t)
	transport, err := NewRedisTransport("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("NewRedisTransport() failed: %v", err)
	}
	t.Cleanup(func() { _ = transport.Close() })
	return transport
}

func TestRedisSubscribePublish(t *testing.T) {
	transport := setupRedisTransport(t)
	mgr := NewManager(transport, nopLogger{})
	ctx := context.Background()

	var events int32
	handle, err := mgr.Open(ctx, "conversation:42", func(string) { atomic.AddInt32(&events, 1) })
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	if err := mgr.Publish(ctx, "conversation:42"); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}
	waitFor(t, timeoutShort, func() bool { return atomic.LoadInt32(&events) == 1 })

	if err := mgr.Close(handle); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
}

func TestRedisTopicIsolation(t *testing.T) {
	transport := setupRedisTransport(t)
	mgr := NewManager(transport, nopLogger{})
	ctx := context.Background()

	var a, b int32
	ha, err := mgr.Open(ctx, "conversation:1", func(string) { atomic.AddInt32(&a, 1) })
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	hb, err := mgr.Open(ctx, "conversation:2", func(string) { atomic.AddInt32(&b, 1) })
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	if err := mgr.Publish(ctx, "conversation:2"); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}
	waitFor(t, timeoutShort, func() bool { return atomic.LoadInt32(&b) == 1 })
	if atomic.LoadInt32(&a) != 0 {
		t.Errorf("event leaked across topics")
	}

	_ = mgr.Close(ha)
	_ = mgr.Close(hb)
}
