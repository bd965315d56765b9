// Package realtime manages live-update subscriptions over an opaque
// publish/subscribe transport. Events carry no payload beyond the topic: they
// are at-least-once, unordered invalidation hints, and consumers must
// re-fetch authoritative state rather than trust them.
package realtime

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/shule-app/shule/core"
)

// EventHandler is invoked asynchronously for every inbound event on an open
// topic. It receives only the topic name.
type EventHandler func(topic string)

// Transport is the underlying push channel. Implementations must deliver
// events for a topic to its handler until the returned subscription is
// closed; delivery order and exactly-once are not guaranteed.
type Transport interface {
	Subscribe(ctx context.Context, topic string, h EventHandler) (Subscription, error)
	Publish(ctx context.Context, topic string) error
	Close() error
}

// Subscription is one open transport channel.
type Subscription interface {
	Close() error
}

// Handle identifies one open subscription held by a consumer.
type Handle struct {
	topic string
	sub   Subscription
}

func (h *Handle) Topic() string { return h.topic }

// Manager opens and closes topic subscriptions tied to consumer lifetime.
// Policy: at most one open subscription per topic — a second Open on an open
// topic REPLACES the first (the stale handle is closed), so a re-rendered
// consumer can never leak its predecessor's channel.
type Manager struct {
	transport Transport
	logger    core.Logger

	mu   sync.Mutex
	open map[string]*Handle
}

func NewManager(transport Transport, logger core.Logger) *Manager {
	return &Manager{
		transport: transport,
		logger:    logger,
		open:      make(map[string]*Handle),
	}
}

// Open subscribes to topic. The handler runs on the transport's own
// goroutine; a push can arrive while a local operation is still in flight.
func (m *Manager) Open(ctx context.Context, topic string, h EventHandler) (*Handle, error) {
	if topic == "" {
		return nil, errors.New("realtime: empty topic")
	}

	sub, err := m.transport.Subscribe(ctx, topic, h)
	if err != nil {
		return nil, errors.Wrapf(err, "subscribing to %q", topic)
	}
	handle := &Handle{topic: topic, sub: sub}

	m.mu.Lock()
	prev := m.open[topic]
	m.open[topic] = handle
	m.mu.Unlock()

	if prev != nil {
		m.logger.Debug("realtime: replacing open subscription", map[string]interface{}{"topic": topic})
		if err := prev.sub.Close(); err != nil {
			m.logger.Error("realtime: closing replaced subscription", err)
		}
	}
	return handle, nil
}

// Close releases a handle. Closing a handle that was already replaced or
// closed is a no-op.
func (m *Manager) Close(h *Handle) error {
	if h == nil {
		return nil
	}

	m.mu.Lock()
	current, ok := m.open[h.topic]
	if ok && current == h {
		delete(m.open, h.topic)
	}
	m.mu.Unlock()

	if !ok || current != h {
		return nil
	}
	return h.sub.Close()
}

// CloseAll releases every open subscription. Used on teardown so navigation
// churn can never exhaust the transport's channel budget.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	handles := make([]*Handle, 0, len(m.open))
	for _, h := range m.open {
		handles = append(handles, h)
	}
	m.open = make(map[string]*Handle)
	m.mu.Unlock()

	for _, h := range handles {
		if err := h.sub.Close(); err != nil {
			m.logger.Error("realtime: closing subscription", err)
		}
	}
}

// OpenCount reports the number of live subscriptions.
func (m *Manager) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.open)
}

// Publish emits a row-changed hint on topic.
func (m *Manager) Publish(ctx context.Context, topic string) error {
	return m.transport.Publish(ctx, topic)
}
