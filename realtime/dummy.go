package realtime

import (
	"context"
	"sync"
)

// DummyTransport is an in-process transport for tests and single-node runs.
// Publishes are delivered synchronously to every open handler on the topic.
type DummyTransport struct {
	mu     sync.Mutex
	subs   map[string]map[int]EventHandler
	nextID int
	closed bool
}

var _ Transport = (*DummyTransport)(nil)

func NewDummyTransport() *DummyTransport {
	return &DummyTransport{subs: make(map[string]map[int]EventHandler)}
}

func (t *DummyTransport) Subscribe(_ context.Context, topic string, h EventHandler) (Subscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.subs[topic] == nil {
		t.subs[topic] = make(map[int]EventHandler)
	}
	id := t.nextID
	t.nextID++
	t.subs[topic][id] = h

	return &dummySubscription{transport: t, topic: topic, id: id}, nil
}

func (t *DummyTransport) Publish(_ context.Context, topic string) error {
	t.mu.Lock()
	handlers := make([]EventHandler, 0, len(t.subs[topic]))
	for _, h := range t.subs[topic] {
		handlers = append(handlers, h)
	}
	t.mu.Unlock()

	for _, h := range handlers {
		h(topic)
	}
	return nil
}

func (t *DummyTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subs = make(map[string]map[int]EventHandler)
	t.closed = true
	return nil
}

// SubscriberCount reports live transport-level subscriptions on a topic.
func (t *DummyTransport) SubscriberCount(topic string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs[topic])
}

type dummySubscription struct {
	transport *DummyTransport
	topic     string
	id        int
}

func (s *dummySubscription) Close() error {
	s.transport.mu.Lock()
	defer s.transport.mu.Unlock()
	delete(s.transport.subs[s.topic], s.id)
	return nil
}
