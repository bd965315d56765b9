package realtime

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// channelPrefix namespaces our pub/sub channels on a shared redis.
const channelPrefix = "shule:rt:"

// RedisTransport drives subscriptions over redis pub/sub.
type RedisTransport struct {
	client *redis.Client
}

var _ Transport = (*RedisTransport)(nil)

func NewRedisTransport(redisURL string) (*RedisTransport, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisTransport{client: redis.NewClient(opts)}, nil
}

// NewRedisTransportWithClient wraps an existing client (shared pools, tests).
func NewRedisTransportWithClient(client *redis.Client) *RedisTransport {
	return &RedisTransport{client: client}
}

func (t *RedisTransport) Subscribe(ctx context.Context, topic string, h EventHandler) (Subscription, error) {
	pubsub := t.client.Subscribe(ctx, channelPrefix+topic)
	// force the SUBSCRIBE onto the wire before returning, so a Publish issued
	// right after Open is not lost
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	sub := &redisSubscription{pubsub: pubsub, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		for range pubsub.Channel() {
			h(topic)
		}
	}()
	return sub, nil
}

func (t *RedisTransport) Publish(ctx context.Context, topic string) error {
	return t.client.Publish(ctx, channelPrefix+topic, "changed").Err()
}

func (t *RedisTransport) Close() error {
	return t.client.Close()
}

type redisSubscription struct {
	pubsub *redis.PubSub
	done   chan struct{}
}

func (s *redisSubscription) Close() error {
	err := s.pubsub.Close()
	<-s.done
	return err
}
