package realtime

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/pkg/errors"
)

const exchangeName = "shule.rt"

// AMQPTransport drives subscriptions over a RabbitMQ topic exchange, for
// deployments where the broker is already part of the stack.
type AMQPTransport struct {
	conn *amqp.Connection

	mu sync.Mutex
	ch *amqp.Channel // publish channel
}

var _ Transport = (*AMQPTransport)(nil)

func NewAMQPTransport(url string) (*AMQPTransport, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "dialing broker")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "opening channel")
	}
	if err := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "declaring exchange")
	}
	return &AMQPTransport{conn: conn, ch: ch}, nil
}

func (t *AMQPTransport) Subscribe(_ context.Context, topic string, h EventHandler) (Subscription, error) {
	ch, err := t.conn.Channel()
	if err != nil {
		return nil, errors.Wrap(err, "opening channel")
	}

	// transient, per-subscriber queue
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, errors.Wrap(err, "declaring queue")
	}
	if err := ch.QueueBind(q.Name, topic, exchangeName, false, nil); err != nil {
		_ = ch.Close()
		return nil, errors.Wrap(err, "binding queue")
	}
	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, errors.Wrap(err, "consuming")
	}

	sub := &amqpSubscription{ch: ch, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		for range msgs {
			h(topic)
		}
	}()
	return sub, nil
}

func (t *AMQPTransport) Publish(ctx context.Context, topic string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ch.PublishWithContext(ctx, exchangeName, topic, false, false, amqp.Publishing{
		ContentType: "text/plain",
		Body:        []byte("changed"),
	})
}

func (t *AMQPTransport) Close() error {
	return t.conn.Close()
}

type amqpSubscription struct {
	ch   *amqp.Channel
	done chan struct{}
}

func (s *amqpSubscription) Close() error {
	err := s.ch.Close()
	<-s.done
	return err
}
