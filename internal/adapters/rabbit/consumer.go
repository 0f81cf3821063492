package rabbit

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Consumer struct {
	ch    *amqp.Channel
	queue string
}

// NewConsumer declares a durable queue bound to exchange for each routing pattern.
func NewConsumer(conn *amqp.Connection, exchange, queue string, patterns ...string) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, err
	}
	for _, p := range patterns {
		if err := ch.QueueBind(queue, p, exchange, false, nil); err != nil {
			_ = ch.Close()
			return nil, err
		}
	}
	if err := ch.Qos(16, 0, false); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return &Consumer{ch: ch, queue: queue}, nil
}

// Consume delivers messages with manual acknowledgement until ctx is done.
func (c *Consumer) Consume(ctx context.Context) (<-chan amqp.Delivery, error) {
	return c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
}

func (c *Consumer) Close() error {
	return c.ch.Close()
}
