package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/court-reservations/internal/adapters/rabbit"
	"github.com/robertarktes/court-reservations/internal/config"
	"github.com/robertarktes/court-reservations/internal/notify"
	"github.com/robertarktes/court-reservations/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.RabbitURL == "" {
		log.Fatal("notification worker needs RABBIT_URL")
	}

	logger := observability.NewLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()

	consumer, err := rabbit.NewConsumer(conn, cfg.RabbitExchange, "courts.notifications", notify.RoutingKey("#"))
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}
	defer consumer.Close()

	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		log.Fatalf("failed to consume: %v", err)
	}

	sink := notify.NewLogDispatcher(logger)
	logger.Info("notification worker started")
	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown notification worker")
			return
		case d, ok := <-deliveries:
			if !ok {
				logger.Warn("delivery channel closed")
				return
			}
			handle(ctx, d, sink, logger)
		}
	}
}

// handle hands one delivery to the sink. Malformed messages are dropped, sink failures requeued.
func handle(ctx context.Context, d amqp.Delivery, sink notify.Dispatcher, logger observability.Logger) {
	n, err := notify.Decode(d.Body)
	if err != nil {
		logger.WithError(err).WithField("message_id", d.MessageId).Error("dropping malformed notification")
		_ = d.Nack(false, false)
		return
	}
	if err := sink.Dispatch(ctx, n); err != nil {
		logger.WithError(err).WithField("message_id", d.MessageId).Warn("notification delivery failed, requeueing")
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}
