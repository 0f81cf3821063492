// Package outbox relays rows written to the outbox table to the message broker.
package outbox

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/court-reservations/internal/observability"
	"github.com/robertarktes/court-reservations/internal/worker"
)

const (
	StatusNew       = "NEW"
	StatusPublished = "PUBLISHED"
	StatusFailed    = "FAILED"
)

type Record struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Status        string
	DedupeKey     string
}

// Store is implemented by the durable store that owns the outbox table.
type Store interface {
	InsertOutbox(ctx context.Context, rec Record) error
	GetUnpublishedOutbox(ctx context.Context, limit int) ([]Record, error)
	MarkPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error
}

type Broker interface {
	Publish(ctx context.Context, key string, msg amqp.Publishing) error
}

type Publisher struct {
	store     Store
	broker    Broker
	interval  time.Duration
	batchSize int
	retry     worker.RetryPolicy
	logger    observability.Logger
}

func NewPublisher(store Store, broker Broker, interval time.Duration, logger observability.Logger) *Publisher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Publisher{
		store:     store,
		broker:    broker,
		interval:  interval,
		batchSize: 50,
		retry:     worker.DefaultRetryPolicy,
		logger:    logger,
	}
}

func (p *Publisher) WithRetryPolicy(r worker.RetryPolicy) *Publisher {
	p.retry = r
	return p
}

func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.WithField("interval", p.interval.String()).Info("outbox publisher started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.PublishBatch(ctx); err != nil {
				p.logger.WithError(err).Error("outbox batch failed")
			}
		}
	}
}

// PublishBatch relays one batch of unpublished records and returns how many were published.
// A record that cannot be published stays NEW and is picked up by a later batch.
func (p *Publisher) PublishBatch(ctx context.Context) (int, error) {
	records, err := p.store.GetUnpublishedOutbox(ctx, p.batchSize)
	if err != nil {
		return 0, errors.Wrap(err, "load outbox")
	}

	published := 0
	for _, rec := range records {
		observability.OutboxLag.Set(time.Since(rec.CreatedAt).Seconds())

		msg := amqp.Publishing{
			MessageId:    rec.DedupeKey,
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    rec.CreatedAt,
			Type:         rec.EventType,
			Body:         rec.Payload,
		}
		attempt := 0
		err := p.retry.Do(ctx, func(ctx context.Context) error {
			if attempt > 0 {
				observability.RabbitPublishRetries.Inc()
			}
			attempt++
			return p.broker.Publish(ctx, rec.EventType, msg)
		})
		if err != nil {
			p.logger.WithError(err).WithFields(map[string]interface{}{
				"outbox_id":  rec.ID,
				"event_type": rec.EventType,
			}).Error("failed to publish outbox record")
			continue
		}
		if err := p.store.MarkPublished(ctx, rec.ID, time.Now()); err != nil {
			return published, errors.Wrapf(err, "mark outbox %s published", rec.ID)
		}
		published++
	}
	return published, nil
}
