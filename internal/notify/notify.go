// Package notify hands customer notifications to whatever delivers them.
// Delivery is best-effort: callers log a failed Dispatch and carry on.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/court-reservations/internal/domain"
	"github.com/robertarktes/court-reservations/internal/observability"
	"github.com/robertarktes/court-reservations/internal/outbox"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, n domain.Notification) error
}

// RoutingKey is the broker routing key of a notification type.
func RoutingKey(notificationType string) string {
	return "notification." + notificationType
}

type message struct {
	CustomerID uuid.UUID      `json:"user_id"`
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	Data       map[string]any `json:"data,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// OutboxDispatcher appends notifications to the outbox; the outbox publisher relays them.
type OutboxDispatcher struct {
	store outbox.Store
	now   func() time.Time
}

func NewOutboxDispatcher(store outbox.Store) *OutboxDispatcher {
	return &OutboxDispatcher{store: store, now: time.Now}
}

func (d *OutboxDispatcher) Dispatch(ctx context.Context, n domain.Notification) error {
	now := d.now()
	payload, err := json.Marshal(message{
		CustomerID: n.CustomerID,
		Type:       n.Type,
		Title:      n.Title,
		Message:    n.Message,
		Data:       n.Data,
		CreatedAt:  now,
	})
	if err != nil {
		return errors.Wrap(err, "encode notification")
	}

	err = d.store.InsertOutbox(ctx, outbox.Record{
		ID:            uuid.New(),
		AggregateType: "customer",
		AggregateID:   n.CustomerID,
		EventType:     RoutingKey(n.Type),
		Payload:       payload,
		CreatedAt:     now,
		Status:        outbox.StatusNew,
		DedupeKey:     uuid.NewString(),
	})
	if err != nil {
		return errors.Wrapf(err, "enqueue %s notification", n.Type)
	}
	return nil
}

// LogDispatcher only logs. Used when no broker is configured.
type LogDispatcher struct {
	logger observability.Logger
}

func NewLogDispatcher(logger observability.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(_ context.Context, n domain.Notification) error {
	d.logger.WithFields(map[string]interface{}{
		"customer": n.CustomerID,
		"type":     n.Type,
		"title":    n.Title,
	}).Info(n.Message)
	return nil
}

// Decode reads a notification written by OutboxDispatcher.
func Decode(payload []byte) (domain.Notification, error) {
	var m message
	if err := json.Unmarshal(payload, &m); err != nil {
		return domain.Notification{}, errors.Wrap(err, "decode notification")
	}
	return domain.Notification{
		CustomerID: m.CustomerID,
		Type:       m.Type,
		Title:      m.Title,
		Message:    m.Message,
		Data:       m.Data,
	}, nil
}
