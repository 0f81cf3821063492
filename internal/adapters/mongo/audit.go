package mongo

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/court-reservations/internal/domain"
	"github.com/robertarktes/court-reservations/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AuditLogger writes booking and fine transitions to the booking_audit collection.
type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
	now    func() time.Time
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("booking_audit"),
		logger: logger,
		now:    time.Now,
	}
}

// AuditEntry is the stored form of domain.AuditRecord.
type AuditEntry struct {
	ID         uuid.UUID  `bson:"_id"`
	Action     string     `bson:"action"`
	CustomerID uuid.UUID  `bson:"user_id"`
	BookingID  *uuid.UUID `bson:"booking_id,omitempty"`
	FineID     *uuid.UUID `bson:"fine_id,omitempty"`
	Status     string     `bson:"status,omitempty"`
	Amount     int64      `bson:"amount"`
	Timestamp  time.Time  `bson:"timestamp"`
	Data       bson.M     `bson:"data,omitempty"`
}

// EnsureIndexes creates the per-booking and per-customer history lookups.
func (a *AuditLogger) EnsureIndexes(ctx context.Context) error {
	_, err := a.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "booking_id", Value: 1}, {Key: "timestamp", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}}},
	})
	return errors.Wrap(err, "create audit indexes")
}

func (a *AuditLogger) LogEvent(ctx context.Context, action string, userID uuid.UUID, data map[string]interface{}) error {
	rec := domain.NewAuditRecord(action, userID, data, a.now())
	entry := AuditEntry{
		ID:         uuid.New(),
		Action:     rec.Action,
		CustomerID: rec.CustomerID,
		BookingID:  rec.BookingID,
		FineID:     rec.FineID,
		Status:     rec.Status,
		Amount:     rec.Amount,
		Timestamp:  rec.At,
		Data:       bson.M(rec.Data),
	}
	if _, err := a.coll.InsertOne(ctx, entry); err != nil {
		a.logger.WithError(err).WithFields(map[string]interface{}{
			"action":  action,
			"booking": entry.BookingID,
		}).Error("failed to insert audit entry")
		return errors.Wrapf(err, "audit %s", action)
	}
	return nil
}

// BookingHistory returns every transition recorded for a booking, oldest first.
func (a *AuditLogger) BookingHistory(ctx context.Context, bookingID uuid.UUID) ([]domain.AuditRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cur, err := a.coll.Find(ctx, bson.M{"booking_id": bookingID}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "query audit")
	}
	defer cur.Close(ctx)

	var entries []AuditEntry
	if err := cur.All(ctx, &entries); err != nil {
		return nil, errors.Wrap(err, "decode audit")
	}
	out := make([]domain.AuditRecord, len(entries))
	for i, e := range entries {
		out[i] = domain.AuditRecord{
			Action:     e.Action,
			CustomerID: e.CustomerID,
			BookingID:  e.BookingID,
			FineID:     e.FineID,
			Status:     e.Status,
			Amount:     e.Amount,
			At:         e.Timestamp.UTC(),
			Data:       e.Data,
		}
	}
	return out, nil
}
