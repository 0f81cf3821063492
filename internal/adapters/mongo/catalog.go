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

// CatalogRepository serves courts and time-slot templates from the courts and
// time_slots collections.
type CatalogRepository struct {
	courts    *mongo.Collection
	timeSlots *mongo.Collection
	logger    observability.Logger
}

func NewCatalogRepository(db *mongo.Database, logger observability.Logger) *CatalogRepository {
	return &CatalogRepository{
		courts:    db.Collection("courts"),
		timeSlots: db.Collection("time_slots"),
		logger:    logger,
	}
}

type CourtDoc struct {
	ID              uuid.UUID `bson:"_id"`
	Name            string    `bson:"name"`
	Slug            string    `bson:"slug"`
	SportType       string    `bson:"sport_type"`
	Price           int64     `bson:"price"`
	DurationMinutes int       `bson:"duration_minutes"`
	Description     string    `bson:"description,omitempty"`
	ImageURL        string    `bson:"image_url,omitempty"`
	IsActive        bool      `bson:"is_active"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

func (d CourtDoc) toDomain() domain.Court {
	return domain.Court{
		ID:              d.ID,
		Name:            d.Name,
		Slug:            d.Slug,
		Sport:           d.SportType,
		Price:           d.Price,
		DurationMinutes: d.DurationMinutes,
		Description:     d.Description,
		ImageURL:        d.ImageURL,
		Active:          d.IsActive,
	}
}

type TimeSlotDoc struct {
	ID        uuid.UUID `bson:"_id"`
	StartTime string    `bson:"start_time"`
	EndTime   string    `bson:"end_time"`
	SlotOrder int       `bson:"slot_order"`
}

func (d TimeSlotDoc) toDomain() domain.TimeSlot {
	return domain.TimeSlot{ID: d.ID, StartTime: d.StartTime, EndTime: d.EndTime, Order: d.SlotOrder}
}

func (c *CatalogRepository) GetCourt(ctx context.Context, id uuid.UUID) (*domain.Court, error) {
	var doc CourtDoc
	err := c.courts.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrCourtNotFound
	}
	if err != nil {
		c.logger.WithError(err).Error("failed to get court")
		return nil, err
	}
	court := doc.toDomain()
	return &court, nil
}

func (c *CatalogRepository) ListCourts(ctx context.Context) ([]domain.Court, error) {
	cur, err := c.courts.Find(ctx, bson.M{"is_active": true}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []CourtDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Court, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

func (c *CatalogRepository) GetTimeSlot(ctx context.Context, id uuid.UUID) (*domain.TimeSlot, error) {
	var doc TimeSlotDoc
	err := c.timeSlots.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrTimeSlotNotFound
	}
	if err != nil {
		c.logger.WithError(err).Error("failed to get time slot")
		return nil, err
	}
	ts := doc.toDomain()
	return &ts, nil
}

func (c *CatalogRepository) ListTimeSlots(ctx context.Context) ([]domain.TimeSlot, error) {
	cur, err := c.timeSlots.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "slot_order", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []TimeSlotDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.TimeSlot, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

// UpsertCourt creates or replaces a court document.
func (c *CatalogRepository) UpsertCourt(ctx context.Context, court domain.Court) error {
	doc := CourtDoc{
		ID:              court.ID,
		Name:            court.Name,
		Slug:            court.Slug,
		SportType:       court.Sport,
		Price:           court.Price,
		DurationMinutes: court.DurationMinutes,
		Description:     court.Description,
		ImageURL:        court.ImageURL,
		IsActive:        court.Active,
		UpdatedAt:       time.Now(),
	}
	_, err := c.courts.ReplaceOne(ctx, bson.M{"_id": court.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		c.logger.WithError(err).Error("failed to upsert court")
		return err
	}
	return nil
}

func (c *CatalogRepository) UpsertTimeSlot(ctx context.Context, ts domain.TimeSlot) error {
	doc := TimeSlotDoc{ID: ts.ID, StartTime: ts.StartTime, EndTime: ts.EndTime, SlotOrder: ts.Order}
	_, err := c.timeSlots.ReplaceOne(ctx, bson.M{"_id": ts.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		c.logger.WithError(err).Error("failed to upsert time slot")
		return err
	}
	return nil
}
