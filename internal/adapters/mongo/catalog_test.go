package mongo_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	catalog "github.com/robertarktes/court-reservations/internal/adapters/mongo"
	"github.com/robertarktes/court-reservations/internal/domain"
	"github.com/robertarktes/court-reservations/internal/observability"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func newDatabase(t *testing.T) *mongo.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("mongo container skipped in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	uri, err := container.Endpoint(ctx, "mongodb")
	require.NoError(t, err)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(ctx) })
	return client.Database("courts_test")
}

func TestCatalogRepository(t *testing.T) {
	db := newDatabase(t)
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	repo := catalog.NewCatalogRepository(db, observability.FromLogrus(logger))

	open := domain.Court{ID: uuid.New(), Name: "Padel 1", Slug: "padel-1", Sport: "padel", Price: 15000, DurationMinutes: 60, Active: true}
	closed := domain.Court{ID: uuid.New(), Name: "Old court", Slug: "old", Price: 5000, Active: false}
	require.NoError(t, repo.UpsertCourt(ctx, open))
	require.NoError(t, repo.UpsertCourt(ctx, closed))

	late := domain.TimeSlot{ID: uuid.New(), StartTime: "20:00", EndTime: "21:00", Order: 2}
	early := domain.TimeSlot{ID: uuid.New(), StartTime: "08:00", EndTime: "09:00", Order: 1}
	require.NoError(t, repo.UpsertTimeSlot(ctx, late))
	require.NoError(t, repo.UpsertTimeSlot(ctx, early))

	got, err := repo.GetCourt(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, open, *got)

	courts, err := repo.ListCourts(ctx)
	require.NoError(t, err)
	require.Len(t, courts, 1)
	assert.Equal(t, open.ID, courts[0].ID)

	slots, err := repo.ListTimeSlots(ctx)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, early.ID, slots[0].ID)

	_, err = repo.GetCourt(ctx, uuid.New())
	assert.True(t, errors.Is(err, domain.ErrCourtNotFound))
	_, err = repo.GetTimeSlot(ctx, uuid.New())
	assert.True(t, errors.Is(err, domain.ErrTimeSlotNotFound))

}

func TestAuditLogger_BookingHistory(t *testing.T) {
	db := newDatabase(t)
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	audit := catalog.NewAuditLogger(db, observability.FromLogrus(logger))
	require.NoError(t, audit.EnsureIndexes(ctx))

	customer, booking := uuid.New(), uuid.New()
	require.NoError(t, audit.LogEvent(ctx, "booking.created", customer, map[string]interface{}{
		"booking_id":   booking.String(),
		"status":       "unpaid",
		"total_amount": int64(1000),
	}))
	require.NoError(t, audit.LogEvent(ctx, "booking.cancelled", customer, map[string]interface{}{
		"booking_id":   booking.String(),
		"status":       "cancelled",
		"total_amount": int64(1000),
		"fine_amount":  int64(500),
	}))
	require.NoError(t, audit.LogEvent(ctx, "fine.paid", customer, map[string]interface{}{
		"fine_id": uuid.NewString(),
		"amount":  int64(500),
	}))

	history, err := audit.BookingHistory(ctx, booking)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "booking.created", history[0].Action)
	assert.Equal(t, "unpaid", history[0].Status)
	assert.Equal(t, "booking.cancelled", history[1].Action)
	assert.Equal(t, "cancelled", history[1].Status)
	assert.Equal(t, int64(1000), history[1].Amount)
	assert.Equal(t, customer, history[1].CustomerID)
	require.NotNil(t, history[1].BookingID)
	assert.Equal(t, booking, *history[1].BookingID)
	assert.EqualValues(t, 500, history[1].Data["fine_amount"])

	n, err := db.Collection("booking_audit").CountDocuments(ctx, map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	none, err := audit.BookingHistory(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
}
