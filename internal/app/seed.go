package app

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/robertarktes/court-reservations/internal/adapters/memory"
	"github.com/robertarktes/court-reservations/internal/domain"
)

var seedNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("courts.local"))

// SeedCatalog loads a demo catalog: two padel courts with hourly slots from 08:00 to 23:00.
// Ids are derived from names so they stay stable across restarts.
func SeedCatalog(s *memory.Store) {
	courts := []domain.Court{
		{Name: "Padel 1", Slug: "padel-1", Sport: "padel", Price: 15000, DurationMinutes: 60, Active: true},
		{Name: "Padel 2", Slug: "padel-2", Sport: "padel", Price: 15000, DurationMinutes: 60, Active: true},
	}
	for _, c := range courts {
		c.ID = uuid.NewSHA1(seedNamespace, []byte("court:"+c.Slug))
		s.PutCourt(c)
	}
	for h := 8; h < 23; h++ {
		start := fmt.Sprintf("%02d:00", h)
		s.PutTimeSlot(domain.TimeSlot{
			ID:        uuid.NewSHA1(seedNamespace, []byte("slot:"+start)),
			StartTime: start,
			EndTime:   fmt.Sprintf("%02d:00", h+1),
			Order:     h,
		})
	}
}
