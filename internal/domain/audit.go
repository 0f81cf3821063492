package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditRecord is one booking or fine transition in the audit trail.
type AuditRecord struct {
	Action     string                 `json:"action"`
	CustomerID uuid.UUID              `json:"user_id"`
	BookingID  *uuid.UUID             `json:"booking_id,omitempty"`
	FineID     *uuid.UUID             `json:"fine_id,omitempty"`
	Status     string                 `json:"status,omitempty"`
	Amount     int64                  `json:"amount"`
	At         time.Time              `json:"at"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// NewAuditRecord lifts the booking_id, fine_id, status and amount keys of data into
// typed fields. The rest of data is kept as is.
func NewAuditRecord(action string, customerID uuid.UUID, data map[string]interface{}, at time.Time) AuditRecord {
	rec := AuditRecord{
		Action:     action,
		CustomerID: customerID,
		BookingID:  uuidField(data, "booking_id"),
		FineID:     uuidField(data, "fine_id"),
		At:         at.UTC(),
	}
	if s, ok := data["status"].(string); ok {
		rec.Status = s
	}
	if rec.FineID != nil {
		rec.Amount = int64Field(data, "amount")
	} else {
		rec.Amount = int64Field(data, "total_amount")
	}

	rest := make(map[string]interface{}, len(data))
	for k, v := range data {
		switch k {
		case "booking_id", "fine_id", "status":
			continue
		}
		rest[k] = v
	}
	if len(rest) > 0 {
		rec.Data = rest
	}
	return rec
}

func uuidField(data map[string]interface{}, key string) *uuid.UUID {
	var id uuid.UUID
	switch v := data[key].(type) {
	case uuid.UUID:
		id = v
	case string:
		parsed, err := uuid.Parse(v)
		if err != nil {
			return nil
		}
		id = parsed
	default:
		return nil
	}
	return &id
}

func int64Field(data map[string]interface{}, key string) int64 {
	switch v := data[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}
