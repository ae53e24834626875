package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventBookingCreated   EventType = "BOOKING_CREATED"
	EventBookingCancelled EventType = "BOOKING_CANCELLED"
	EventSpaceUpdated     EventType = "SPACE_UPDATED"
)

// BookingEvent is the payload broadcast to org subscribers after a booking
// decision or a space mutation commits.
type BookingEvent struct {
	Type      EventType `json:"type"`
	OrgID     int64     `json:"org_id"`
	SpaceID   int64     `json:"space_id"`
	Date      string    `json:"date,omitempty"` // YYYY-MM-DD in the space's timezone
	BookingID uuid.UUID `json:"booking_id,omitempty"`
	UserID    int64     `json:"user_id,omitempty"`
	StartsAt  time.Time `json:"starts_at,omitempty"`
	EndsAt    time.Time `json:"ends_at,omitempty"`
	TsUnix    int64     `json:"ts_unix"`
}
