package domain

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

type Space struct {
	ID        int64
	OrgID     int64
	Name      string
	SpaceType string
	Capacity  int
	Timezone  string
	Active    bool
	CreatedAt time.Time
}

// Location resolves the space's IANA timezone, falling back to UTC when the
// name is empty or unknown.
func (s *Space) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}

	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}

	return loc
}

type Slot struct {
	ID      int64
	SpaceID int64
	Number  int
	Name    string
	Active  bool
}

// BookingRules is the per-space booking policy. OpenMinutes/CloseMinutes are
// minutes from local midnight. Nil caps mean unlimited.
type BookingRules struct {
	SpaceID           int64
	SlotDurationMin   int
	OpenMinutes       int
	CloseMinutes      int
	MaxAdvanceDays    int
	MaxDurationMin    int
	BufferMin         int // stored, not yet enforced
	MaxPerUserPerDay  *int
	MaxPerSpacePerDay *int
	MaxActivePerUser  *int
}

type Booking struct {
	ID           uuid.UUID
	OrgID        int64
	SpaceID      int64
	SlotID       *int64
	SlotIndex    *int
	UserID       int64
	UserName     string
	StartsAt     time.Time
	EndsAt       time.Time
	Status       BookingStatus
	Participants []int64
	Notes        string
	CreatedAt    time.Time
	CancelledAt  *time.Time
}

type SpaceWithRules struct {
	Space Space
	Rules BookingRules
	Slots []Slot
}

// SlotWindow is one cell of the availability grid.
type SlotWindow struct {
	StartTime time.Time       `json:"start_time"`
	EndTime   time.Time       `json:"end_time"`
	Available bool            `json:"available"`
	Bookings  []WindowBooking `json:"bookings"`
}

// WindowBooking is the public projection of a booking shown on the grid.
type WindowBooking struct {
	ID       uuid.UUID `json:"id"`
	UserID   int64     `json:"user_id"`
	UserName string    `json:"user_name"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	SlotID   *int64    `json:"slot_id,omitempty"`
}
