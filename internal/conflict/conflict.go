// Package conflict decides whether a candidate booking collides with the
// committed state of a space. Slot identity is canonical here: requests are
// resolved to a concrete slot id before admission, and a booking without a
// resolved slot occupies the whole space.
package conflict

import (
	"time"

	"github.com/ritams/smashit-sub000/internal/domain"
)

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
// Intervals are half-open: touching boundaries do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// HasConflict evaluates the candidate against bookings already known to
// overlap it in time. A conflict exists when either side holds the whole
// space (no resolved slot) or both sides resolved to the same slot.
//
// Must run inside the same atomic unit as the insert; the committed state it
// sees must not change before the candidate commits.
func HasConflict(candidateSlotID *int64, overlapping []domain.Booking) *domain.Booking {
	for i := range overlapping {
		b := &overlapping[i]
		if b.Status != domain.BookingConfirmed {
			continue
		}

		if candidateSlotID == nil || b.SlotID == nil || *b.SlotID == *candidateSlotID {
			return b
		}
	}

	return nil
}

// FilterOverlapping returns the bookings whose interval intersects
// [start, end) under half-open semantics.
func FilterOverlapping(bookings []domain.Booking, start, end time.Time) []domain.Booking {
	var out []domain.Booking
	for _, b := range bookings {
		if Overlaps(b.StartsAt, b.EndsAt, start, end) {
			out = append(out, b)
		}
	}

	return out
}
