// Package availability derives the slot-window grid for one space and one
// calendar day. The computation is pure and side-effect free: the same rules,
// bookings and date always produce the same grid, so it is safe to rerun and
// to race with concurrent admissions.
package availability

import (
	"time"

	"github.com/ritams/smashit-sub000/internal/conflict"
	"github.com/ritams/smashit-sub000/internal/domain"
)

// Date is a calendar day with no time-of-day component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}

	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

func (d Date) String() string {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
}

// Grid walks the space's operating window for the given day in steps of the
// slot duration and reports per-window occupancy.
//
// The day starts at local midnight in loc. Close earlier than open means the
// window closes on the next day; rules spanning midnight are supported here
// even though admission validation rejects them. A trailing partial step is
// dropped. A window is available while fewer confirmed bookings intersect it
// than the space has slots; intersection is half-open, touching boundaries do
// not count.
func Grid(r domain.BookingRules, capacity int, date Date, loc *time.Location, bookings []domain.Booking) []domain.SlotWindow {
	if r.SlotDurationMin <= 0 {
		return nil
	}

	midnight := time.Date(date.Year, date.Month, date.Day, 0, 0, 0, 0, loc)

	dayStart := midnight.Add(time.Duration(r.OpenMinutes) * time.Minute)
	closeMin := r.CloseMinutes
	if closeMin < r.OpenMinutes {
		closeMin += 24 * 60
	}
	dayEnd := midnight.Add(time.Duration(closeMin) * time.Minute)

	step := time.Duration(r.SlotDurationMin) * time.Minute

	confirmed := make([]domain.Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.Status == domain.BookingConfirmed {
			confirmed = append(confirmed, b)
		}
	}

	if capacity < 1 {
		capacity = 1
	}

	var windows []domain.SlotWindow
	for ws := dayStart; !ws.Add(step).After(dayEnd); ws = ws.Add(step) {
		we := ws.Add(step)

		var hits []domain.WindowBooking
		for _, b := range confirmed {
			if conflict.Overlaps(b.StartsAt, b.EndsAt, ws, we) {
				hits = append(hits, domain.WindowBooking{
					ID:       b.ID,
					UserID:   b.UserID,
					UserName: b.UserName,
					StartsAt: b.StartsAt,
					EndsAt:   b.EndsAt,
					SlotID:   b.SlotID,
				})
			}
		}

		windows = append(windows, domain.SlotWindow{
			StartTime: ws.UTC(),
			EndTime:   we.UTC(),
			Available: len(hits) < capacity,
			Bookings:  hits,
		})
	}

	return windows
}
