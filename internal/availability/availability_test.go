package availability

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ritams/smashit-sub000/internal/domain"
)

func dayRules(openMin, closeMin, slotMin int) domain.BookingRules {
	return domain.BookingRules{
		SlotDurationMin: slotMin,
		OpenMinutes:     openMin,
		CloseMinutes:    closeMin,
	}
}

func confirmed(start, end time.Time) domain.Booking {
	return domain.Booking{
		ID:       uuid.New(),
		Status:   domain.BookingConfirmed,
		StartsAt: start,
		EndsAt:   end,
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-06-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Year != 2025 || d.Month != time.June || d.Day != 2 {
		t.Fatalf("wrong date: %+v", d)
	}
	if d.String() != "2025-06-02" {
		t.Fatalf("round trip mismatch: %s", d.String())
	}

	if _, err := ParseDate("02-06-2025"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestGridWalk(t *testing.T) {
	r := dayRules(9*60, 21*60, 60)
	date := Date{Year: 2025, Month: time.June, Day: 2}

	windows := Grid(r, 1, date, time.UTC, nil)
	if len(windows) != 12 {
		t.Fatalf("expected 12 windows, got %d", len(windows))
	}

	first := windows[0]
	if !first.StartTime.Equal(time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("first window starts at %v", first.StartTime)
	}
	last := windows[len(windows)-1]
	if !last.EndTime.Equal(time.Date(2025, time.June, 2, 21, 0, 0, 0, time.UTC)) {
		t.Fatalf("last window ends at %v", last.EndTime)
	}
	for _, w := range windows {
		if !w.Available {
			t.Fatalf("empty day should be fully available, window %v is not", w.StartTime)
		}
	}
}

func TestGridDropsPartialTail(t *testing.T) {
	// 09:00-10:30 with 60-minute slots: only 09:00-10:00 fits
	r := dayRules(9*60, 10*60+30, 60)
	date := Date{Year: 2025, Month: time.June, Day: 2}

	windows := Grid(r, 1, date, time.UTC, nil)
	if len(windows) != 1 {
		t.Fatalf("expected 1 window, got %d", len(windows))
	}
	if !windows[0].EndTime.Equal(time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("window ends at %v", windows[0].EndTime)
	}
}

func TestGridCloseBeforeOpenSpansMidnight(t *testing.T) {
	// 22:00 to 02:00 next day
	r := dayRules(22*60, 2*60, 60)
	date := Date{Year: 2025, Month: time.June, Day: 2}

	windows := Grid(r, 1, date, time.UTC, nil)
	if len(windows) != 4 {
		t.Fatalf("expected 4 windows, got %d", len(windows))
	}
	if !windows[3].EndTime.Equal(time.Date(2025, time.June, 3, 2, 0, 0, 0, time.UTC)) {
		t.Fatalf("last window ends at %v", windows[3].EndTime)
	}
}

func TestGridOccupancy(t *testing.T) {
	r := dayRules(9*60, 12*60, 60)
	date := Date{Year: 2025, Month: time.June, Day: 2}

	b := confirmed(
		time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC),
		time.Date(2025, time.June, 2, 11, 0, 0, 0, time.UTC),
	)
	windows := Grid(r, 1, date, time.UTC, []domain.Booking{b})

	if len(windows) != 3 {
		t.Fatalf("expected 3 windows, got %d", len(windows))
	}
	if !windows[0].Available || windows[1].Available || !windows[2].Available {
		t.Fatalf("expected availability [true false true], got [%v %v %v]",
			windows[0].Available, windows[1].Available, windows[2].Available)
	}
	if len(windows[1].Bookings) != 1 || windows[1].Bookings[0].ID != b.ID {
		t.Fatalf("busy window should carry the booking, got %v", windows[1].Bookings)
	}

	// touching boundaries do not occupy the neighbor windows
	if len(windows[0].Bookings) != 0 || len(windows[2].Bookings) != 0 {
		t.Fatal("half-open intersection leaked into adjacent windows")
	}
}

func TestGridCapacity(t *testing.T) {
	r := dayRules(9*60, 11*60, 60)
	date := Date{Year: 2025, Month: time.June, Day: 2}

	ten := time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC)
	eleven := ten.Add(time.Hour)
	bookings := []domain.Booking{confirmed(ten, eleven)}

	windows := Grid(r, 2, date, time.UTC, bookings)
	if !windows[1].Available {
		t.Fatal("one booking out of two slots should leave the window available")
	}

	bookings = append(bookings, confirmed(ten, eleven))
	windows = Grid(r, 2, date, time.UTC, bookings)
	if windows[1].Available {
		t.Fatal("window at capacity should be unavailable")
	}
}

func TestGridIgnoresCancelled(t *testing.T) {
	r := dayRules(9*60, 11*60, 60)
	date := Date{Year: 2025, Month: time.June, Day: 2}

	b := domain.Booking{
		ID:       uuid.New(),
		Status:   domain.BookingCancelled,
		StartsAt: time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC),
	}
	windows := Grid(r, 1, date, time.UTC, []domain.Booking{b})
	if !windows[0].Available || len(windows[0].Bookings) != 0 {
		t.Fatal("cancelled bookings must not occupy windows")
	}
}

func TestGridDeterministic(t *testing.T) {
	r := dayRules(9*60, 21*60, 30)
	date := Date{Year: 2025, Month: time.June, Day: 2}
	bookings := []domain.Booking{
		confirmed(
			time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC),
			time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC),
		),
	}

	a := Grid(r, 1, date, time.UTC, bookings)
	b := Grid(r, 1, date, time.UTC, bookings)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !a[i].StartTime.Equal(b[i].StartTime) || a[i].Available != b[i].Available {
			t.Fatalf("window %d differs between runs", i)
		}
	}
}

func TestGridZeroDuration(t *testing.T) {
	r := dayRules(9*60, 21*60, 0)
	if out := Grid(r, 1, Date{Year: 2025, Month: time.June, Day: 2}, time.UTC, nil); out != nil {
		t.Fatalf("expected nil grid, got %d windows", len(out))
	}
}
