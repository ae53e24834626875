package conflict

import (
	"testing"
	"time"

	"github.com/ritams/smashit-sub000/internal/domain"
)

func slot(id int64) *int64 { return &id }

func at(h, m int) time.Time {
	return time.Date(2025, time.June, 2, h, m, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd time.Time
		want                       bool
	}{
		{"identical", at(10, 0), at(11, 0), at(10, 0), at(11, 0), true},
		{"partial", at(10, 0), at(11, 0), at(10, 30), at(11, 30), true},
		{"contained", at(10, 0), at(12, 0), at(10, 30), at(11, 0), true},
		{"back to back", at(10, 0), at(11, 0), at(11, 0), at(12, 0), false},
		{"back to back reversed", at(11, 0), at(12, 0), at(10, 0), at(11, 0), false},
		{"disjoint", at(10, 0), at(11, 0), at(13, 0), at(14, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd); got != tt.want {
				t.Fatalf("Overlaps = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHasConflict(t *testing.T) {
	confirmed := func(slotID *int64) domain.Booking {
		return domain.Booking{
			Status:   domain.BookingConfirmed,
			SlotID:   slotID,
			StartsAt: at(10, 0),
			EndsAt:   at(11, 0),
		}
	}

	tests := []struct {
		name        string
		candidate   *int64
		overlapping []domain.Booking
		want        bool
	}{
		{"no overlapping bookings", slot(1), nil, false},
		{"same slot", slot(1), []domain.Booking{confirmed(slot(1))}, true},
		{"different slot", slot(1), []domain.Booking{confirmed(slot(2))}, false},
		{"candidate holds whole space", nil, []domain.Booking{confirmed(slot(2))}, true},
		{"existing holds whole space", slot(1), []domain.Booking{confirmed(nil)}, true},
		{"both whole space", nil, []domain.Booking{confirmed(nil)}, true},
		{
			"cancelled ignored",
			slot(1),
			[]domain.Booking{{Status: domain.BookingCancelled, SlotID: slot(1), StartsAt: at(10, 0), EndsAt: at(11, 0)}},
			false,
		},
		{
			"first matching slot wins",
			slot(2),
			[]domain.Booking{confirmed(slot(1)), confirmed(slot(2))},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HasConflict(tt.candidate, tt.overlapping)
			if (got != nil) != tt.want {
				t.Fatalf("HasConflict = %v, want conflict=%v", got, tt.want)
			}
		})
	}
}

func TestFilterOverlapping(t *testing.T) {
	bookings := []domain.Booking{
		{StartsAt: at(9, 0), EndsAt: at(10, 0)},
		{StartsAt: at(10, 0), EndsAt: at(11, 0)},
		{StartsAt: at(11, 0), EndsAt: at(12, 0)},
	}

	got := FilterOverlapping(bookings, at(10, 30), at(11, 30))
	if len(got) != 2 {
		t.Fatalf("expected 2 overlapping, got %d", len(got))
	}
	if !got[0].StartsAt.Equal(at(10, 0)) || !got[1].StartsAt.Equal(at(11, 0)) {
		t.Fatalf("unexpected bookings: %v", got)
	}

	if out := FilterOverlapping(bookings, at(12, 0), at(13, 0)); out != nil {
		t.Fatalf("expected no overlaps, got %v", out)
	}
}
