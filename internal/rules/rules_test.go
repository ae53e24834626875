package rules

import (
	"testing"
	"time"

	"github.com/ritams/smashit-sub000/internal/domain"
)

func intp(n int) *int { return &n }

func baseRules() domain.BookingRules {
	return domain.BookingRules{
		SlotDurationMin: 60,
		OpenMinutes:     9 * 60,  // 09:00
		CloseMinutes:    21 * 60, // 21:00
		MaxAdvanceDays:  7,
		MaxDurationMin:  120,
	}
}

func TestValidateOrder(t *testing.T) {
	loc := time.UTC
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, loc)

	tests := []struct {
		name  string
		rules func() domain.BookingRules
		start time.Time
		end   time.Time
		caps  Caps
		want  Code
	}{
		{
			name:  "within window succeeds",
			rules: baseRules,
			start: time.Date(2025, time.June, 2, 10, 0, 0, 0, loc),
			end:   time.Date(2025, time.June, 2, 11, 0, 0, 0, loc),
		},
		{
			name: "last minute of advance window succeeds",
			rules: func() domain.BookingRules {
				r := baseRules()
				r.OpenMinutes = 0
				r.CloseMinutes = 24 * 60
				return r
			},
			start: time.Date(2025, time.June, 8, 23, 59, 0, 0, loc),
			end:   time.Date(2025, time.June, 8, 23, 59, 30, 0, loc),
		},
		{
			name:  "past end of day seven fails",
			rules: baseRules,
			start: time.Date(2025, time.June, 9, 0, 1, 0, 0, loc),
			end:   time.Date(2025, time.June, 9, 1, 1, 0, 0, loc),
			want:  CodeTooFarAhead,
		},
		{
			name:  "too long",
			rules: baseRules,
			start: time.Date(2025, time.June, 2, 10, 0, 0, 0, loc),
			end:   time.Date(2025, time.June, 2, 12, 30, 0, 0, loc),
			want:  CodeTooLong,
		},
		{
			name:  "before opening",
			rules: baseRules,
			start: time.Date(2025, time.June, 2, 8, 0, 0, 0, loc),
			end:   time.Date(2025, time.June, 2, 9, 0, 0, 0, loc),
			want:  CodeOutsideHours,
		},
		{
			name:  "past closing",
			rules: baseRules,
			start: time.Date(2025, time.June, 2, 20, 30, 0, 0, loc),
			end:   time.Date(2025, time.June, 2, 21, 30, 0, 0, loc),
			want:  CodeOutsideHours,
		},
		{
			name:  "ends exactly at close succeeds",
			rules: baseRules,
			start: time.Date(2025, time.June, 2, 20, 0, 0, 0, loc),
			end:   time.Date(2025, time.June, 2, 21, 0, 0, 0, loc),
		},
		{
			name: "crossing midnight rejected",
			rules: func() domain.BookingRules {
				r := baseRules()
				r.CloseMinutes = 23 * 60
				r.MaxDurationMin = 300
				return r
			},
			start: time.Date(2025, time.June, 2, 22, 0, 0, 0, loc),
			end:   time.Date(2025, time.June, 3, 1, 0, 0, 0, loc),
			want:  CodeOutsideHours,
		},
		{
			name: "user daily cap reached",
			rules: func() domain.BookingRules {
				r := baseRules()
				r.MaxPerUserPerDay = intp(2)
				return r
			},
			start: time.Date(2025, time.June, 2, 10, 0, 0, 0, loc),
			end:   time.Date(2025, time.June, 2, 11, 0, 0, 0, loc),
			caps:  Caps{UserSameDay: 2},
			want:  CodeUserDailyCap,
		},
		{
			name: "user daily cap not reached",
			rules: func() domain.BookingRules {
				r := baseRules()
				r.MaxPerUserPerDay = intp(2)
				return r
			},
			start: time.Date(2025, time.June, 2, 10, 0, 0, 0, loc),
			end:   time.Date(2025, time.June, 2, 11, 0, 0, 0, loc),
			caps:  Caps{UserSameDay: 1},
		},
		{
			name: "space daily cap reached",
			rules: func() domain.BookingRules {
				r := baseRules()
				r.MaxPerSpacePerDay = intp(10)
				return r
			},
			start: time.Date(2025, time.June, 2, 10, 0, 0, 0, loc),
			end:   time.Date(2025, time.June, 2, 11, 0, 0, 0, loc),
			caps:  Caps{SpaceSameDay: 10},
			want:  CodeSpaceDailyCap,
		},
		{
			name: "user active cap reached",
			rules: func() domain.BookingRules {
				r := baseRules()
				r.MaxActivePerUser = intp(2)
				return r
			},
			start: time.Date(2025, time.June, 2, 10, 0, 0, 0, loc),
			end:   time.Date(2025, time.June, 2, 11, 0, 0, 0, loc),
			caps:  Caps{UserActive: 2},
			want:  CodeUserActiveCap,
		},
		{
			name:  "caps ignored when unset",
			rules: baseRules,
			start: time.Date(2025, time.June, 2, 10, 0, 0, 0, loc),
			end:   time.Date(2025, time.June, 2, 11, 0, 0, 0, loc),
			caps:  Caps{UserSameDay: 99, SpaceSameDay: 99, UserActive: 99},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Validate(tt.rules(), Candidate{Start: tt.start, End: tt.end}, now, loc, tt.caps)
			if tt.want == "" {
				if v != nil {
					t.Fatalf("expected pass, got %v", v)
				}
				return
			}
			if v == nil {
				t.Fatalf("expected %s, got pass", tt.want)
			}
			if v.Code != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, v.Code)
			}
		})
	}
}

func TestValidateLocalTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}

	r := baseRules()
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, loc)

	// 23:30 local on day seven is inside the advance window even though the
	// UTC instant is already June 9th
	start := time.Date(2025, time.June, 8, 23, 30, 0, 0, loc)
	v := Validate(r, Candidate{Start: start, End: start.Add(15 * time.Minute)}, now, loc, Caps{})
	if v != nil && v.Code == CodeTooFarAhead {
		t.Fatalf("advance window should use local day boundaries, got %v", v)
	}
}

func TestEndOfDay(t *testing.T) {
	loc := time.UTC
	got := EndOfDay(time.Date(2025, time.June, 1, 7, 30, 0, 0, loc))
	want := time.Date(2025, time.June, 2, 0, 0, 0, 0, loc).Add(-time.Nanosecond)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestDayBounds(t *testing.T) {
	loc := time.UTC
	start, end := DayBounds(time.Date(2025, time.June, 1, 15, 0, 0, 0, loc))
	if !start.Equal(time.Date(2025, time.June, 1, 0, 0, 0, 0, loc)) {
		t.Fatalf("wrong day start: %v", start)
	}
	if !end.Equal(time.Date(2025, time.June, 2, 0, 0, 0, 0, loc)) {
		t.Fatalf("wrong day end: %v", end)
	}
}
