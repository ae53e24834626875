// Package rules validates a candidate booking against a space's booking
// policy. Validation is pure: cap counts are observed by the caller and
// passed in, so the same inputs always produce the same verdict.
package rules

import (
	"fmt"
	"time"

	"github.com/ritams/smashit-sub000/internal/domain"
)

type Code string

const (
	CodeTooFarAhead   Code = "TOO_FAR_AHEAD"
	CodeTooLong       Code = "TOO_LONG"
	CodeOutsideHours  Code = "OUTSIDE_HOURS"
	CodeUserDailyCap  Code = "USER_DAILY_CAP"
	CodeSpaceDailyCap Code = "SPACE_DAILY_CAP"
	CodeUserActiveCap Code = "USER_ACTIVE_CAP"
)

// Violation reports the first rule a candidate breaks.
type Violation struct {
	Code   Code
	Reason string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Code, v.Reason)
}

type Candidate struct {
	Start time.Time
	End   time.Time
}

// Caps carries the committed-state counts the cap checks compare against.
// A count is only consulted when the matching cap is set on the rules.
type Caps struct {
	UserSameDay  int
	SpaceSameDay int
	UserActive   int
}

// Validate runs the rule checks in order and returns the first violation,
// or nil when the candidate passes. Day-boundary arithmetic uses loc, the
// space's local timezone. Admin override is handled by the caller: an
// overridden request never reaches Validate.
func Validate(r domain.BookingRules, c Candidate, now time.Time, loc *time.Location, caps Caps) *Violation {
	if v := checkAdvance(r, c, now, loc); v != nil {
		return v
	}

	if v := checkDuration(r, c); v != nil {
		return v
	}

	if v := checkHours(r, c, loc); v != nil {
		return v
	}

	if r.MaxPerUserPerDay != nil && caps.UserSameDay >= *r.MaxPerUserPerDay {
		return &Violation{
			Code:   CodeUserDailyCap,
			Reason: fmt.Sprintf("user already has %d bookings that day (limit %d)", caps.UserSameDay, *r.MaxPerUserPerDay),
		}
	}

	if r.MaxPerSpacePerDay != nil && caps.SpaceSameDay >= *r.MaxPerSpacePerDay {
		return &Violation{
			Code:   CodeSpaceDailyCap,
			Reason: fmt.Sprintf("space already has %d bookings that day (limit %d)", caps.SpaceSameDay, *r.MaxPerSpacePerDay),
		}
	}

	if r.MaxActivePerUser != nil && caps.UserActive >= *r.MaxActivePerUser {
		return &Violation{
			Code:   CodeUserActiveCap,
			Reason: fmt.Sprintf("user already has %d active bookings (limit %d)", caps.UserActive, *r.MaxActivePerUser),
		}
	}

	return nil
}

func checkAdvance(r domain.BookingRules, c Candidate, now time.Time, loc *time.Location) *Violation {
	latest := EndOfDay(now.In(loc).AddDate(0, 0, r.MaxAdvanceDays))
	if c.Start.After(latest) {
		return &Violation{
			Code:   CodeTooFarAhead,
			Reason: fmt.Sprintf("start is beyond the %d-day booking window", r.MaxAdvanceDays),
		}
	}

	return nil
}

func checkDuration(r domain.BookingRules, c Candidate) *Violation {
	mins := int(c.End.Sub(c.Start) / time.Minute)
	if mins > r.MaxDurationMin {
		return &Violation{
			Code:   CodeTooLong,
			Reason: fmt.Sprintf("duration %dm exceeds the %dm maximum", mins, r.MaxDurationMin),
		}
	}

	return nil
}

// checkHours compares minutes-of-day only. A booking that crosses local
// midnight therefore cannot satisfy open <= start <= end <= close.
func checkHours(r domain.BookingRules, c Candidate, loc *time.Location) *Violation {
	startMin := minutesOfDay(c.Start.In(loc))
	endMin := minutesOfDay(c.End.In(loc))

	if startMin < r.OpenMinutes || endMin > r.CloseMinutes || endMin < startMin {
		return &Violation{
			Code:   CodeOutsideHours,
			Reason: fmt.Sprintf("booking must fall within %s-%s", fmtMinutes(r.OpenMinutes), fmtMinutes(r.CloseMinutes)),
		}
	}

	return nil
}

// EndOfDay returns the last instant of t's calendar day in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location()).
		AddDate(0, 0, 1).
		Add(-time.Nanosecond)
}

// DayBounds returns the half-open [midnight, next midnight) interval that
// contains t in t's location.
func DayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

func minutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func fmtMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
