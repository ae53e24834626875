package admission

import (
	"errors"
	"fmt"

	"github.com/ritams/smashit-sub000/internal/rules"
)

// Code identifies why a booking request was rejected. Rejections are
// expected outcomes, not faults: SLOT_ALREADY_BOOKED in particular is the
// normal result of losing a race for a popular slot.
type Code string

const (
	CodeSpaceNotFound    Code = "SPACE_NOT_FOUND"
	CodeSlotNotFound     Code = "SLOT_NOT_FOUND"
	CodeSlotMismatch     Code = "SLOT_MISMATCH"
	CodeTooFarAhead      Code = "TOO_FAR_AHEAD"
	CodeTooLong          Code = "TOO_LONG"
	CodeOutsideHours     Code = "OUTSIDE_HOURS"
	CodeUserDailyCap     Code = "USER_DAILY_CAP"
	CodeSpaceDailyCap    Code = "SPACE_DAILY_CAP"
	CodeUserActiveCap    Code = "USER_ACTIVE_CAP"
	CodeSlotTaken        Code = "SLOT_ALREADY_BOOKED"
	CodeForbidden        Code = "FORBIDDEN"
	CodeNotFound         Code = "NOT_FOUND"
	CodeAlreadyCancelled Code = "ALREADY_CANCELLED"
)

// Rejection is a typed terminal outcome of an admission or cancellation
// attempt. Nothing is persisted for a rejected request.
type Rejection struct {
	Code   Code
	Reason string
}

func (e *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

var (
	ErrSpaceNotFound    = &Rejection{Code: CodeSpaceNotFound, Reason: "space not found or inactive"}
	ErrSlotNotFound     = &Rejection{Code: CodeSlotNotFound, Reason: "slot not found"}
	ErrSlotMismatch     = &Rejection{Code: CodeSlotMismatch, Reason: "slot belongs to a different space"}
	ErrSlotTaken        = &Rejection{Code: CodeSlotTaken, Reason: "slot is already booked for this time"}
	ErrForbidden        = &Rejection{Code: CodeForbidden, Reason: "caller is not the owner or an org admin"}
	ErrBookingNotFound  = &Rejection{Code: CodeNotFound, Reason: "booking not found"}
	ErrAlreadyCancelled = &Rejection{Code: CodeAlreadyCancelled, Reason: "booking is already cancelled"}

	// ErrInvalidInterval flags malformed input before any rule runs.
	ErrInvalidInterval = errors.New("end time must be after start time")
)

func fromViolation(v *rules.Violation) *Rejection {
	codes := map[rules.Code]Code{
		rules.CodeTooFarAhead:   CodeTooFarAhead,
		rules.CodeTooLong:       CodeTooLong,
		rules.CodeOutsideHours:  CodeOutsideHours,
		rules.CodeUserDailyCap:  CodeUserDailyCap,
		rules.CodeSpaceDailyCap: CodeSpaceDailyCap,
		rules.CodeUserActiveCap: CodeUserActiveCap,
	}

	return &Rejection{Code: codes[v.Code], Reason: v.Reason}
}
