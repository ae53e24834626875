// Package admission decides booking requests. A request is validated against
// the space's rules, resolved to a canonical slot, and then committed or
// rejected inside a per-space serialized critical section, so two requests
// racing for the same slot and interval can never both succeed.
package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ritams/smashit-sub000/internal/dispatch"
	"github.com/ritams/smashit-sub000/internal/domain"
	"github.com/ritams/smashit-sub000/internal/repository"
	"github.com/ritams/smashit-sub000/internal/rules"
)

// Directory is the org/space lookup surface admission consumes.
// *postgres.SpaceRepo satisfies it.
type Directory interface {
	ActiveSpace(ctx context.Context, spaceID int64) (*domain.Space, error)
	Rules(ctx context.Context, spaceID int64) (*domain.BookingRules, error)
	SpaceIDsOfType(ctx context.Context, orgID int64, spaceType string) ([]int64, error)
	SlotByID(ctx context.Context, slotID int64) (*domain.Slot, error)
	SlotByNumber(ctx context.Context, spaceID int64, number int) (*domain.Slot, error)
}

// Bookings is the booking persistence surface. InsertConfirmed must be
// atomic: conflict check and insert in one transaction, all or nothing.
// *postgres.BookingRepo satisfies it.
type Bookings interface {
	InsertConfirmed(ctx context.Context, b *domain.Booking) (*domain.Booking, error)
	Get(ctx context.Context, orgID int64, id uuid.UUID) (*domain.Booking, error)
	MarkCancelled(ctx context.Context, orgID int64, id uuid.UUID, now time.Time) (*domain.Booking, error)
	UserCountOnDay(ctx context.Context, userID int64, spaceIDs []int64, dayStart, dayEnd time.Time) (int, error)
	SpaceCountOnDay(ctx context.Context, spaceID int64, dayStart, dayEnd time.Time) (int, error)
	UserActiveCount(ctx context.Context, userID, spaceID int64, now time.Time) (int, error)
}

// Publisher is the fire-and-forget notification sink.
type Publisher interface {
	Publish(ctx context.Context, ev domain.BookingEvent) error
}

// Invalidator drops cached read-path entries after a committed decision.
type Invalidator interface {
	InvalidateSpace(ctx context.Context, spaceID int64, dates ...string) error
}

type Service struct {
	dir      Directory
	bookings Bookings
	pub      Publisher
	cache    Invalidator
	disp     *dispatch.Dispatcher
	logger   *slog.Logger
	now      func() time.Time
}

func New(
	dir Directory,
	bookings Bookings,
	pub Publisher,
	cache Invalidator,
	disp *dispatch.Dispatcher,
	logger *slog.Logger,
) *Service {
	return &Service{
		dir:      dir,
		bookings: bookings,
		pub:      pub,
		cache:    cache,
		disp:     disp,
		logger:   logger,
		now:      time.Now,
	}
}

type AdmitRequest struct {
	SpaceID       int64
	UserID        int64
	UserName      string
	Start         time.Time
	End           time.Time
	SlotID        *int64
	SlotIndex     *int
	Participants  []int64
	Notes         string
	AdminOverride bool
}

// Admit validates, resolves and commits a booking request.
//
// Rule checks run against committed state before the critical section; the
// caps they enforce are soft limits and a small validation-to-commit gap is
// accepted. The overlap check is the hard invariant and runs inside the
// per-space critical section together with the insert. Admin override skips
// the rule checks but never the overlap check.
//
// Returns the confirmed booking, a *Rejection, or dispatch.ErrWaitTimeout
// when the caller's bounded wait elapsed (outcome unknown, the request may
// still commit server-side).
func (s *Service) Admit(ctx context.Context, req AdmitRequest) (*domain.Booking, error) {
	const op = "service.admission.Admit"

	if !req.End.After(req.Start) {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidInterval)
	}

	space, err := s.dir.ActiveSpace(ctx, req.SpaceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrSpaceNotFound)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	spaceRules, err := s.dir.Rules(ctx, space.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrSpaceNotFound)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if !req.AdminOverride {
		if err := s.checkRules(ctx, space, spaceRules, req); err != nil {
			return nil, err
		}
	}

	slotID, err := s.resolveSlot(ctx, space, req)
	if err != nil {
		return nil, err
	}

	candidate := &domain.Booking{
		OrgID:        space.OrgID,
		SpaceID:      space.ID,
		SlotID:       slotID,
		SlotIndex:    req.SlotIndex,
		UserID:       req.UserID,
		UserName:     req.UserName,
		StartsAt:     req.Start.UTC(),
		EndsAt:       req.End.UTC(),
		Status:       domain.BookingPending,
		Participants: req.Participants,
		Notes:        req.Notes,
	}

	booking, err := dispatch.Do(ctx, s.disp, space.ID, func(ctx context.Context) (*domain.Booking, error) {
		b, err := s.bookings.InsertConfirmed(ctx, candidate)
		if err != nil {
			return nil, err
		}

		s.afterDecision(ctx, space, domain.BookingEvent{
			Type:      domain.EventBookingCreated,
			OrgID:     space.OrgID,
			SpaceID:   space.ID,
			BookingID: b.ID,
			UserID:    b.UserID,
			StartsAt:  b.StartsAt,
			EndsAt:    b.EndsAt,
		}, b)

		return b, nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrSlotTaken) {
			return nil, fmt.Errorf("%s:%w", op, ErrSlotTaken)
		}

		if errors.Is(err, dispatch.ErrWaitTimeout) || errors.Is(err, dispatch.ErrQueueFull) {
			return nil, fmt.Errorf("%s:%w", op, err)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return booking, nil
}

// checkRules gathers the cap counts the policy actually needs and runs the
// pure validator.
func (s *Service) checkRules(ctx context.Context, space *domain.Space, r *domain.BookingRules, req AdmitRequest) error {
	const op = "service.admission.checkRules"

	loc := space.Location()
	now := s.now()

	var caps rules.Caps

	dayStart, dayEnd := rules.DayBounds(req.Start.In(loc))

	if r.MaxPerUserPerDay != nil {
		spaceIDs, err := s.dir.SpaceIDsOfType(ctx, space.OrgID, space.SpaceType)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		n, err := s.bookings.UserCountOnDay(ctx, req.UserID, spaceIDs, dayStart, dayEnd)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		caps.UserSameDay = n
	}

	if r.MaxPerSpacePerDay != nil {
		n, err := s.bookings.SpaceCountOnDay(ctx, space.ID, dayStart, dayEnd)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		caps.SpaceSameDay = n
	}

	if r.MaxActivePerUser != nil {
		n, err := s.bookings.UserActiveCount(ctx, req.UserID, space.ID, now)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		caps.UserActive = n
	}

	if v := rules.Validate(*r, rules.Candidate{Start: req.Start, End: req.End}, now, loc, caps); v != nil {
		return fmt.Errorf("%s:%w", op, fromViolation(v))
	}

	return nil
}

// resolveSlot collapses the request's slot reference or legacy zero-based
// index to a canonical slot id. A space without matching slots proceeds
// unresolved and is treated as a single whole-space slot by the conflict
// predicate.
func (s *Service) resolveSlot(ctx context.Context, space *domain.Space, req AdmitRequest) (*int64, error) {
	const op = "service.admission.resolveSlot"

	if req.SlotID != nil {
		sl, err := s.dir.SlotByID(ctx, *req.SlotID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%s:%w", op, ErrSlotNotFound)
			}

			return nil, fmt.Errorf("%s:%w", op, err)
		}

		if sl.SpaceID != space.ID {
			return nil, fmt.Errorf("%s:%w", op, ErrSlotMismatch)
		}

		return &sl.ID, nil
	}

	if req.SlotIndex != nil {
		sl, err := s.dir.SlotByNumber(ctx, space.ID, *req.SlotIndex+1)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, nil
			}

			return nil, fmt.Errorf("%s:%w", op, err)
		}

		return &sl.ID, nil
	}

	return nil, nil
}

type CancelRequest struct {
	OrgID         int64
	BookingID     uuid.UUID
	CallerUserID  int64
	CallerIsAdmin bool
}

// Cancel marks a booking cancelled. Only the owner or an org admin may
// cancel; cancelled rows are kept for audit and stop counting toward
// conflicts and availability.
func (s *Service) Cancel(ctx context.Context, req CancelRequest) (*domain.Booking, error) {
	const op = "service.admission.Cancel"

	b, err := s.bookings.Get(ctx, req.OrgID, req.BookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrBookingNotFound)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if b.UserID != req.CallerUserID && !req.CallerIsAdmin {
		return nil, fmt.Errorf("%s:%w", op, ErrForbidden)
	}

	if b.Status == domain.BookingCancelled {
		return nil, fmt.Errorf("%s:%w", op, ErrAlreadyCancelled)
	}

	cancelled, err := s.bookings.MarkCancelled(ctx, req.OrgID, req.BookingID, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrCancelled) {
			return nil, fmt.Errorf("%s:%w", op, ErrAlreadyCancelled)
		}

		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrBookingNotFound)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	space, err := s.dir.ActiveSpace(ctx, cancelled.SpaceID)
	if err != nil {
		// the space may have been deactivated since; the cancellation stands
		space = &domain.Space{ID: cancelled.SpaceID, OrgID: cancelled.OrgID}
	}

	s.afterDecision(ctx, space, domain.BookingEvent{
		Type:      domain.EventBookingCancelled,
		OrgID:     cancelled.OrgID,
		SpaceID:   cancelled.SpaceID,
		BookingID: cancelled.ID,
		UserID:    cancelled.UserID,
		StartsAt:  cancelled.StartsAt,
		EndsAt:    cancelled.EndsAt,
	}, cancelled)

	return cancelled, nil
}

// afterDecision invalidates the read-path cache and publishes the event.
// Both are best effort: a committed decision is never unwound because a
// side effect failed.
func (s *Service) afterDecision(ctx context.Context, space *domain.Space, ev domain.BookingEvent, b *domain.Booking) {
	loc := space.Location()
	dates := localDates(b.StartsAt, b.EndsAt, loc)
	ev.Date = dates[0]

	if s.cache != nil {
		if err := s.cache.InvalidateSpace(ctx, space.ID, dates...); err != nil {
			s.logger.Warn("cache invalidation failed",
				"space_id", space.ID, "booking_id", b.ID, "error", err)
		}
	}

	if s.pub != nil {
		if err := s.pub.Publish(ctx, ev); err != nil {
			s.logger.Warn("event publish failed",
				"space_id", space.ID, "booking_id", b.ID, "type", ev.Type, "error", err)
		}
	}
}

// localDates lists the local calendar dates a booking touches, usually one.
func localDates(start, end time.Time, loc *time.Location) []string {
	first := start.In(loc).Format("2006-01-02")
	last := end.In(loc).Add(-time.Nanosecond).Format("2006-01-02")
	if first == last {
		return []string{first}
	}

	return []string{first, last}
}
