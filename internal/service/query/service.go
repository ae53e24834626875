// Package query is the read path: the availability grid and booking/space
// lookups. Everything here is side-effect free and served through a short-TTL
// cache, so it may run with arbitrary concurrency and race harmlessly with
// admissions — a stale grid corrects itself on the next refresh.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ritams/smashit-sub000/internal/availability"
	"github.com/ritams/smashit-sub000/internal/domain"
	redisx "github.com/ritams/smashit-sub000/internal/redis"
	"github.com/ritams/smashit-sub000/internal/repository"
	postgresrepo "github.com/ritams/smashit-sub000/internal/repository/postgres"
	redisrepo "github.com/ritams/smashit-sub000/internal/repository/redis"
)

type Config struct {
	SpaceSummaryTTL time.Duration
	AvailabilityTTL time.Duration
}

type Service struct {
	store *postgresrepo.Store
	cache *redisrepo.Cache
	cfg   Config
}

func New(store *postgresrepo.Store, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.SpaceSummaryTTL <= 0 {
		cfg.SpaceSummaryTTL = 60 * time.Second
	}

	if cfg.AvailabilityTTL <= 0 {
		cfg.AvailabilityTTL = 15 * time.Second
	}

	return &Service{
		store: store,
		cache: cache,
		cfg:   cfg,
	}
}

// GetSpace retrieves an active space with its rules and slots, cached.
func (s *Service) GetSpace(ctx context.Context, spaceID int64) (*domain.SpaceWithRules, error) {
	const op = "service.query.GetSpace"

	key := redisx.KeySpaceSummary(spaceID)

	out, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		key,
		s.cfg.SpaceSummaryTTL,
		func(ctx context.Context) (domain.SpaceWithRules, error) {
			return s.loadSpace(ctx, spaceID)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &out, nil
}

func (s *Service) loadSpace(ctx context.Context, spaceID int64) (domain.SpaceWithRules, error) {
	spaces := s.store.Spaces()

	sp, err := spaces.ActiveSpace(ctx, spaceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.SpaceWithRules{}, ErrSpaceNotFound
		}

		return domain.SpaceWithRules{}, err
	}

	r, err := spaces.Rules(ctx, spaceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.SpaceWithRules{}, ErrSpaceNotFound
		}

		return domain.SpaceWithRules{}, err
	}

	slots, err := spaces.ListSlots(ctx, spaceID)
	if err != nil {
		return domain.SpaceWithRules{}, err
	}

	return domain.SpaceWithRules{Space: *sp, Rules: *r, Slots: slots}, nil
}

// Availability computes the slot-window grid for one space and one calendar
// day. An empty tz uses the space's own timezone. Grids are cached per
// (space, date) and invalidated when a booking decision commits.
func (s *Service) Availability(ctx context.Context, spaceID int64, date availability.Date, tz string) ([]domain.SlotWindow, error) {
	const op = "service.query.Availability"

	sp, err := s.GetSpace(ctx, spaceID)
	if err != nil {
		return nil, err
	}

	loc := sp.Space.Location()
	if tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, ErrBadTimezone)
		}
	}

	// Only the space's own timezone is cached; that key is what admissions
	// invalidate. A grid in a foreign timezone is computed fresh.
	if loc.String() != sp.Space.Location().String() {
		grid, err := s.computeGrid(ctx, sp, date, loc)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		return grid, nil
	}

	key := redisx.KeySpaceAvailability(spaceID, date.String())

	grid, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		key,
		s.cfg.AvailabilityTTL,
		func(ctx context.Context) ([]domain.SlotWindow, error) {
			return s.computeGrid(ctx, sp, date, loc)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return grid, nil
}

func (s *Service) computeGrid(ctx context.Context, sp *domain.SpaceWithRules, date availability.Date, loc *time.Location) ([]domain.SlotWindow, error) {
	midnight := time.Date(date.Year, date.Month, date.Day, 0, 0, 0, 0, loc)
	// fetch a generous window so midnight-spanning hours are covered
	bookings, err := s.store.Bookings().ConfirmedForDay(ctx, sp.Space.ID, midnight, midnight.AddDate(0, 0, 2))
	if err != nil {
		return nil, err
	}

	return availability.Grid(sp.Rules, sp.Space.Capacity, date, loc, bookings), nil
}

// GetBooking retrieves a booking by id scoped to an org. Not cached:
// booking state is what clients re-query after an unknown-outcome timeout.
func (s *Service) GetBooking(ctx context.Context, orgID int64, id uuid.UUID) (*domain.Booking, error) {
	const op = "service.query.GetBooking"

	b, err := s.store.Bookings().Get(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrBookingNotFound)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return b, nil
}
