// Package directory manages the org/space catalog: creating spaces with
// their slots and rules, updating rules, and resizing capacity. These are
// thin data-management operations; the only invariant of note is that
// shrinking a space retires slots instead of deleting ones with history.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ritams/smashit-sub000/internal/domain"
	"github.com/ritams/smashit-sub000/internal/repository"
	postgresrepo "github.com/ritams/smashit-sub000/internal/repository/postgres"
	redisrepo "github.com/ritams/smashit-sub000/internal/repository/redis"
	redisx "github.com/ritams/smashit-sub000/internal/redis"
	"github.com/ritams/smashit-sub000/internal/uow"
)

type Service struct {
	store  *postgresrepo.Store
	cache  *redisrepo.Cache
	pubsub *redisx.EventsPubSub
	uow    *uow.UoW
	logger *slog.Logger
}

func New(
	store *postgresrepo.Store,
	cache *redisrepo.Cache,
	pubsub *redisx.EventsPubSub,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:  store,
		cache:  cache,
		pubsub: pubsub,
		uow:    uow.NewUoW(store),
		logger: logger,
	}
}

// CreateSpace inserts a space, its rules and its numbered slots in one
// transaction and announces the new space after commit.
func (s *Service) CreateSpace(ctx context.Context, space *domain.Space, r *domain.BookingRules) (int64, error) {
	const op = "service.directory.CreateSpace"

	if space.Capacity < 1 {
		return 0, fmt.Errorf("%s:%w", op, ErrBadCapacity)
	}

	if err := validateRules(r); err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	if space.Timezone != "" {
		if _, err := time.LoadLocation(space.Timezone); err != nil {
			return 0, fmt.Errorf("%s: timezone: %w", op, err)
		}
	}

	var spaceID int64

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		id, err := s.store.Spaces().With(tx).CreateSpace(ctx, space, r)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%s:%w", op, ErrSpaceExists)
			}

			return fmt.Errorf("%s:%w", op, err)
		}

		spaceID = id

		after(func(ctx context.Context) {
			s.announce(ctx, space.OrgID, id)
		})

		return nil
	})
	if err != nil {
		return 0, err
	}

	return spaceID, nil
}

// UpdateRules replaces a space's booking policy. Existing bookings are not
// revalidated; they outlive rule changes.
func (s *Service) UpdateRules(ctx context.Context, orgID int64, r *domain.BookingRules) error {
	const op = "service.directory.UpdateRules"

	if err := validateRules(r); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		if err := s.store.Spaces().With(tx).UpdateRules(ctx, r); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrSpaceNotFound)
			}

			return fmt.Errorf("%s:%w", op, err)
		}

		after(func(ctx context.Context) {
			s.announce(ctx, orgID, r.SpaceID)
		})

		return nil
	})

	return err
}

// Resize changes a space's capacity, adding slots when growing and retiring
// slots above the new capacity when shrinking.
func (s *Service) Resize(ctx context.Context, orgID, spaceID int64, capacity int) error {
	const op = "service.directory.Resize"

	if capacity < 1 {
		return fmt.Errorf("%s:%w", op, ErrBadCapacity)
	}

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		if err := s.store.Spaces().With(tx).Resize(ctx, spaceID, capacity); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrSpaceNotFound)
			}

			return fmt.Errorf("%s:%w", op, err)
		}

		after(func(ctx context.Context) {
			s.announce(ctx, orgID, spaceID)
		})

		return nil
	})

	return err
}

func (s *Service) announce(ctx context.Context, orgID, spaceID int64) {
	if err := s.cache.InvalidateSpace(ctx, spaceID); err != nil {
		s.logger.Warn("cache invalidation failed", "space_id", spaceID, "error", err)
	}

	if err := s.pubsub.Publish(ctx, domain.BookingEvent{
		Type:    domain.EventSpaceUpdated,
		OrgID:   orgID,
		SpaceID: spaceID,
	}); err != nil {
		s.logger.Warn("event publish failed", "space_id", spaceID, "error", err)
	}
}

func validateRules(r *domain.BookingRules) error {
	switch {
	case r.SlotDurationMin <= 0,
		r.MaxDurationMin <= 0,
		r.MaxAdvanceDays < 0,
		r.BufferMin < 0,
		r.OpenMinutes < 0 || r.OpenMinutes >= 24*60,
		r.CloseMinutes < 0 || r.CloseMinutes > 24*60:
		return ErrBadRules
	}

	for _, cap := range []*int{r.MaxPerUserPerDay, r.MaxPerSpacePerDay, r.MaxActivePerUser} {
		if cap != nil && *cap < 1 {
			return ErrBadRules
		}
	}

	return nil
}
