package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ritams/smashit-sub000/internal/domain"
	"github.com/ritams/smashit-sub000/internal/repository"
)

type SpaceRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *SpaceRepo) With(db DB) *SpaceRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *SpaceRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// ActiveSpace retrieves an active space by id. Inactive spaces report
// repository.ErrNotFound so callers treat them as gone.
func (r *SpaceRepo) ActiveSpace(ctx context.Context, spaceID int64) (*domain.Space, error) {
	const op = "postgres.SpaceRepo.ActiveSpace"

	db := r.handle()

	var s domain.Space
	err := db.QueryRow(ctx,
		`SELECT id, org_id, name, space_type, capacity, timezone, active, created_at
       	 FROM spaces WHERE id = $1 AND active`,
		spaceID,
	).Scan(&s.ID, &s.OrgID, &s.Name, &s.SpaceType, &s.Capacity, &s.Timezone, &s.Active, &s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &s, nil
}

// Rules retrieves the booking policy for a space.
func (r *SpaceRepo) Rules(ctx context.Context, spaceID int64) (*domain.BookingRules, error) {
	const op = "postgres.SpaceRepo.Rules"

	db := r.handle()

	var br domain.BookingRules
	err := db.QueryRow(ctx,
		`SELECT space_id, slot_duration_min, open_minutes, close_minutes,
		        max_advance_days, max_duration_min, buffer_min,
		        max_per_user_per_day, max_per_space_per_day, max_active_per_user
       	 FROM booking_rules WHERE space_id = $1`,
		spaceID,
	).Scan(
		&br.SpaceID, &br.SlotDurationMin, &br.OpenMinutes, &br.CloseMinutes,
		&br.MaxAdvanceDays, &br.MaxDurationMin, &br.BufferMin,
		&br.MaxPerUserPerDay, &br.MaxPerSpacePerDay, &br.MaxActivePerUser,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &br, nil
}

// SpaceIDsOfType lists the ids of all active spaces of one type within an
// org. The per-user daily cap counts bookings across this set.
func (r *SpaceRepo) SpaceIDsOfType(ctx context.Context, orgID int64, spaceType string) ([]int64, error) {
	const op = "postgres.SpaceRepo.SpaceIDsOfType"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id FROM spaces WHERE org_id = $1 AND space_type = $2 AND active`,
		orgID, spaceType,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}

		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// SlotByID retrieves a slot regardless of which space owns it; the caller
// checks ownership.
func (r *SpaceRepo) SlotByID(ctx context.Context, slotID int64) (*domain.Slot, error) {
	const op = "postgres.SpaceRepo.SlotByID"

	db := r.handle()

	var sl domain.Slot
	err := db.QueryRow(ctx,
		`SELECT id, space_id, number, name, active FROM slots WHERE id = $1`,
		slotID,
	).Scan(&sl.ID, &sl.SpaceID, &sl.Number, &sl.Name, &sl.Active)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &sl, nil
}

// SlotByNumber resolves a slot by its 1-based number within a space.
func (r *SpaceRepo) SlotByNumber(ctx context.Context, spaceID int64, number int) (*domain.Slot, error) {
	const op = "postgres.SpaceRepo.SlotByNumber"

	db := r.handle()

	var sl domain.Slot
	err := db.QueryRow(ctx,
		`SELECT id, space_id, number, name, active
       	 FROM slots WHERE space_id = $1 AND number = $2 AND active`,
		spaceID, number,
	).Scan(&sl.ID, &sl.SpaceID, &sl.Number, &sl.Name, &sl.Active)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &sl, nil
}

// ListSlots lists a space's active slots ordered by number.
func (r *SpaceRepo) ListSlots(ctx context.Context, spaceID int64) ([]domain.Slot, error) {
	const op = "postgres.SpaceRepo.ListSlots"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, space_id, number, name, active
       	 FROM slots WHERE space_id = $1 AND active
      	 ORDER BY number`,
		spaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.Slot
	for rows.Next() {
		var sl domain.Slot
		if err := rows.Scan(&sl.ID, &sl.SpaceID, &sl.Number, &sl.Name, &sl.Active); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}

		out = append(out, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// CreateSpace inserts a space with its rules and capacity-many numbered
// slots in one transaction.
func (r *SpaceRepo) CreateSpace(ctx context.Context, s *domain.Space, rules *domain.BookingRules) (int64, error) {
	const op = "postgres.SpaceRepo.CreateSpace"

	if r.db != nil {
		id, err := r.createSpaceCore(ctx, r.db, s, rules)
		if err != nil {
			return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		return id, nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer tx.Rollback(ctx)

	id, err := r.createSpaceCore(ctx, tx, s, rules)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return id, nil
}

func (r *SpaceRepo) createSpaceCore(ctx context.Context, db DB, s *domain.Space, rules *domain.BookingRules) (int64, error) {
	var spaceID int64
	if err := db.QueryRow(ctx,
		`INSERT INTO spaces(org_id, name, space_type, capacity, timezone, active)
       	 VALUES ($1, $2, $3, $4, $5, TRUE)
      	 RETURNING id`,
		s.OrgID, s.Name, s.SpaceType, s.Capacity, s.Timezone,
	).Scan(&spaceID); err != nil {
		return 0, err
	}

	if _, err := db.Exec(ctx,
		`INSERT INTO booking_rules(space_id, slot_duration_min, open_minutes, close_minutes,
		                           max_advance_days, max_duration_min, buffer_min,
		                           max_per_user_per_day, max_per_space_per_day, max_active_per_user)
       	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		spaceID, rules.SlotDurationMin, rules.OpenMinutes, rules.CloseMinutes,
		rules.MaxAdvanceDays, rules.MaxDurationMin, rules.BufferMin,
		rules.MaxPerUserPerDay, rules.MaxPerSpacePerDay, rules.MaxActivePerUser,
	); err != nil {
		return 0, err
	}

	batch := &pgx.Batch{}
	for n := 1; n <= s.Capacity; n++ {
		batch.Queue(
			`INSERT INTO slots(space_id, number, name, active)
         	 VALUES ($1, $2, $3, TRUE)`,
			spaceID, n, fmt.Sprintf("%s %d", s.Name, n),
		)
	}
	if err := db.SendBatch(ctx, batch).Close(); err != nil {
		return 0, err
	}

	return spaceID, nil
}

// UpdateRules replaces a space's booking policy.
func (r *SpaceRepo) UpdateRules(ctx context.Context, rules *domain.BookingRules) error {
	const op = "postgres.SpaceRepo.UpdateRules"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE booking_rules
        	SET slot_duration_min = $2, open_minutes = $3, close_minutes = $4,
            	max_advance_days = $5, max_duration_min = $6, buffer_min = $7,
            	max_per_user_per_day = $8, max_per_space_per_day = $9, max_active_per_user = $10
      	 WHERE space_id = $1`,
		rules.SpaceID, rules.SlotDurationMin, rules.OpenMinutes, rules.CloseMinutes,
		rules.MaxAdvanceDays, rules.MaxDurationMin, rules.BufferMin,
		rules.MaxPerUserPerDay, rules.MaxPerSpacePerDay, rules.MaxActivePerUser,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// Resize changes a space's capacity. Growing adds slots numbered up to the
// new capacity; shrinking deactivates slots above it instead of deleting
// rows that bookings may reference.
func (r *SpaceRepo) Resize(ctx context.Context, spaceID int64, capacity int) error {
	const op = "postgres.SpaceRepo.Resize"

	if r.db != nil {
		if err := r.resizeCore(ctx, r.db, spaceID, capacity); err != nil {
			return fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		return nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer tx.Rollback(ctx)

	if err := r.resizeCore(ctx, tx, spaceID, capacity); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

func (r *SpaceRepo) resizeCore(ctx context.Context, db DB, spaceID int64, capacity int) error {
	var name string
	var old int
	if err := db.QueryRow(ctx,
		`SELECT name, capacity FROM spaces WHERE id = $1 FOR UPDATE`,
		spaceID,
	).Scan(&name, &old); err != nil {
		return err
	}

	if _, err := db.Exec(ctx,
		`UPDATE spaces SET capacity = $2 WHERE id = $1`,
		spaceID, capacity,
	); err != nil {
		return err
	}

	if capacity < old {
		_, err := db.Exec(ctx,
			`UPDATE slots SET active = FALSE WHERE space_id = $1 AND number > $2`,
			spaceID, capacity,
		)
		return err
	}

	for n := old + 1; n <= capacity; n++ {
		// reactivate a retired slot with this number if one exists
		tag, err := db.Exec(ctx,
			`UPDATE slots SET active = TRUE WHERE space_id = $1 AND number = $2`,
			spaceID, n,
		)
		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			if _, err := db.Exec(ctx,
				`INSERT INTO slots(space_id, number, name, active)
             	 VALUES ($1, $2, $3, TRUE)`,
				spaceID, n, fmt.Sprintf("%s %d", name, n),
			); err != nil {
				return err
			}
		}
	}

	return nil
}
