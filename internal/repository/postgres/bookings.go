package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ritams/smashit-sub000/internal/conflict"
	"github.com/ritams/smashit-sub000/internal/domain"
	"github.com/ritams/smashit-sub000/internal/repository"
)

type BookingRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *BookingRepo) With(db DB) *BookingRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *BookingRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const bookingColumns = `id, org_id, space_id, slot_id, slot_index, user_id, user_name,
	starts_at, ends_at, status, participants, notes, created_at, cancelled_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	var status string
	err := row.Scan(
		&b.ID, &b.OrgID, &b.SpaceID, &b.SlotID, &b.SlotIndex, &b.UserID, &b.UserName,
		&b.StartsAt, &b.EndsAt, &status, &b.Participants, &b.Notes, &b.CreatedAt, &b.CancelledAt,
	)
	if err != nil {
		return nil, err
	}

	b.Status = domain.BookingStatus(status)

	return &b, nil
}

// InsertConfirmed commits a candidate booking if and only if no confirmed
// booking on the same slot identity overlaps it. The space row is locked for
// the duration of the transaction so the conflict check and the insert are
// atomic with respect to other admissions on the same space; the dispatcher
// already serializes a single process, the row lock covers other writers.
//
// Returns repository.ErrSlotTaken on conflict; nothing is persisted then.
func (r *BookingRepo) InsertConfirmed(ctx context.Context, b *domain.Booking) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.InsertConfirmed"

	if r.db != nil {
		out, err := r.insertConfirmedCore(ctx, r.db, b)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		return out, nil
	}

	// serializable transactions can abort on 40001; retry from scratch
	var out *domain.Booking
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		out, lastErr = r.insertConfirmedTx(ctx, b)
		if lastErr == nil || !IsRetryable(lastErr) {
			break
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(lastErr))
	}

	return out, nil
}

func (r *BookingRepo) insertConfirmedTx(ctx context.Context, b *domain.Booking) (*domain.Booking, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return nil, err
	}

	defer tx.Rollback(ctx)

	out, err := r.insertConfirmedCore(ctx, tx, b)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return out, nil
}

func (r *BookingRepo) insertConfirmedCore(ctx context.Context, db DB, b *domain.Booking) (*domain.Booking, error) {
	var spaceID int64
	if err := db.QueryRow(ctx,
		`SELECT id FROM spaces WHERE id = $1 FOR UPDATE`,
		b.SpaceID,
	).Scan(&spaceID); err != nil {
		return nil, err
	}

	overlapping, err := r.overlappingConfirmed(ctx, db, b.SpaceID, b.StartsAt, b.EndsAt)
	if err != nil {
		return nil, err
	}

	if hit := conflict.HasConflict(b.SlotID, overlapping); hit != nil {
		return nil, repository.ErrSlotTaken
	}

	out := *b
	out.ID = uuid.New()
	out.Status = domain.BookingConfirmed

	if err := db.QueryRow(ctx,
		`INSERT INTO bookings(id, org_id, space_id, slot_id, slot_index, user_id, user_name,
		                      starts_at, ends_at, status, participants, notes)
       	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
      	 RETURNING created_at`,
		out.ID, out.OrgID, out.SpaceID, out.SlotID, out.SlotIndex, out.UserID, out.UserName,
		out.StartsAt, out.EndsAt, string(out.Status), out.Participants, out.Notes,
	).Scan(&out.CreatedAt); err != nil {
		return nil, err
	}

	return &out, nil
}

// overlappingConfirmed loads confirmed bookings on the space whose interval
// strictly overlaps [start, end). Touching boundaries are excluded by the
// half-open comparison in SQL.
func (r *BookingRepo) overlappingConfirmed(ctx context.Context, db DB, spaceID int64, start, end time.Time) ([]domain.Booking, error) {
	rows, err := db.Query(ctx,
		`SELECT `+bookingColumns+`
       	 FROM bookings
      	 WHERE space_id = $1 AND status = 'confirmed'
        	AND starts_at < $3 AND ends_at > $2`,
		spaceID, start, end,
	)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, *b)
	}

	return out, rows.Err()
}

// Get retrieves a booking by id scoped to an org.
func (r *BookingRepo) Get(ctx context.Context, orgID int64, id uuid.UUID) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.Get"

	db := r.handle()

	b, err := scanBooking(db.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1 AND org_id = $2`,
		id, orgID,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return b, nil
}

// MarkCancelled flips a booking to cancelled. Already-cancelled bookings
// report repository.ErrCancelled; the row is kept for audit either way.
func (r *BookingRepo) MarkCancelled(ctx context.Context, orgID int64, id uuid.UUID, now time.Time) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.MarkCancelled"

	db := r.handle()

	b, err := scanBooking(db.QueryRow(ctx,
		`UPDATE bookings
        	SET status = 'cancelled', cancelled_at = $3
      	 WHERE id = $1 AND org_id = $2 AND status <> 'cancelled'
      	 RETURNING `+bookingColumns,
		id, orgID, now,
	))
	if err != nil {
		if translateDBErr(err) == repository.ErrNotFound {
			// distinguish a missing booking from one already cancelled
			if _, gerr := r.Get(ctx, orgID, id); gerr == nil {
				return nil, fmt.Errorf("%s:%w", op, repository.ErrCancelled)
			}
			return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return b, nil
}

// ConfirmedForDay lists confirmed bookings on a space intersecting the
// half-open window [dayStart, dayEnd). Feeds the availability grid.
func (r *BookingRepo) ConfirmedForDay(ctx context.Context, spaceID int64, dayStart, dayEnd time.Time) ([]domain.Booking, error) {
	const op = "postgres.BookingRepo.ConfirmedForDay"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT `+bookingColumns+`
       	 FROM bookings
      	 WHERE space_id = $1 AND status = 'confirmed'
        	AND starts_at < $3 AND ends_at > $2
      	 ORDER BY starts_at`,
		spaceID, dayStart, dayEnd,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}

		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// UserCountOnDay counts a user's confirmed bookings starting within
// [dayStart, dayEnd) across the given spaces. Backs the per-user daily cap.
func (r *BookingRepo) UserCountOnDay(ctx context.Context, userID int64, spaceIDs []int64, dayStart, dayEnd time.Time) (int, error) {
	const op = "postgres.BookingRepo.UserCountOnDay"

	if len(spaceIDs) == 0 {
		return 0, nil
	}

	db := r.handle()

	var n int
	err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM bookings
      	 WHERE user_id = $1 AND space_id = ANY($2) AND status = 'confirmed'
        	AND starts_at >= $3 AND starts_at < $4`,
		userID, spaceIDs, dayStart, dayEnd,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return n, nil
}

// SpaceCountOnDay counts confirmed bookings for one space starting within
// [dayStart, dayEnd). Backs the per-space daily cap.
func (r *BookingRepo) SpaceCountOnDay(ctx context.Context, spaceID int64, dayStart, dayEnd time.Time) (int, error) {
	const op = "postgres.BookingRepo.SpaceCountOnDay"

	db := r.handle()

	var n int
	err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM bookings
      	 WHERE space_id = $1 AND status = 'confirmed'
        	AND starts_at >= $2 AND starts_at < $3`,
		spaceID, dayStart, dayEnd,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return n, nil
}

// UserActiveCount counts a user's confirmed not-yet-ended bookings on a
// space. Backs the per-user active cap.
func (r *BookingRepo) UserActiveCount(ctx context.Context, userID, spaceID int64, now time.Time) (int, error) {
	const op = "postgres.BookingRepo.UserActiveCount"

	db := r.handle()

	var n int
	err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM bookings
      	 WHERE user_id = $1 AND space_id = $2 AND status = 'confirmed'
        	AND ends_at > $3`,
		userID, spaceID, now,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return n, nil
}
