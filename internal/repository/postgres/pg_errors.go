package postgres

import (
	"errors"

	pgconnv1 "github.com/jackc/pgconn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ritams/smashit-sub000/internal/repository"
)

// IsRetryable reports whether the transaction failed for a transient reason
// (serialization failure or deadlock) and can be retried from scratch.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return true
		}
	}

	// drivers still on the standalone pgconn module report the same codes
	var pgErrV1 *pgconnv1.PgError
	if errors.As(err, &pgErrV1) {
		switch pgErrV1.Code {
		case "40001", "40P01":
			return true
		}
	}

	return false
}

func translateDBErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}

	var pge *pgconn.PgError
	if errors.As(err, &pge) {
		// unique_violation
		if pge.Code == "23505" {
			return repository.ErrConflict
		}
	}

	return err
}
