package uow

import (
	"context"

	"github.com/jackc/pgx/v5"

	postgres "github.com/ritams/smashit-sub000/internal/repository/postgres"
)

// AfterCommit is a function that runs after a successful transaction commit.
// Cache invalidation and event publishing hang off these hooks so they can
// never roll back, or be rolled back by, the transaction itself.
type AfterCommit func(ctx context.Context)

// UoW represents a unit of work over the postgres store.
type UoW struct {
	store *postgres.Store
}

func NewUoW(store *postgres.Store) *UoW {
	return &UoW{store: store}
}

// Do runs fn inside a transaction. After a successful commit, it executes
// all registered after-commit hooks in order.
func (u *UoW) Do(
	ctx context.Context,
	fn func(ctx context.Context, tx postgres.DB, after func(AfterCommit)) error,
) error {
	return u.DoWithOpts(ctx, nil, fn)
}

// DoWithOpts is Do with explicit transaction options.
func (u *UoW) DoWithOpts(
	ctx context.Context,
	opts *pgx.TxOptions,
	fn func(ctx context.Context, tx postgres.DB, after func(AfterCommit)) error,
) error {
	var hooks []AfterCommit

	err := u.store.RunTx(ctx, opts, func(ctx context.Context, tx postgres.DB) error {
		return fn(ctx, tx, func(h AfterCommit) {
			hooks = append(hooks, h)
		})
	})
	if err != nil {
		return err
	}

	for _, h := range hooks {
		h(ctx)
	}

	return nil
}
