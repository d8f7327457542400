package uow

import (
	"context"

	"github.com/jackc/pgx/v5"

	postgres "github.com/kirinyoku/beachclub/internal/repository/postgres"
)

// AfterCommit is a function that runs after a successful transaction commit.
type AfterCommit func(ctx context.Context)

// Runner is the part of postgres.Store a unit of work needs.
type Runner interface {
	RunTx(ctx context.Context, opts *pgx.TxOptions, fn func(ctx context.Context, tx postgres.DB) error) error
}

// UoW represents a unit of work: one transaction per business operation.
type UoW struct {
	store Runner
}

func NewUoW(store Runner) *UoW {
	return &UoW{store: store}
}

// Do runs fn inside the transaction. A serialization failure or deadlock
// aborts the attempt and fn is run once more on a fresh transaction; hooks
// registered by the failed attempt are discarded. After a successful commit
// it executes the after-commit hooks of the winning attempt.
func (u *UoW) Do(
	ctx context.Context,
	fn func(ctx context.Context, tx postgres.DB, after func(AfterCommit)) error,
) error {
	err := u.DoWithOpts(ctx, nil, fn)
	if err != nil && postgres.IsRetryable(err) {
		return u.DoWithOpts(ctx, nil, fn)
	}

	return err
}

// DoWithOpts runs fn inside the transaction with the given options, without
// retrying. After a successful commit it executes all after-commit hooks.
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

// ReadOnly runs fn in a read-only transaction. It is the standalone entry
// point for queries that are not part of a write flow.
func (u *UoW) ReadOnly(ctx context.Context, fn func(ctx context.Context, tx postgres.DB) error) error {
	return u.store.RunTx(ctx, &pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	}, fn)
}
