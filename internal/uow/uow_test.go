package uow

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	postgres "github.com/kirinyoku/beachclub/internal/repository/postgres"
)

// fakeRunner runs fn without a database and fails the commit with the
// queued errors, one per attempt.
type fakeRunner struct {
	commitErrs []error
	attempts   int
	opts       []*pgx.TxOptions
}

func (r *fakeRunner) RunTx(ctx context.Context, opts *pgx.TxOptions, fn func(ctx context.Context, tx postgres.DB) error) error {
	r.attempts++
	r.opts = append(r.opts, opts)

	if err := fn(ctx, nil); err != nil {
		return err
	}

	if len(r.commitErrs) > 0 {
		err := r.commitErrs[0]
		r.commitErrs = r.commitErrs[1:]
		return err
	}

	return nil
}

func TestDo_RunsHooksAfterCommit(t *testing.T) {
	r := &fakeRunner{}
	u := NewUoW(r)

	var order []string
	err := u.Do(context.Background(), func(ctx context.Context, tx postgres.DB, after func(AfterCommit)) error {
		order = append(order, "body")
		after(func(context.Context) { order = append(order, "hook") })
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, []string{"body", "hook"}, order)
	assert.Equal(t, 1, r.attempts)
}

func TestDo_NoHooksOnError(t *testing.T) {
	u := NewUoW(&fakeRunner{})
	boom := errors.New("boom")

	ran := false
	err := u.Do(context.Background(), func(ctx context.Context, tx postgres.DB, after func(AfterCommit)) error {
		after(func(context.Context) { ran = true })
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.False(t, ran)
}

func TestDo_RetriesSerializationFailureOnce(t *testing.T) {
	testCases := []struct {
		name         string
		commitErrs   []error
		wantAttempts int
		wantHooks    int
		wantErr      bool
	}{
		{
			name:         "serialization failure then success",
			commitErrs:   []error{&pgconn.PgError{Code: "40001"}},
			wantAttempts: 2,
			wantHooks:    1,
		},
		{
			name:         "deadlock twice",
			commitErrs:   []error{&pgconn.PgError{Code: "40P01"}, &pgconn.PgError{Code: "40P01"}},
			wantAttempts: 2,
			wantErr:      true,
		},
		{
			name:         "other errors are not retried",
			commitErrs:   []error{&pgconn.PgError{Code: "23505"}},
			wantAttempts: 1,
			wantErr:      true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := &fakeRunner{commitErrs: tc.commitErrs}
			u := NewUoW(r)

			hooks := 0
			err := u.Do(context.Background(), func(ctx context.Context, tx postgres.DB, after func(AfterCommit)) error {
				after(func(context.Context) { hooks++ })
				return nil
			})

			assert.Equal(t, tc.wantErr, err != nil)
			assert.Equal(t, tc.wantAttempts, r.attempts)
			assert.Equal(t, tc.wantHooks, hooks, "only the winning attempt runs its hooks")
		})
	}
}

func TestReadOnly(t *testing.T) {
	r := &fakeRunner{}
	u := NewUoW(r)

	err := u.ReadOnly(context.Background(), func(ctx context.Context, tx postgres.DB) error { return nil })

	assert.NoError(t, err)
	if assert.Len(t, r.opts, 1) && assert.NotNil(t, r.opts[0]) {
		assert.Equal(t, pgx.RepeatableRead, r.opts[0].IsoLevel)
		assert.Equal(t, pgx.ReadOnly, r.opts[0].AccessMode)
	}
}
