package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/beachclub/internal/domain"
	"github.com/kirinyoku/beachclub/internal/repository"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return NewStore(mock), mock
}

func TestRunTx(t *testing.T) {
	t.Run("commit", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable, AccessMode: pgx.ReadWrite})
		mock.ExpectExec(`UPDATE reservations`).
			WithArgs([]int64{1}, "confirmed").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		err := store.RunTx(context.Background(), nil, func(ctx context.Context, tx DB) error {
			_, err := store.Reservations().With(tx).UpdateState(ctx, []int64{1}, "confirmed")
			return err
		})

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback on error", func(t *testing.T) {
		store, mock := newMockStore(t)
		boom := errors.New("boom")

		mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
		mock.ExpectRollback()

		err := store.RunTx(context.Background(), &pgx.TxOptions{
			IsoLevel:   pgx.RepeatableRead,
			AccessMode: pgx.ReadOnly,
		}, func(ctx context.Context, tx DB) error {
			return boom
		})

		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTranslateDBErr(t *testing.T) {
	testCases := []struct {
		name string
		in   error
		want error
	}{
		{name: "no rows", in: pgx.ErrNoRows, want: repository.ErrNotFound},
		{name: "unique", in: &pgconn.PgError{Code: "23505"}, want: repository.ErrConflict},
		{name: "foreign key", in: &pgconn.PgError{Code: "23503"}, want: repository.ErrReferenceMissing},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, translateDBErr(tc.in), tc.want)
		})
	}

	assert.NoError(t, translateDBErr(nil))
	assert.True(t, IsRetryable(&pgconn.PgError{Code: "40001"}))
	assert.False(t, IsRetryable(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsRetryable(errors.New("x")))
}

func TestReservationInsert_TicketCollision(t *testing.T) {
	store, mock := newMockStore(t)
	seq := 3

	args := make([]any, 12)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	args[0], args[1] = "250701003", &seq

	mock.ExpectQuery(`ON CONFLICT \(ticket_number\) DO NOTHING`).
		WithArgs(args...).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}))

	err := store.Reservations().Insert(context.Background(), &domain.Reservation{TicketNumber: "250701003"}, &seq)

	assert.ErrorIs(t, err, repository.ErrTicketCollision)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationNextTicketSeq_ScopedToPrefix(t *testing.T) {
	store, mock := newMockStore(t)

	// Sequences are keyed by the ticket's date prefix, not by the row's
	// reservation date, so a moved booking still counts for its prefix.
	mock.ExpectQuery(`ticket_number LIKE \$1`).
		WithArgs("250701%").
		WillReturnRows(pgxmock.NewRows([]string{"seq"}).AddRow(8))

	got, err := store.Reservations().NextTicketSeq(context.Background(), "250701")

	require.NoError(t, err)
	assert.Equal(t, 8, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationFurnitureLocked(t *testing.T) {
	parent := int64(10)

	t.Run("own flag", func(t *testing.T) {
		store, mock := newMockStore(t)

		got, err := store.Reservations().FurnitureLocked(context.Background(), &domain.Reservation{
			ID:                11,
			ParentID:          &parent,
			IsFurnitureLocked: true,
		})

		require.NoError(t, err)
		assert.True(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("top level", func(t *testing.T) {
		store, mock := newMockStore(t)

		got, err := store.Reservations().FurnitureLocked(context.Background(), &domain.Reservation{ID: 10})

		require.NoError(t, err)
		assert.False(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("inherited from parent", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery(`SELECT is_furniture_locked`).
			WithArgs(parent).
			WillReturnRows(pgxmock.NewRows([]string{"is_furniture_locked"}).AddRow(true))

		got, err := store.Reservations().FurnitureLocked(context.Background(), &domain.Reservation{
			ID:       11,
			ParentID: &parent,
		})

		require.NoError(t, err)
		assert.True(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAvailabilityConflicts(t *testing.T) {
	store, mock := newMockStore(t)
	d := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`UNION ALL`).
		WithArgs([]int64{1, 2}, []time.Time{d}, (*int64)(nil), []string{"cancelled"}).
		WillReturnRows(pgxmock.NewRows([]string{
			"furniture_id", "assignment_date", "kind", "reservation_id",
			"ticket_number", "customer_label", "block_id", "block_type",
		}).
			AddRow(int64(1), d, "reservation", int64(5), "250701001", "Ann Lee", int64(0), "").
			AddRow(int64(2), d, "block", int64(0), "", "", int64(9), "vip_hold"))

	got, err := store.Availability().Conflicts(context.Background(), []int64{1, 2}, []time.Time{d}, nil, []string{"cancelled"})

	require.NoError(t, err)
	list := got.List()
	require.Len(t, list, 2)
	assert.Equal(t, domain.ConflictReservation, list[0].Kind)
	assert.Equal(t, "Ann Lee", list[0].CustomerLabel)
	assert.Equal(t, domain.ConflictBlock, list[1].Kind)
	assert.Equal(t, domain.BlockVIPHold, list[1].BlockType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentDeleteForDate(t *testing.T) {
	store, mock := newMockStore(t)
	d := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`DELETE FROM reservation_furniture`).
		WithArgs(int64(5), d, []int64{}).
		WillReturnRows(pgxmock.NewRows([]string{"furniture_id"}).AddRow(int64(4)).AddRow(int64(2)))

	got, err := store.Assignments().DeleteForDate(context.Background(), 5, d, nil)

	require.NoError(t, err)
	assert.Equal(t, []int64{2, 4}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
