package reservation

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	postgresrepo "github.com/kirinyoku/beachclub/internal/repository/postgres"
	"github.com/kirinyoku/beachclub/internal/service/availability"
)

var (
	day1 = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC)
)

var reservationCols = []string{
	"id", "ticket_number", "customer_id", "reservation_date", "start_date", "end_date",
	"num_people", "current_state", "parent_reservation_id", "paid", "payment_method", "notes",
	"is_furniture_locked", "created_at", "updated_at",
}

var conflictCols = []string{
	"furniture_id", "assignment_date", "kind", "reservation_id",
	"ticket_number", "customer_label", "block_id", "block_type",
}

func newTestService(t *testing.T, cfg Config) (*Service, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store := postgresrepo.NewStore(mock)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return New(store, availability.New(store), nil, nil, logger, cfg), mock
}

func expectBegin(mock pgxmock.PgxPoolIface) {
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable, AccessMode: pgx.ReadWrite})
}

func expectStates(mock pgxmock.PgxPoolIface) {
	mock.ExpectQuery(`FROM reservation_states`).
		WillReturnRows(pgxmock.NewRows([]string{"code", "name", "is_releasing", "is_initial", "sort_order"}).
			AddRow("pending", "Pending", false, true, 10).
			AddRow("confirmed", "Confirmed", false, false, 20).
			AddRow("cancelled", "Cancelled", true, false, 40).
			AddRow("no_show", "No-show", true, false, 50))
}

func expectCustomer(mock pgxmock.PgxPoolIface, exists bool) {
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM customers`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(exists))
}

func expectFurniture(mock pgxmock.PgxPoolIface, ids ...int64) {
	rows := pgxmock.NewRows([]string{"id", "number", "zone", "type", "capacity", "active"})
	for _, id := range ids {
		rows.AddRow(id, "F", "beach", "lounger", 2, true)
	}
	mock.ExpectQuery(`FROM furniture\s+WHERE id = ANY`).WithArgs(pgxmock.AnyArg()).WillReturnRows(rows)
}

func expectTicketSeq(mock pgxmock.PgxPoolIface, prefix string, next int) {
	mock.ExpectQuery(`COALESCE\(MAX\(ticket_seq\), 0\) \+ 1`).
		WithArgs(prefix+"%").
		WillReturnRows(pgxmock.NewRows([]string{"seq"}).AddRow(next))
}

func expectInsert(mock pgxmock.PgxPoolIface, id int64) {
	now := time.Now()
	mock.ExpectQuery(`INSERT INTO reservations`).
		WithArgs(anyArgs(12)...).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(id, now, now))
}

func expectTicketTaken(mock pgxmock.PgxPoolIface) {
	mock.ExpectQuery(`INSERT INTO reservations`).
		WithArgs(anyArgs(12)...).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}))
}

func expectNoConflicts(mock pgxmock.PgxPoolIface) {
	mock.ExpectQuery(`FROM reservation_furniture a`).
		WithArgs(anyArgs(4)...).
		WillReturnRows(pgxmock.NewRows(conflictCols))
}

func expectReservationConflict(mock pgxmock.PgxPoolIface, furnitureID int64, date time.Time, owner int64) {
	mock.ExpectQuery(`FROM reservation_furniture a`).
		WithArgs(anyArgs(4)...).
		WillReturnRows(pgxmock.NewRows(conflictCols).
			AddRow(furnitureID, date, "reservation", owner, "250701007", "Ann Lee", int64(0), ""))
}

func reservationRow(id int64, date time.Time, state string, parent *int64, locked bool) []any {
	now := time.Now()
	return []any{
		id, "250701001", int64(5), date, date, date,
		2, state, parent, false, "", "",
		locked, now, now,
	}
}

func expectGetForUpdate(mock pgxmock.PgxPoolIface, row []any) {
	rows := pgxmock.NewRows(reservationCols)
	var id any = pgxmock.AnyArg()
	if row != nil {
		rows.AddRow(row...)
		id = row[0]
	}
	mock.ExpectQuery(`FROM reservations\s+WHERE id = \$1\s+FOR UPDATE`).WithArgs(id).WillReturnRows(rows)
}

func expectChildren(mock pgxmock.PgxPoolIface, parentID int64, rows ...[]any) {
	r := pgxmock.NewRows(reservationCols)
	for _, row := range rows {
		r.AddRow(row...)
	}
	mock.ExpectQuery(`WHERE parent_reservation_id = \$1`).WithArgs(parentID).WillReturnRows(r)
}

func expectAssignments(mock pgxmock.PgxPoolIface, reservationID int64, date time.Time, furniture ...int64) {
	rows := pgxmock.NewRows([]string{"furniture_id", "assignment_date", "reservation_id"})
	for _, id := range furniture {
		rows.AddRow(id, date, reservationID)
	}
	mock.ExpectQuery(`SELECT furniture_id, assignment_date, reservation_id`).
		WithArgs([]int64{reservationID}).
		WillReturnRows(rows)
}

func expectParentLock(mock pgxmock.PgxPoolIface, parentID int64, locked bool) {
	mock.ExpectQuery(`SELECT is_furniture_locked`).
		WithArgs(parentID).
		WillReturnRows(pgxmock.NewRows([]string{"is_furniture_locked"}).AddRow(locked))
}

func anyArgs(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = pgxmock.AnyArg()
	}
	return out
}

func ptr[T any](v T) *T { return &v }
