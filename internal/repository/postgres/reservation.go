package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kirinyoku/beachclub/internal/domain"
	"github.com/kirinyoku/beachclub/internal/repository"
)

const reservationColumns = `id, ticket_number, customer_id, reservation_date, start_date, end_date,
	num_people, current_state, parent_reservation_id, paid, payment_method, notes,
	is_furniture_locked, created_at, updated_at`

type ReservationRepo struct {
	pool Pool
	db   DB
}

func (r *ReservationRepo) With(db DB) *ReservationRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *ReservationRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// NextTicketSeq returns the next free sequence for top-level tickets whose
// number starts with prefix, the YYMMDD of the day the ticket was issued for.
// The sequence follows the ticket, not reservation_date, so a reservation
// moved to another day keeps its number taken.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - prefix: the date part of the ticket number.
//
// Returns:
//   - int: max(ticket_seq) + 1 under that prefix, 1 when there is none.
//   - error: on any database failure.
func (r *ReservationRepo) NextTicketSeq(ctx context.Context, prefix string) (int, error) {
	const op = "postgres.ReservationRepo.NextTicketSeq"

	db := r.handle()

	var seq int
	if err := db.QueryRow(ctx,
		`SELECT COALESCE(MAX(ticket_seq), 0) + 1
		 FROM reservations
		 WHERE ticket_seq IS NOT NULL
		   AND ticket_number LIKE $1`,
		prefix+"%",
	).Scan(&seq); err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return seq, nil
}

// Insert stores a reservation row and fills in its id and timestamps.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - res: the reservation to insert; ID, CreatedAt and UpdatedAt are set on success.
//   - ticketSeq: daily sequence for top-level tickets, nil for family children.
//
// Returns:
//   - error: repository.ErrTicketCollision if the ticket number is already taken.
//   - error: repository.ErrReferenceMissing if the customer, state or parent does not exist.
func (r *ReservationRepo) Insert(ctx context.Context, res *domain.Reservation, ticketSeq *int) error {
	const op = "postgres.ReservationRepo.Insert"

	db := r.handle()

	err := db.QueryRow(ctx,
		`INSERT INTO reservations(
			ticket_number, ticket_seq, customer_id, reservation_date, start_date, end_date,
			num_people, current_state, parent_reservation_id, paid, payment_method, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (ticket_number) DO NOTHING
		 RETURNING id, created_at, updated_at`,
		res.TicketNumber, ticketSeq, res.CustomerID, res.ReservationDate, res.StartDate, res.EndDate,
		res.NumPeople, res.CurrentState, res.ParentID, res.Paid, res.PaymentMethod, res.Notes,
	).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%s:%w", op, repository.ErrTicketCollision)
		}
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// Get retrieves a reservation by its ID.
//
// Returns:
//   - *domain.Reservation: the reservation when found.
//   - error: repository.ErrNotFound if the reservation is not found.
func (r *ReservationRepo) Get(ctx context.Context, id int64) (*domain.Reservation, error) {
	const op = "postgres.ReservationRepo.Get"

	return r.getOne(ctx, op,
		`SELECT `+reservationColumns+`
		 FROM reservations
		 WHERE id = $1`,
		id,
	)
}

// GetForUpdate is Get with a row lock held until the transaction ends.
// It is only meaningful on a handle obtained through With.
func (r *ReservationRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Reservation, error) {
	const op = "postgres.ReservationRepo.GetForUpdate"

	return r.getOne(ctx, op,
		`SELECT `+reservationColumns+`
		 FROM reservations
		 WHERE id = $1
		 FOR UPDATE`,
		id,
	)
}

// Children lists the linked days of a multi-day family ordered by date.
func (r *ReservationRepo) Children(ctx context.Context, parentID int64) ([]domain.Reservation, error) {
	const op = "postgres.ReservationRepo.Children"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT `+reservationColumns+`
		 FROM reservations
		 WHERE parent_reservation_id = $1
		 ORDER BY reservation_date, id`,
		parentID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		var res domain.Reservation
		if err := scanReservation(rows, &res); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// UpdateState moves every reservation in ids to state.
//
// Returns:
//   - int64: number of rows changed.
//   - error: repository.ErrReferenceMissing if state is not in the catalog.
func (r *ReservationRepo) UpdateState(ctx context.Context, ids []int64, state string) (int64, error) {
	const op = "postgres.ReservationRepo.UpdateState"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE reservations
		 SET current_state = $2, updated_at = now()
		 WHERE id = ANY($1)`,
		ids, state,
	)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return tag.RowsAffected(), nil
}

// UpdateDetails writes the editable, non-state columns of res.
func (r *ReservationRepo) UpdateDetails(ctx context.Context, res *domain.Reservation) error {
	const op = "postgres.ReservationRepo.UpdateDetails"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE reservations
		 SET reservation_date = $2, start_date = $3, end_date = $4, num_people = $5,
		     paid = $6, payment_method = $7, notes = $8, updated_at = now()
		 WHERE id = $1`,
		res.ID, res.ReservationDate, res.StartDate, res.EndDate, res.NumPeople,
		res.Paid, res.PaymentMethod, res.Notes,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

func (r *ReservationRepo) SetFurnitureLock(ctx context.Context, id int64, locked bool) error {
	const op = "postgres.ReservationRepo.SetFurnitureLock"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE reservations
		 SET is_furniture_locked = $2, updated_at = now()
		 WHERE id = $1`,
		id, locked,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// FurnitureLocked reports whether res carries the furniture lock, either on
// its own row or, for a day of a family, on the family parent.
func (r *ReservationRepo) FurnitureLocked(ctx context.Context, res *domain.Reservation) (bool, error) {
	const op = "postgres.ReservationRepo.FurnitureLocked"

	if res.IsFurnitureLocked || !res.IsChild() {
		return res.IsFurnitureLocked, nil
	}

	db := r.handle()

	var locked bool
	if err := db.QueryRow(ctx,
		`SELECT is_furniture_locked
		 FROM reservations
		 WHERE id = $1`,
		*res.ParentID,
	).Scan(&locked); err != nil {
		return false, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return locked, nil
}

// CustomerExists reports whether the referenced customer row is present.
func (r *ReservationRepo) CustomerExists(ctx context.Context, customerID int64) (bool, error) {
	const op = "postgres.ReservationRepo.CustomerExists"

	db := r.handle()

	var ok bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM customers WHERE id = $1)`,
		customerID,
	).Scan(&ok); err != nil {
		return false, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return ok, nil
}

func (r *ReservationRepo) getOne(ctx context.Context, op, sql string, args ...any) (*domain.Reservation, error) {
	db := r.handle()

	var res domain.Reservation
	if err := scanReservation(db.QueryRow(ctx, sql, args...), &res); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &res, nil
}

func scanReservation(row pgx.Row, res *domain.Reservation) error {
	return row.Scan(
		&res.ID,
		&res.TicketNumber,
		&res.CustomerID,
		&res.ReservationDate,
		&res.StartDate,
		&res.EndDate,
		&res.NumPeople,
		&res.CurrentState,
		&res.ParentID,
		&res.Paid,
		&res.PaymentMethod,
		&res.Notes,
		&res.IsFurnitureLocked,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
}
