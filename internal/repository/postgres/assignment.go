package postgres

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/kirinyoku/beachclub/internal/domain"
)

// AssignmentRepo is the ledger binding (furniture, date) to reservations.
// Writes must go through a transaction handle obtained via With, after the
// caller has checked availability on that same handle.
type AssignmentRepo struct {
	pool Pool
	db   DB
}

func (r *AssignmentRepo) With(db DB) *AssignmentRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *AssignmentRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Insert binds every furniture id to the reservation on date.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - reservationID: the reservation taking the slots.
//   - date: calendar date of the slots.
//   - furnitureIDs: furniture to bind; an empty list is a no-op.
//
// Returns:
//   - error: repository.ErrConflict if an identical row already exists.
//   - error: repository.ErrReferenceMissing if a furniture or the reservation does not exist.
func (r *AssignmentRepo) Insert(
	ctx context.Context,
	reservationID int64,
	date time.Time,
	furnitureIDs []int64,
) error {
	const op = "postgres.AssignmentRepo.Insert"

	if len(furnitureIDs) == 0 {
		return nil
	}

	db := r.handle()

	if _, err := db.Exec(ctx,
		`INSERT INTO reservation_furniture(reservation_id, furniture_id, assignment_date)
		 SELECT $1, f, $3
		 FROM unnest($2::bigint[]) AS f`,
		reservationID, furnitureIDs, date,
	); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// DeleteForDate removes the reservation's rows on date. When furnitureIDs is
// empty every row of that date is removed.
//
// Returns:
//   - []int64: furniture ids whose rows were deleted, ascending.
//   - error: on any database failure.
func (r *AssignmentRepo) DeleteForDate(
	ctx context.Context,
	reservationID int64,
	date time.Time,
	furnitureIDs []int64,
) ([]int64, error) {
	const op = "postgres.AssignmentRepo.DeleteForDate"

	if furnitureIDs == nil {
		furnitureIDs = []int64{}
	}

	db := r.handle()

	rows, err := db.Query(ctx,
		`DELETE FROM reservation_furniture
		 WHERE reservation_id = $1
		   AND assignment_date = $2
		   AND (cardinality($3::bigint[]) = 0 OR furniture_id = ANY($3))
		 RETURNING furniture_id`,
		reservationID, date, furnitureIDs,
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

	slices.Sort(out)

	return out, nil
}

// ListByReservations returns the ledger rows of every reservation in ids.
func (r *AssignmentRepo) ListByReservations(ctx context.Context, ids []int64) ([]domain.Assignment, error) {
	const op = "postgres.AssignmentRepo.ListByReservations"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT furniture_id, assignment_date, reservation_id
		 FROM reservation_furniture
		 WHERE reservation_id = ANY($1)
		 ORDER BY assignment_date, furniture_id`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.Assignment
	for rows.Next() {
		var a domain.Assignment
		if err := rows.Scan(&a.FurnitureID, &a.AssignmentDate, &a.ReservationID); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}
