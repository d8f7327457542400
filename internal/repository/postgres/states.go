package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/kirinyoku/beachclub/internal/domain"
)

type StateRepo struct {
	pool Pool
	db   DB
}

func (r *StateRepo) With(db DB) *StateRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *StateRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// List reads the lifecycle catalog. Callers load it once per operation and
// pass the resulting set down explicitly.
func (r *StateRepo) List(ctx context.Context) ([]domain.ReservationState, error) {
	const op = "postgres.StateRepo.List"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT code, name, is_releasing, is_initial, sort_order
		 FROM reservation_states
		 ORDER BY sort_order, code`,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.ReservationState
	for rows.Next() {
		var s domain.ReservationState
		if err := rows.Scan(&s.Code, &s.Name, &s.Releasing, &s.Initial, &s.SortOrder); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// Seed inserts catalog rows that do not exist yet. Existing rows keep
// whatever an administrator configured.
func (r *StateRepo) Seed(ctx context.Context, states []domain.ReservationState) error {
	const op = "postgres.StateRepo.Seed"

	if len(states) == 0 {
		return nil
	}

	db := r.handle()

	batch := &pgx.Batch{}
	for _, s := range states {
		batch.Queue(
			`INSERT INTO reservation_states(code, name, is_releasing, is_initial, sort_order)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (code) DO NOTHING`,
			s.Code, s.Name, s.Releasing, s.Initial, s.SortOrder,
		)
	}
	if err := db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}
