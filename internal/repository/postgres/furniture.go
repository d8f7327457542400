package postgres

import (
	"context"
	"fmt"

	"github.com/kirinyoku/beachclub/internal/domain"
)

type FurnitureRepo struct {
	pool Pool
	db   DB
}

func (r *FurnitureRepo) With(db DB) *FurnitureRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *FurnitureRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *FurnitureRepo) List(ctx context.Context, activeOnly bool) ([]domain.FurnitureItem, error) {
	const op = "postgres.FurnitureRepo.List"

	return r.query(ctx, op,
		`SELECT id, number, zone, type, capacity, active
		 FROM furniture
		 WHERE ($1 = FALSE OR active)
		 ORDER BY zone, number`,
		activeOnly,
	)
}

// GetMany returns the catalog rows for ids. Missing ids are simply absent
// from the result; callers compare lengths.
func (r *FurnitureRepo) GetMany(ctx context.Context, ids []int64) ([]domain.FurnitureItem, error) {
	const op = "postgres.FurnitureRepo.GetMany"

	return r.query(ctx, op,
		`SELECT id, number, zone, type, capacity, active
		 FROM furniture
		 WHERE id = ANY($1)
		 ORDER BY id`,
		ids,
	)
}

func (r *FurnitureRepo) query(ctx context.Context, op, sql string, args ...any) ([]domain.FurnitureItem, error) {
	db := r.handle()

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.FurnitureItem
	for rows.Next() {
		var f domain.FurnitureItem
		if err := rows.Scan(&f.ID, &f.Number, &f.Zone, &f.Type, &f.Capacity, &f.Active); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}
