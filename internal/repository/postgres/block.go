package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/kirinyoku/beachclub/internal/domain"
)

type BlockRepo struct {
	pool Pool
	db   DB
}

func (r *BlockRepo) With(db DB) *BlockRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *BlockRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Insert stores a block. It performs no overlap check of its own; the
// caller runs the availability check on the same transaction first.
//
// Returns:
//   - error: repository.ErrReferenceMissing if the furniture does not exist.
func (r *BlockRepo) Insert(ctx context.Context, b *domain.FurnitureBlock) error {
	const op = "postgres.BlockRepo.Insert"

	db := r.handle()

	if err := db.QueryRow(ctx,
		`INSERT INTO furniture_blocks(furniture_id, start_date, end_date, block_type, reason)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		b.FurnitureID, b.StartDate, b.EndDate, string(b.BlockType), b.Reason,
	).Scan(&b.ID, &b.CreatedAt); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

func (r *BlockRepo) Delete(ctx context.Context, id int64) (*domain.FurnitureBlock, error) {
	const op = "postgres.BlockRepo.Delete"

	db := r.handle()

	var b domain.FurnitureBlock
	var blockType string
	if err := db.QueryRow(ctx,
		`DELETE FROM furniture_blocks
		 WHERE id = $1
		 RETURNING id, furniture_id, start_date, end_date, block_type, reason, created_at`,
		id,
	).Scan(&b.ID, &b.FurnitureID, &b.StartDate, &b.EndDate, &blockType, &b.Reason, &b.CreatedAt); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}
	b.BlockType = domain.BlockType(blockType)

	return &b, nil
}

// List returns blocks intersecting [from, to], optionally for one furniture item.
func (r *BlockRepo) List(
	ctx context.Context,
	furnitureID *int64,
	from, to time.Time,
) ([]domain.FurnitureBlock, error) {
	const op = "postgres.BlockRepo.List"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, furniture_id, start_date, end_date, block_type, reason, created_at
		 FROM furniture_blocks
		 WHERE ($1::bigint IS NULL OR furniture_id = $1)
		   AND start_date <= $3 AND end_date >= $2
		 ORDER BY start_date, furniture_id, id`,
		furnitureID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.FurnitureBlock
	for rows.Next() {
		var b domain.FurnitureBlock
		var blockType string
		if err := rows.Scan(&b.ID, &b.FurnitureID, &b.StartDate, &b.EndDate, &blockType, &b.Reason, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		b.BlockType = domain.BlockType(blockType)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

