package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/kirinyoku/beachclub/internal/domain"
)

// AvailabilityRepo answers "who occupies these slots" for the checker.
// It never writes.
type AvailabilityRepo struct {
	pool Pool
	db   DB
}

func (r *AvailabilityRepo) With(db DB) *AvailabilityRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *AvailabilityRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Conflicts returns every holding assignment and every block that touches
// the furniture × dates cross product.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - furnitureIDs: furniture to inspect, deduplicated by the caller.
//   - dates: calendar dates to inspect, deduplicated by the caller.
//   - exclude: reservation whose own rows are ignored, nil for none.
//   - releasing: state codes whose reservations no longer hold their rows.
//
// Returns:
//   - domain.ConflictMap: occupied slots; a slot absent from the map is free.
//   - error: on any database failure.
func (r *AvailabilityRepo) Conflicts(
	ctx context.Context,
	furnitureIDs []int64,
	dates []time.Time,
	exclude *int64,
	releasing []string,
) (domain.ConflictMap, error) {
	const op = "postgres.AvailabilityRepo.Conflicts"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT a.furniture_id, a.assignment_date, 'reservation' AS kind,
		        a.reservation_id, r.ticket_number,
		        COALESCE(NULLIF(TRIM(c.first_name || ' ' || c.last_name), ''),
		                 'customer ' || r.customer_id::text) AS customer_label,
		        0::bigint AS block_id, '' AS block_type
		 FROM reservation_furniture a
		 JOIN reservations r ON r.id = a.reservation_id
		 LEFT JOIN customers c ON c.id = r.customer_id
		 WHERE a.furniture_id = ANY($1)
		   AND a.assignment_date = ANY($2::date[])
		   AND NOT (r.current_state = ANY($4::text[]))
		   AND ($3::bigint IS NULL OR a.reservation_id <> $3)
		 UNION ALL
		 SELECT b.furniture_id, d::date, 'block' AS kind,
		        0::bigint, '', '', b.id, b.block_type
		 FROM furniture_blocks b
		 CROSS JOIN LATERAL unnest($2::date[]) AS d
		 WHERE b.furniture_id = ANY($1)
		   AND d BETWEEN b.start_date AND b.end_date
		 ORDER BY 2, 1, 3, 4`,
		furnitureIDs, dates, exclude, releasing,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	out := domain.ConflictMap{}
	for rows.Next() {
		var c domain.Conflict
		var kind, blockType string

		if err := rows.Scan(
			&c.FurnitureID,
			&c.Date,
			&kind,
			&c.ReservationID,
			&c.TicketNumber,
			&c.CustomerLabel,
			&c.BlockID,
			&blockType,
		); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}

		c.Date = domain.Day(c.Date)
		c.Kind = domain.ConflictKind(kind)
		c.BlockType = domain.BlockType(blockType)
		out.Add(c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// FloorPlan lists every active furniture item with whatever holds it on date.
func (r *AvailabilityRepo) FloorPlan(
	ctx context.Context,
	date time.Time,
	releasing []string,
) ([]domain.FloorPlanSlot, error) {
	const op = "postgres.AvailabilityRepo.FloorPlan"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT f.id, f.number, f.zone, f.type, f.capacity, f.active,
		        COALESCE(h.reservation_id, 0), COALESCE(h.ticket_number, ''),
		        COALESCE(h.customer_label, ''), COALESCE(h.current_state, ''),
		        COALESCE(h.is_furniture_locked, FALSE),
		        COALESCE(b.id, 0), COALESCE(b.block_type, '')
		 FROM furniture f
		 LEFT JOIN LATERAL (
		     SELECT a.reservation_id, r.ticket_number, r.current_state, r.is_furniture_locked,
		            COALESCE(NULLIF(TRIM(c.first_name || ' ' || c.last_name), ''),
		                     'customer ' || r.customer_id::text) AS customer_label
		     FROM reservation_furniture a
		     JOIN reservations r ON r.id = a.reservation_id
		     LEFT JOIN customers c ON c.id = r.customer_id
		     WHERE a.furniture_id = f.id
		       AND a.assignment_date = $1
		       AND NOT (r.current_state = ANY($2::text[]))
		     LIMIT 1
		 ) h ON TRUE
		 LEFT JOIN LATERAL (
		     SELECT id, block_type
		     FROM furniture_blocks
		     WHERE furniture_id = f.id AND $1 BETWEEN start_date AND end_date
		     ORDER BY id
		     LIMIT 1
		 ) b ON TRUE
		 WHERE f.active
		 ORDER BY f.zone, f.number`,
		date, releasing,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.FloorPlanSlot
	for rows.Next() {
		var s domain.FloorPlanSlot
		var blockType string

		if err := rows.Scan(
			&s.Furniture.ID,
			&s.Furniture.Number,
			&s.Furniture.Zone,
			&s.Furniture.Type,
			&s.Furniture.Capacity,
			&s.Furniture.Active,
			&s.ReservationID,
			&s.TicketNumber,
			&s.CustomerLabel,
			&s.State,
			&s.Locked,
			&s.BlockID,
			&blockType,
		); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}

		s.BlockType = domain.BlockType(blockType)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}
