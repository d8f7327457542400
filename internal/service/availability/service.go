package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/kirinyoku/beachclub/internal/domain"
	postgresrepo "github.com/kirinyoku/beachclub/internal/repository/postgres"
	"github.com/kirinyoku/beachclub/internal/uow"
)

// Service answers which (furniture, date) slots are taken. Write flows use
// CheckTx with their own transaction; Check is for standalone reads.
type Service struct {
	store *postgresrepo.Store
	uow   *uow.UoW
}

func New(store *postgresrepo.Store) *Service {
	return &Service{
		store: store,
		uow:   uow.NewUoW(store),
	}
}

// Query is the input of an availability check.
type Query struct {
	FurnitureIDs         []int64
	Dates                []time.Time
	ExcludeReservationID *int64
}

func (q Query) normalize() (Query, error) {
	if len(q.FurnitureIDs) == 0 {
		return q, ErrNoFurniture
	}

	if len(q.Dates) == 0 {
		return q, ErrNoDates
	}

	q.FurnitureIDs = domain.UniqueIDs(q.FurnitureIDs)
	q.Dates = domain.UniqueDays(q.Dates)

	return q, nil
}

// LoadStates reads the lifecycle catalog on tx. Write flows call it once at
// the start of their transaction and pass the set to CheckTx.
//
// Returns:
//   - domain.StateSet: the catalog snapshot.
//   - error: availability.ErrEmptyCatalog if no state is configured.
//   - error: availability.ErrNoHoldingState if every state releases.
func LoadStates(ctx context.Context, store *postgresrepo.Store, tx postgresrepo.DB) (domain.StateSet, error) {
	const op = "service.availability.LoadStates"

	rows, err := store.States().With(tx).List(ctx)
	if err != nil {
		return domain.StateSet{}, fmt.Errorf("%s:%w", op, err)
	}

	if len(rows) == 0 {
		return domain.StateSet{}, fmt.Errorf("%s:%w", op, ErrEmptyCatalog)
	}

	set := domain.NewStateSet(rows)
	if _, ok := set.Initial(); !ok {
		return domain.StateSet{}, fmt.Errorf("%s:%w", op, ErrNoHoldingState)
	}

	return set, nil
}

// CheckTx reports occupied slots using the caller's transaction. It never
// opens, commits or rolls back anything, so a caller that aborts after a
// conflict leaves no trace of its earlier writes.
//
// Parameters:
//   - ctx: request-scoped context.
//   - tx: the caller's open transaction; nil is rejected.
//   - q: furniture × dates to inspect, optionally excluding one reservation.
//   - states: the catalog snapshot of the caller's operation.
//
// Returns:
//   - domain.ConflictMap: occupied slots; an absent key means the slot is free.
//   - error: availability.ErrNoFurniture / ErrNoDates on empty input.
//   - error: availability.ErrNoTransaction if tx is nil.
func (s *Service) CheckTx(
	ctx context.Context,
	tx postgresrepo.DB,
	q Query,
	states domain.StateSet,
) (domain.ConflictMap, error) {
	const op = "service.availability.CheckTx"

	if tx == nil {
		return nil, fmt.Errorf("%s:%w", op, ErrNoTransaction)
	}

	q, err := q.normalize()
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	conflicts, err := s.store.Availability().
		With(tx).
		Conflicts(ctx, q.FurnitureIDs, q.Dates, q.ExcludeReservationID, states.Releasing())
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return conflicts, nil
}

// Check is the standalone form of CheckTx: it opens its own read-only
// transaction and loads the state catalog in it. Never call it from inside
// a write flow.
func (s *Service) Check(ctx context.Context, q Query) (domain.ConflictMap, error) {
	const op = "service.availability.Check"

	if _, err := q.normalize(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	var out domain.ConflictMap

	err := s.uow.ReadOnly(ctx, func(ctx context.Context, tx postgresrepo.DB) error {
		states, err := LoadStates(ctx, s.store, tx)
		if err != nil {
			return err
		}

		out, err = s.CheckTx(ctx, tx, q, states)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}
