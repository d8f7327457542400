package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirinyoku/beachclub/internal/domain"
	"github.com/kirinyoku/beachclub/internal/repository"
	postgresrepo "github.com/kirinyoku/beachclub/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/beachclub/internal/repository/redis"
	"github.com/kirinyoku/beachclub/internal/service/availability"
	"github.com/kirinyoku/beachclub/internal/uow"
)

type Config struct {
	FloorPlanTTL time.Duration
	MaxRangeDays int
}

// Service serves the read models of the engine. None of its methods take
// part in a write flow.
type Service struct {
	store *postgresrepo.Store
	cache *redisrepo.Cache
	uow   *uow.UoW
	cfg   Config
}

func New(store *postgresrepo.Store, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.FloorPlanTTL <= 0 {
		cfg.FloorPlanTTL = 30 * time.Second
	}

	if cfg.MaxRangeDays <= 0 {
		cfg.MaxRangeDays = 366
	}

	return &Service{
		store: store,
		cache: cache,
		uow:   uow.NewUoW(store),
		cfg:   cfg,
	}
}

// FloorPlan returns every active furniture item with whatever holds it on
// date, utilizing a caching layer keyed by date.
//
// Parameters:
//   - ctx: request-scoped context.
//   - date: the calendar date to render.
//
// Returns:
//   - *domain.FloorPlan: one slot per active furniture item.
//   - error: on store or catalog failure.
func (s *Service) FloorPlan(ctx context.Context, date time.Time) (*domain.FloorPlan, error) {
	const op = "service.query.FloorPlan"

	date = domain.Day(date)

	load := func(ctx context.Context) (domain.FloorPlan, error) {
		plan := domain.FloorPlan{Date: date, Slots: []domain.FloorPlanSlot{}}

		err := s.uow.ReadOnly(ctx, func(ctx context.Context, tx postgresrepo.DB) error {
			states, err := availability.LoadStates(ctx, s.store, tx)
			if err != nil {
				return err
			}

			slots, err := s.store.Availability().With(tx).FloorPlan(ctx, date, states.Releasing())
			if err != nil {
				return err
			}

			if slots != nil {
				plan.Slots = slots
			}

			return nil
		})

		return plan, err
	}

	if s.cache == nil {
		plan, err := load(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		return &plan, nil
	}

	gen, err := s.cache.Generation(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	plan, err := redisrepo.GetOrSetJSON(ctx, s.cache, redisrepo.KeyFloorPlan(date, gen), s.cfg.FloorPlanTTL, load)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &plan, nil
}

// FreeFurniture lists active furniture with no holding booking and no
// block on date. The conflict workflow offers these as alternatives.
func (s *Service) FreeFurniture(ctx context.Context, date time.Time) ([]domain.FurnitureItem, error) {
	const op = "service.query.FreeFurniture"

	date = domain.Day(date)

	load := func(ctx context.Context) ([]domain.FurnitureItem, error) {
		plan, err := s.FloorPlan(ctx, date)
		if err != nil {
			return nil, err
		}

		out := []domain.FurnitureItem{}
		for _, slot := range plan.Slots {
			if slot.Free() {
				out = append(out, slot.Furniture)
			}
		}

		return out, nil
	}

	if s.cache == nil {
		items, err := load(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		return items, nil
	}

	gen, err := s.cache.Generation(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	items, err := redisrepo.GetOrSetJSON(ctx, s.cache, redisrepo.KeyFreeFurniture(date, gen), s.cfg.FloorPlanTTL, load)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return items, nil
}

func (s *Service) ListFurniture(ctx context.Context, activeOnly bool) ([]domain.FurnitureItem, error) {
	const op = "service.query.ListFurniture"

	items, err := s.store.Furniture().List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if items == nil {
		items = []domain.FurnitureItem{}
	}

	return items, nil
}

func (s *Service) States(ctx context.Context) ([]domain.ReservationState, error) {
	const op = "service.query.States"

	rows, err := s.store.States().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return domain.NewStateSet(rows).All(), nil
}

// GetReservation retrieves a reservation along with its ledger rows.
//
// Returns:
//   - *domain.ReservationWithAssignments: the reservation and its assignments.
//   - error: query.ErrReservationNotFound if the reservation is not found.
func (s *Service) GetReservation(ctx context.Context, id int64) (*domain.ReservationWithAssignments, error) {
	const op = "service.query.GetReservation"

	var out *domain.ReservationWithAssignments

	err := s.uow.ReadOnly(ctx, func(ctx context.Context, tx postgresrepo.DB) error {
		res, err := s.store.Reservations().With(tx).Get(ctx, id)
		if err != nil {
			return err
		}

		rows, err := s.store.Assignments().With(tx).ListByReservations(ctx, []int64{id})
		if err != nil {
			return err
		}

		out = withAssignments(*res, rows)
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrReservationNotFound)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// Family is a multi-day parent and its per-day children. A reservation
// outside any family is returned as a parent with no children.
type Family struct {
	Parent   domain.ReservationWithAssignments   `json:"parent"`
	Children []domain.ReservationWithAssignments `json:"children"`
}

// GetFamily resolves id to its family root and returns the whole family.
//
// Returns:
//   - *Family: the root and every child ordered by date.
//   - error: query.ErrReservationNotFound if id does not exist.
func (s *Service) GetFamily(ctx context.Context, id int64) (*Family, error) {
	const op = "service.query.GetFamily"

	var out *Family

	err := s.uow.ReadOnly(ctx, func(ctx context.Context, tx postgresrepo.DB) error {
		reservations := s.store.Reservations().With(tx)

		res, err := reservations.Get(ctx, id)
		if err != nil {
			return err
		}

		root := res
		if res.IsChild() {
			root, err = reservations.Get(ctx, *res.ParentID)
			if err != nil {
				return err
			}
		}

		children, err := reservations.Children(ctx, root.ID)
		if err != nil {
			return err
		}

		ids := []int64{root.ID}
		for _, c := range children {
			ids = append(ids, c.ID)
		}

		rows, err := s.store.Assignments().With(tx).ListByReservations(ctx, ids)
		if err != nil {
			return err
		}

		out = &Family{
			Parent:   *withAssignments(*root, rows),
			Children: make([]domain.ReservationWithAssignments, 0, len(children)),
		}
		for _, c := range children {
			out.Children = append(out.Children, *withAssignments(c, rows))
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrReservationNotFound)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// ListBlocks returns blocks intersecting [from, to], optionally for one
// furniture item.
func (s *Service) ListBlocks(
	ctx context.Context,
	furnitureID *int64,
	from, to time.Time,
) ([]domain.FurnitureBlock, error) {
	const op = "service.query.ListBlocks"

	from, to = domain.Day(from), domain.Day(to)

	days, err := domain.DaysBetween(from, to)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidRange)
	}

	if len(days) > s.cfg.MaxRangeDays {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidRange)
	}

	blocks, err := s.store.Blocks().List(ctx, furnitureID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if blocks == nil {
		blocks = []domain.FurnitureBlock{}
	}

	return blocks, nil
}

func withAssignments(res domain.Reservation, rows []domain.Assignment) *domain.ReservationWithAssignments {
	out := &domain.ReservationWithAssignments{
		Reservation: res,
		Assignments: []domain.Assignment{},
	}

	for _, a := range rows {
		if a.ReservationID == res.ID {
			out.Assignments = append(out.Assignments, a)
		}
	}

	return out
}
