package movemode

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/kirinyoku/beachclub/internal/domain"
	"github.com/kirinyoku/beachclub/internal/queue"
	"github.com/kirinyoku/beachclub/internal/repository"
	postgresrepo "github.com/kirinyoku/beachclub/internal/repository/postgres"
	"github.com/kirinyoku/beachclub/internal/service/availability"
	"github.com/kirinyoku/beachclub/internal/service/notify"
	"github.com/kirinyoku/beachclub/internal/uow"
)

// Result of one ledger change. FurnitureIDs are the ids removed by an
// unassign or added by an assign.
type Result struct {
	Outcome      domain.Outcome     `json:"outcome"`
	FurnitureIDs []int64            `json:"furniture_ids"`
	Conflicts    domain.ConflictMap `json:"-"`
}

// Ledger is what a move session needs to change assignments.
type Ledger interface {
	UnassignForDate(ctx context.Context, reservationID int64, furnitureIDs []int64, date time.Time) (*Result, error)
	AssignFurniture(ctx context.Context, reservationID int64, date time.Time, furnitureIDs []int64) (*Result, error)
}

// Service changes furniture assignments behind the lock gate. Each call is
// one unit of work.
type Service struct {
	store    *postgresrepo.Store
	checker  *availability.Service
	notifier *notify.Notifier
	uow      *uow.UoW
}

func New(store *postgresrepo.Store, checker *availability.Service, notifier *notify.Notifier) *Service {
	return &Service{
		store:    store,
		checker:  checker,
		notifier: notifier,
		uow:      uow.NewUoW(store),
	}
}

// UnassignForDate removes the reservation's rows for furnitureIDs on date.
// An empty furnitureIDs removes every row of that date.
//
// Returns:
//   - *Result: OutcomeLocked with the ledger untouched if the reservation's
//     furniture is locked, otherwise OutcomeOK with the removed ids.
//   - error: movemode.ErrReservationNotFound if the reservation does not exist.
//   - error: movemode.ErrTerminalState if the reservation already released its
//     slots; its rows are history and stay.
func (s *Service) UnassignForDate(
	ctx context.Context,
	reservationID int64,
	furnitureIDs []int64,
	date time.Time,
) (*Result, error) {
	const op = "service.movemode.UnassignForDate"

	date = domain.Day(date)
	var removed []int64

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		states, err := availability.LoadStates(ctx, s.store, tx)
		if err != nil {
			return err
		}

		res, err := s.lockReservation(ctx, tx, reservationID)
		if err != nil {
			return err
		}

		if states.IsReleasing(res.CurrentState) {
			return ErrTerminalState
		}

		removed, err = s.store.Assignments().
			With(tx).
			DeleteForDate(ctx, reservationID, date, domain.UniqueIDs(furnitureIDs))
		if err != nil {
			return err
		}

		if len(removed) > 0 {
			s.afterChange(after, res, date, removed)
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, errLocked) {
			return &Result{Outcome: domain.OutcomeLocked, FurnitureIDs: []int64{}}, nil
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if removed == nil {
		removed = []int64{}
	}

	return &Result{Outcome: domain.OutcomeOK, FurnitureIDs: removed}, nil
}

// AssignFurniture binds furnitureIDs to the reservation on date after
// checking them on the same transaction, excluding the reservation itself.
// Ids the reservation already holds on that date are skipped.
//
// Returns:
//   - *Result: OutcomeOK with the added ids, OutcomeConflict with the
//     occupied slots, or OutcomeLocked. Only OutcomeOK writes.
//   - error: movemode.ErrNoFurniture, ErrFurnitureUnavailable on bad input.
//   - error: movemode.ErrReservationNotFound, ErrTerminalState.
func (s *Service) AssignFurniture(
	ctx context.Context,
	reservationID int64,
	date time.Time,
	furnitureIDs []int64,
) (*Result, error) {
	const op = "service.movemode.AssignFurniture"

	return s.move(ctx, op, reservationID, date, nil, furnitureIDs, false)
}

// ReassignFurniture swaps from for to on date in one transaction. An empty
// from replaces everything the reservation holds on date.
func (s *Service) ReassignFurniture(
	ctx context.Context,
	reservationID int64,
	date time.Time,
	from, to []int64,
) (*Result, error) {
	const op = "service.movemode.ReassignFurniture"

	if from == nil {
		from = []int64{}
	}

	return s.move(ctx, op, reservationID, date, from, to, true)
}

func (s *Service) move(
	ctx context.Context,
	op string,
	reservationID int64,
	date time.Time,
	from, to []int64,
	release bool,
) (*Result, error) {
	to = domain.UniqueIDs(to)
	if len(to) == 0 {
		return nil, fmt.Errorf("%s:%w", op, ErrNoFurniture)
	}

	date = domain.Day(date)
	var added []int64

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		added = nil

		states, err := availability.LoadStates(ctx, s.store, tx)
		if err != nil {
			return err
		}

		res, err := s.lockReservation(ctx, tx, reservationID)
		if err != nil {
			return err
		}

		if states.IsReleasing(res.CurrentState) {
			return ErrTerminalState
		}

		if err := s.validateFurniture(ctx, tx, to); err != nil {
			return err
		}

		conflicts, err := s.checker.CheckTx(ctx, tx, availability.Query{
			FurnitureIDs:         to,
			Dates:                []time.Time{date},
			ExcludeReservationID: &reservationID,
		}, states)
		if err != nil {
			return err
		}
		if !conflicts.Empty() {
			return &conflictAbort{conflicts: conflicts}
		}

		assignments := s.store.Assignments().With(tx)

		if release {
			if _, err := assignments.DeleteForDate(ctx, reservationID, date, domain.UniqueIDs(from)); err != nil {
				return err
			}
		}

		rows, err := assignments.ListByReservations(ctx, []int64{reservationID})
		if err != nil {
			return err
		}

		held := map[int64]bool{}
		for _, a := range rows {
			if domain.Day(a.AssignmentDate).Equal(date) {
				held[a.FurnitureID] = true
			}
		}

		for _, id := range to {
			if !held[id] {
				added = append(added, id)
			}
		}

		if err := assignments.Insert(ctx, reservationID, date, added); err != nil {
			return err
		}

		s.afterChange(after, res, date, to)

		return nil
	})
	if err != nil {
		if errors.Is(err, errLocked) {
			return &Result{Outcome: domain.OutcomeLocked, FurnitureIDs: []int64{}}, nil
		}

		var ca *conflictAbort
		if errors.As(err, &ca) {
			return &Result{Outcome: domain.OutcomeConflict, FurnitureIDs: []int64{}, Conflicts: ca.conflicts}, nil
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if added == nil {
		added = []int64{}
	}
	slices.Sort(added)

	return &Result{Outcome: domain.OutcomeOK, FurnitureIDs: added}, nil
}

// lockReservation row-locks the reservation and applies the lock gate. A
// lock on a family parent covers every day of the family.
func (s *Service) lockReservation(ctx context.Context, tx postgresrepo.DB, id int64) (*domain.Reservation, error) {
	res, err := s.store.Reservations().With(tx).GetForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}

	locked, err := s.store.Reservations().With(tx).FurnitureLocked(ctx, res)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, errLocked
	}

	return res, nil
}

func (s *Service) validateFurniture(ctx context.Context, tx postgresrepo.DB, ids []int64) error {
	items, err := s.store.Furniture().With(tx).GetMany(ctx, ids)
	if err != nil {
		return err
	}

	active := 0
	for _, f := range items {
		if f.Active {
			active++
		}
	}

	if active != len(ids) {
		return ErrFurnitureUnavailable
	}

	return nil
}

func (s *Service) afterChange(after func(uow.AfterCommit), res *domain.Reservation, date time.Time, furnitureIDs []int64) {
	dates := []time.Time{date}
	ev := queue.ReservationEvent{
		Type:          queue.EventReassigned,
		ReservationID: res.ID,
		TicketNumber:  res.TicketNumber,
		CustomerID:    res.CustomerID,
		State:         res.CurrentState,
		Dates:         notify.DateStrings(dates),
		FurnitureIDs:  slices.Clone(furnitureIDs),
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	}

	after(func(ctx context.Context) {
		s.notifier.DatesChanged(ctx, dates)
		s.notifier.Reservation(ctx, ev)
	})
}
